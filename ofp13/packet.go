/*
Licensed to the Apache Software Foundation (ASF) under one
or more contributor license agreements.  See the NOTICE file
distributed with this work for additional information
regarding copyright ownership.  The ASF licenses this file
to you under the Apache License, Version 2.0 (the
"License"); you may not use this file except in compliance
with the License.  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing,
software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
KIND, either express or implied.  See the License for the
specific language governing permissions and limitations
under the License.
*/

package ofp13

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/k-vswitch/ofwire/codec"
)

// Packet decodes the frame carried by a packet in as an ethernet packet.
// Decoding is lazy; layers that fail to parse surface through ErrorLayer.
func (m *PacketIn) Packet() gopacket.Packet {
	return gopacket.NewPacket(m.Data, layers.LayerTypeEthernet, gopacket.Lazy)
}

// NewPacketOut builds a packet out sending an unbuffered frame through
// actions.
func NewPacketOut(inPort uint32, data []byte, actions ...codec.Action) *PacketOut {
	return &PacketOut{BufferID: NoBuffer, InPort: inPort, Actions: actions, Data: data}
}

// SerializePacket renders layers into bytes suitable for a packet out.
func SerializePacket(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
