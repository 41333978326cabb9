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

// Package ofp10 implements the symmetric subset of OpenFlow 1.0 messages a
// controller needs to negotiate with and identify a 1.0 switch.
package ofp10

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/frame"
)

const Version uint8 = 1

const (
	TypeHello           uint8 = 0
	TypeError           uint8 = 1
	TypeEchoRequest     uint8 = 2
	TypeEchoReply       uint8 = 3
	TypeVendor          uint8 = 4
	TypeFeaturesRequest uint8 = 5
	TypeFeaturesReply   uint8 = 6
	TypeBarrierRequest  uint8 = 18
	TypeBarrierReply    uint8 = 19
)

// Hello bodies are undefined in 1.0 and kept verbatim.
type Hello struct {
	frame.Header
	Data []byte
}

func (m *Hello) MessageType() uint8 { return TypeHello }

type Error struct {
	frame.Header
	ErrType uint16
	Code    uint16
	Data    []byte
}

func (m *Error) MessageType() uint8 { return TypeError }

func (m *Error) Error() string {
	return fmt.Sprintf("openflow 1.0 error: type %d code %d", m.ErrType, m.Code)
}

type EchoRequest struct {
	frame.Header
	Data []byte
}

func (m *EchoRequest) MessageType() uint8 { return TypeEchoRequest }

type EchoReply struct {
	frame.Header
	Data []byte
}

func (m *EchoReply) MessageType() uint8 { return TypeEchoReply }

// Vendor is a vendor extension message, registered per vendor id with
// RegisterVendor.
type Vendor struct {
	frame.Header
	Vendor uint32
	Data   []byte
}

func (m *Vendor) MessageType() uint8     { return TypeVendor }
func (m *Vendor) ExperimenterID() uint32 { return m.Vendor }

type FeaturesRequest struct {
	frame.Header
}

func (m *FeaturesRequest) MessageType() uint8 { return TypeFeaturesRequest }

const phyPortLen = 48

type PhyPort struct {
	PortNo     uint16
	HWAddr     net.HardwareAddr
	Name       string
	Config     uint32
	State      uint32
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

type FeaturesReply struct {
	frame.Header
	DatapathID   uint64
	NBuffers     uint32
	NTables      uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PhyPort
}

func (m *FeaturesReply) MessageType() uint8 { return TypeFeaturesReply }

type BarrierRequest struct {
	frame.Header
}

func (m *BarrierRequest) MessageType() uint8 { return TypeBarrierRequest }

type BarrierReply struct {
	frame.Header
}

func (m *BarrierReply) MessageType() uint8 { return TypeBarrierReply }

func copyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

func short(name string, data []byte, want int) error {
	if len(data) < want {
		return fmt.Errorf("%w: %s body of %d bytes, want %d", codec.ErrShortMessage, name, len(data), want)
	}
	return nil
}

// rawCodec is the codec of messages whose body is an opaque byte string.
func rawCodec[T codec.Message](data func(T) *[]byte, newT func() T) codec.Codec[T] {
	return codec.Codec[T]{
		Len: func(_ codec.Dialect, m T) (int, error) { return len(*data(m)), nil },
		Encode: func(_ codec.Dialect, m T, out *bytes.Buffer) error {
			out.Write(*data(m))
			return nil
		},
		Decode: func(_ codec.Dialect, b []byte) (T, error) {
			m := newT()
			*data(m) = copyBytes(b)
			return m, nil
		},
	}
}

func emptyCodec[T codec.Message](newT func() T) codec.Codec[T] {
	return codec.Codec[T]{
		Len:    func(codec.Dialect, T) (int, error) { return 0, nil },
		Encode: func(codec.Dialect, T, *bytes.Buffer) error { return nil },
		Decode: func(codec.Dialect, []byte) (T, error) { return newT(), nil },
	}
}

var (
	helloCodec       = rawCodec(func(m *Hello) *[]byte { return &m.Data }, func() *Hello { return &Hello{} })
	echoRequestCodec = rawCodec(func(m *EchoRequest) *[]byte { return &m.Data }, func() *EchoRequest { return &EchoRequest{} })
	echoReplyCodec   = rawCodec(func(m *EchoReply) *[]byte { return &m.Data }, func() *EchoReply { return &EchoReply{} })

	featuresRequestCodec = emptyCodec(func() *FeaturesRequest { return &FeaturesRequest{} })
	barrierRequestCodec  = emptyCodec(func() *BarrierRequest { return &BarrierRequest{} })
	barrierReplyCodec    = emptyCodec(func() *BarrierReply { return &BarrierReply{} })
)

var errorCodec = codec.Codec[*Error]{
	Len: func(_ codec.Dialect, m *Error) (int, error) { return 4 + len(m.Data), nil },
	Encode: func(_ codec.Dialect, m *Error, out *bytes.Buffer) error {
		binary.Write(out, binary.BigEndian, m.ErrType)
		binary.Write(out, binary.BigEndian, m.Code)
		out.Write(m.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*Error, error) {
		if err := short("error", data, 4); err != nil {
			return nil, err
		}
		return &Error{
			ErrType: binary.BigEndian.Uint16(data[0:2]),
			Code:    binary.BigEndian.Uint16(data[2:4]),
			Data:    copyBytes(data[4:]),
		}, nil
	},
}

var vendorCodec = codec.Codec[*Vendor]{
	Len: func(_ codec.Dialect, m *Vendor) (int, error) { return 4 + len(m.Data), nil },
	Encode: func(_ codec.Dialect, m *Vendor, out *bytes.Buffer) error {
		binary.Write(out, binary.BigEndian, m.Vendor)
		out.Write(m.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*Vendor, error) {
		if err := short("vendor", data, 4); err != nil {
			return nil, err
		}
		return &Vendor{Vendor: binary.BigEndian.Uint32(data[0:4]), Data: copyBytes(data[4:])}, nil
	},
}

const featuresReplyFixedLen = 24

func encodePort(p PhyPort, b []byte) {
	binary.BigEndian.PutUint16(b[0:2], p.PortNo)
	copy(b[2:8], p.HWAddr)
	copy(b[8:24], p.Name)
	binary.BigEndian.PutUint32(b[24:28], p.Config)
	binary.BigEndian.PutUint32(b[28:32], p.State)
	binary.BigEndian.PutUint32(b[32:36], p.Curr)
	binary.BigEndian.PutUint32(b[36:40], p.Advertised)
	binary.BigEndian.PutUint32(b[40:44], p.Supported)
	binary.BigEndian.PutUint32(b[44:48], p.Peer)
}

func decodePort(b []byte) PhyPort {
	return PhyPort{
		PortNo:     binary.BigEndian.Uint16(b[0:2]),
		HWAddr:     net.HardwareAddr(append([]byte(nil), b[2:8]...)),
		Name:       strings.TrimRight(string(b[8:24]), "\x00"),
		Config:     binary.BigEndian.Uint32(b[24:28]),
		State:      binary.BigEndian.Uint32(b[28:32]),
		Curr:       binary.BigEndian.Uint32(b[32:36]),
		Advertised: binary.BigEndian.Uint32(b[36:40]),
		Supported:  binary.BigEndian.Uint32(b[40:44]),
		Peer:       binary.BigEndian.Uint32(b[44:48]),
	}
}

var featuresReplyCodec = codec.Codec[*FeaturesReply]{
	Len: func(_ codec.Dialect, m *FeaturesReply) (int, error) {
		return featuresReplyFixedLen + phyPortLen*len(m.Ports), nil
	},
	Encode: func(_ codec.Dialect, m *FeaturesReply, out *bytes.Buffer) error {
		b := make([]byte, featuresReplyFixedLen+phyPortLen*len(m.Ports))
		binary.BigEndian.PutUint64(b[0:8], m.DatapathID)
		binary.BigEndian.PutUint32(b[8:12], m.NBuffers)
		b[12] = m.NTables
		binary.BigEndian.PutUint32(b[16:20], m.Capabilities)
		binary.BigEndian.PutUint32(b[20:24], m.Actions)
		for i, p := range m.Ports {
			off := featuresReplyFixedLen + i*phyPortLen
			encodePort(p, b[off:off+phyPortLen])
		}
		out.Write(b)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*FeaturesReply, error) {
		if err := short("features reply", data, featuresReplyFixedLen); err != nil {
			return nil, err
		}
		ports := data[featuresReplyFixedLen:]
		if len(ports)%phyPortLen != 0 {
			return nil, fmt.Errorf("%w: %d bytes of ports", codec.ErrLengthMismatch, len(ports))
		}
		m := &FeaturesReply{
			DatapathID:   binary.BigEndian.Uint64(data[0:8]),
			NBuffers:     binary.BigEndian.Uint32(data[8:12]),
			NTables:      data[12],
			Capabilities: binary.BigEndian.Uint32(data[16:20]),
			Actions:      binary.BigEndian.Uint32(data[20:24]),
		}
		for off := 0; off < len(ports); off += phyPortLen {
			m.Ports = append(m.Ports, decodePort(ports[off:off+phyPortLen]))
		}
		return m, nil
	},
}

// RegisterVendor installs the raw vendor message codec for one vendor id.
func RegisterVendor(r *codec.Registry, vendor uint32) error {
	return codec.Register(r, codec.ExperimenterMessageKey(Version, vendor), vendorCodec)
}

// Register installs every OpenFlow 1.0 codec of this package into r.
func Register(r *codec.Registry) error {
	regs := []struct {
		t uint8
		f func(key codec.Key) error
	}{
		{TypeHello, func(k codec.Key) error { return codec.Register(r, k, helloCodec) }},
		{TypeError, func(k codec.Key) error { return codec.Register(r, k, errorCodec) }},
		{TypeEchoRequest, func(k codec.Key) error { return codec.Register(r, k, echoRequestCodec) }},
		{TypeEchoReply, func(k codec.Key) error { return codec.Register(r, k, echoReplyCodec) }},
		{TypeFeaturesRequest, func(k codec.Key) error { return codec.Register(r, k, featuresRequestCodec) }},
		{TypeFeaturesReply, func(k codec.Key) error { return codec.Register(r, k, featuresReplyCodec) }},
		{TypeBarrierRequest, func(k codec.Key) error { return codec.Register(r, k, barrierRequestCodec) }},
		{TypeBarrierReply, func(k codec.Key) error { return codec.Register(r, k, barrierReplyCodec) }},
	}
	for _, reg := range regs {
		if err := reg.f(codec.MessageKey(Version, reg.t)); err != nil {
			return err
		}
	}
	return nil
}
