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

package pipeline

import (
	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/frame"
)

// Event is what flows between stages. The set of events is closed.
type Event interface {
	event()
}

// Bytes is a chunk of the transport byte stream. Inbound, the receiving stage
// owns Data.
type Bytes struct {
	Data []byte
}

// FrameEvent is one whole OpenFlow frame.
type FrameEvent struct {
	Frame frame.Frame
}

// VersionedFrame is a frame tagged with the connection's negotiated version.
type VersionedFrame struct {
	Version uint8
	Frame   frame.Frame
}

// MessageEvent carries a typed message, decoded inbound or to be encoded
// outbound.
type MessageEvent struct {
	Message codec.Message
}

// Ready signals that transport setup finished and messages may be sent.
type Ready struct{}

// Idle signals that nothing was read for the idle timeout.
type Idle struct{}

func (Bytes) event()          {}
func (FrameEvent) event()     {}
func (VersionedFrame) event() {}
func (MessageEvent) event()   {}
func (Ready) event()          {}
func (Idle) event()           {}
