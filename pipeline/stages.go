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
	"bytes"
	"fmt"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/frame"
)

const (
	IdleID        StageID = "idle"
	ReassemblerID StageID = "reassembler"
	DispatcherID  StageID = "version-dispatcher"
	DecoderID     StageID = "decoder"
	EncoderID     StageID = "encoder"
	BootstrapID   StageID = "bootstrap-encoder"
)

// IdleStage sits at the head of the pipeline and lets one Idle event through
// per period of inactivity.
type IdleStage struct {
	signalled bool
}

func (s *IdleStage) ID() StageID { return IdleID }

func (s *IdleStage) Inbound(c *Context, ev Event) ([]Event, error) {
	switch ev.(type) {
	case Bytes:
		s.signalled = false
	case Idle:
		if s.signalled {
			return nil, nil
		}
		s.signalled = true
	}
	return []Event{ev}, nil
}

// ReassemblerStage turns the byte stream into whole frames.
type ReassemblerStage struct {
	r *frame.Reassembler
}

func NewReassemblerStage() *ReassemblerStage {
	return &ReassemblerStage{r: frame.NewReassembler()}
}

func (s *ReassemblerStage) ID() StageID { return ReassemblerID }

func (s *ReassemblerStage) Inbound(c *Context, ev Event) ([]Event, error) {
	b, ok := ev.(Bytes)
	if !ok {
		return []Event{ev}, nil
	}
	// frames completed ahead of a malformed one are still delivered
	frames, err := s.r.Feed(b.Data)
	evs := make([]Event, len(frames))
	for i, f := range frames {
		evs[i] = FrameEvent{Frame: f}
	}
	return evs, err
}

// VersionDispatcher binds the connection to the version of the first frame
// whose version is supported, installs that version's codec stages and
// removes itself.
type VersionDispatcher struct {
	reg       *codec.Registry
	supported map[uint8]bool
}

// NewVersionDispatcher supports the given versions, or every version with
// registered message codecs when none are given.
func NewVersionDispatcher(reg *codec.Registry, versions ...uint8) *VersionDispatcher {
	if len(versions) == 0 {
		versions = reg.Versions()
	}
	supported := make(map[uint8]bool, len(versions))
	for _, v := range versions {
		supported[v] = true
	}
	return &VersionDispatcher{reg: reg, supported: supported}
}

func (s *VersionDispatcher) ID() StageID { return DispatcherID }

func (s *VersionDispatcher) Inbound(c *Context, ev Event) ([]Event, error) {
	fe, ok := ev.(FrameEvent)
	if !ok {
		return []Event{ev}, nil
	}
	v := fe.Frame.Version()
	if !s.supported[v] {
		c.Diagnostic(fmt.Errorf("%w: %d (xid %d)", ErrUnsupportedVersion, v, fe.Frame.Xid()))
		return nil, nil
	}

	d := s.reg.Dialect(v)
	if !c.Has(DecoderID) {
		c.InsertAfter(NewDecoder(d))
	}
	if !c.Has(EncoderID) {
		c.AddLast(NewEncoder(d))
	}
	c.BindVersion(v)
	c.Remove()
	return []Event{VersionedFrame{Version: v, Frame: fe.Frame}}, nil
}

// Decoder decodes the frames of one version into messages. Frames that fail
// to decode are dropped and reported as diagnostics.
type Decoder struct {
	d codec.Dialect
}

func NewDecoder(d codec.Dialect) *Decoder {
	return &Decoder{d: d}
}

func (s *Decoder) ID() StageID { return DecoderID }

func (s *Decoder) Inbound(c *Context, ev Event) ([]Event, error) {
	var f frame.Frame
	switch ev := ev.(type) {
	case VersionedFrame:
		f = ev.Frame
	case FrameEvent:
		f = ev.Frame
	default:
		return []Event{ev}, nil
	}

	m, err := s.d.DecodeMessage(f)
	if err != nil {
		c.Diagnostic(fmt.Errorf("dropping message type %d xid %d: %w", f.Type(), f.Xid(), err))
		return nil, nil
	}
	return []Event{MessageEvent{Message: m}}, nil
}

// Encoder encodes outbound messages with the bound version.
type Encoder struct {
	d codec.Dialect
}

func NewEncoder(d codec.Dialect) *Encoder {
	return &Encoder{d: d}
}

func (s *Encoder) ID() StageID { return EncoderID }

func (s *Encoder) Outbound(c *Context, ev Event) ([]Event, error) {
	me, ok := ev.(MessageEvent)
	if !ok {
		return []Event{ev}, nil
	}
	return encode(s.d, me.Message)
}

// BootstrapEncoder encodes messages sent before a version is bound, such as
// the controller's hello. It uses the version in the message header, or the
// fallback when that is zero.
type BootstrapEncoder struct {
	reg      *codec.Registry
	fallback uint8
}

func NewBootstrapEncoder(reg *codec.Registry, fallback uint8) *BootstrapEncoder {
	return &BootstrapEncoder{reg: reg, fallback: fallback}
}

func (s *BootstrapEncoder) ID() StageID { return BootstrapID }

func (s *BootstrapEncoder) Outbound(c *Context, ev Event) ([]Event, error) {
	me, ok := ev.(MessageEvent)
	if !ok {
		return []Event{ev}, nil
	}
	if codec.IsNil(me.Message) {
		return nil, fmt.Errorf("%w: message", codec.ErrNilElement)
	}
	v := me.Message.MsgHeader().Version
	if v == 0 {
		v = s.fallback
	}
	if v == 0 {
		return nil, fmt.Errorf("%w: message type %d has no version", ErrNotNegotiated, me.Message.MessageType())
	}
	return encode(s.reg.Dialect(v), me.Message)
}

func encode(d codec.Dialect, m codec.Message) ([]Event, error) {
	var out bytes.Buffer
	if err := d.EncodeMessage(m, &out); err != nil {
		return nil, err
	}
	return []Event{Bytes{Data: out.Bytes()}}, nil
}

// Options shapes the initial stage list built by Standard.
type Options struct {
	TLSMode  TLSMode
	Upgrader Upgrader
	// Versions restricts the versions the dispatcher accepts.
	Versions []uint8
	// HelloVersion is the version used for messages sent before a version
	// is bound.
	HelloVersion uint8
}

// Standard returns the stage list of a new stream connection. Without a
// sniffer the connection is ready immediately and the caller fires Ready.
func Standard(reg *codec.Registry, opts Options) []Stage {
	stages := []Stage{&IdleStage{}}
	if opts.TLSMode != TLSOff {
		stages = append(stages, NewTLSSniffer(opts.Upgrader, opts.TLSMode))
	}
	return append(stages,
		NewReassemblerStage(),
		NewVersionDispatcher(reg, opts.Versions...),
		NewBootstrapEncoder(reg, opts.HelloVersion),
	)
}
