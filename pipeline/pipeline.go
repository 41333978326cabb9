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

// Package pipeline runs the per-connection chain of protocol stages: TLS
// detection, frame reassembly, version dispatch, and version specific
// decoding and encoding. Stages may reshape the chain while it runs.
package pipeline

import (
	"errors"
	"sync"
)

var (
	ErrUnsupportedVersion = errors.New("pipeline: unsupported protocol version")
	ErrSetupFailed        = errors.New("pipeline: connection setup failed")
	ErrNotNegotiated      = errors.New("pipeline: protocol version not negotiated")
)

// StageID names a stage. A pipeline holds at most one stage per id.
type StageID string

type Stage interface {
	ID() StageID
}

// InboundStage handles events travelling from the transport towards the
// sink. Returning no events means wait for more input. A returned error is
// fatal to the connection; events returned with it are passed on first.
type InboundStage interface {
	Stage
	Inbound(c *Context, ev Event) ([]Event, error)
}

// OutboundStage handles events travelling from the application towards the
// transport. Outbound events visit stages from the last to the first.
type OutboundStage interface {
	Stage
	Outbound(c *Context, ev Event) ([]Event, error)
}

// Sink receives what leaves the inbound end of the pipeline.
type Sink interface {
	Deliver(ev Event)
	// Diagnostic reports a non fatal problem, such as a dropped message.
	Diagnostic(err error)
}

// Pipeline is an ordered list of stages. Fire methods are safe for
// concurrent use; stages of one pipeline never run concurrently. Sink
// callbacks run after the pipeline lock is released.
type Pipeline struct {
	mu     sync.Mutex
	stages []Stage
	sink   Sink

	tlsDecided     bool
	versionDecided bool
	version        uint8
}

func New(sink Sink, stages ...Stage) *Pipeline {
	p := &Pipeline{sink: sink}
	for _, s := range stages {
		if p.index(s.ID()) < 0 {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Stages lists the ids of the current stages in order.
func (p *Pipeline) Stages() []StageID {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]StageID, len(p.stages))
	for i, s := range p.stages {
		ids[i] = s.ID()
	}
	return ids
}

func (p *Pipeline) TLSDecided() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tlsDecided
}

func (p *Pipeline) VersionDecided() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.versionDecided
}

// Version returns the bound protocol version, if any.
func (p *Pipeline) Version() (uint8, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version, p.versionDecided
}

func (p *Pipeline) index(id StageID) int {
	for i, s := range p.stages {
		if s.ID() == id {
			return i
		}
	}
	return -1
}

type pending struct {
	delivered []Event
	diags     []error
	written   [][]byte
}

// FireInbound pushes ev through the pipeline from its first stage. Events
// reaching the end are delivered to the sink.
func (p *Pipeline) FireInbound(ev Event) error {
	var out pending

	p.mu.Lock()
	err := p.inbound(0, ev, &out)
	p.mu.Unlock()

	for _, diag := range out.diags {
		p.sink.Diagnostic(diag)
	}
	for _, ev := range out.delivered {
		p.sink.Deliver(ev)
	}
	return err
}

// FireOutbound pushes ev through the pipeline from its last stage and
// returns the bytes that reach the transport end, in order.
func (p *Pipeline) FireOutbound(ev Event) ([][]byte, error) {
	var out pending

	p.mu.Lock()
	err := p.outbound(len(p.stages)-1, ev, &out)
	p.mu.Unlock()

	for _, diag := range out.diags {
		p.sink.Diagnostic(diag)
	}
	return out.written, err
}

func (p *Pipeline) inbound(i int, ev Event, out *pending) error {
	for ; i < len(p.stages); i++ {
		if s, ok := p.stages[i].(InboundStage); ok {
			c := p.newContext(s, i, out)
			evs, err := s.Inbound(c, ev)
			next := c.apply(1)
			for _, ev := range evs {
				if err := p.inbound(next, ev, out); err != nil {
					return err
				}
			}
			return err
		}
	}
	out.delivered = append(out.delivered, ev)
	return nil
}

func (p *Pipeline) outbound(i int, ev Event, out *pending) error {
	for ; i >= 0; i-- {
		if s, ok := p.stages[i].(OutboundStage); ok {
			c := p.newContext(s, i, out)
			evs, err := s.Outbound(c, ev)
			next := c.apply(-1)
			if err != nil {
				return err
			}
			for _, ev := range evs {
				if err := p.outbound(next, ev, out); err != nil {
					return err
				}
			}
			return nil
		}
	}
	b, ok := ev.(Bytes)
	if !ok {
		return ErrNotNegotiated
	}
	out.written = append(out.written, b.Data)
	return nil
}
