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

type opKind int

const (
	opInsertAfter opKind = iota
	opAddLast
	opRemove
)

type op struct {
	kind  opKind
	stage Stage
}

// Context is handed to a stage for one invocation. Mutations requested
// through it are applied in order once the stage returns, so the stage never
// observes a changing chain.
type Context struct {
	p    *Pipeline
	self Stage
	pos  int
	ops  []op
	out  *pending
}

func (p *Pipeline) newContext(self Stage, pos int, out *pending) *Context {
	return &Context{p: p, self: self, pos: pos, out: out}
}

// InsertAfter places s right after the calling stage unless a stage with the
// same id is present.
func (c *Context) InsertAfter(s Stage) {
	c.ops = append(c.ops, op{kind: opInsertAfter, stage: s})
}

// AddLast places s at the end of the chain unless a stage with the same id
// is present.
func (c *Context) AddLast(s Stage) {
	c.ops = append(c.ops, op{kind: opAddLast, stage: s})
}

// Remove takes the calling stage out of the chain.
func (c *Context) Remove() {
	c.ops = append(c.ops, op{kind: opRemove})
}

// Has reports whether a stage with id is present, counting insertions
// requested during this invocation.
func (c *Context) Has(id StageID) bool {
	if c.p.index(id) >= 0 {
		return true
	}
	for _, o := range c.ops {
		if o.stage != nil && o.stage.ID() == id {
			return true
		}
	}
	return false
}

// Diagnostic reports a non fatal problem to the sink.
func (c *Context) Diagnostic(err error) {
	c.out.diags = append(c.out.diags, err)
}

// MarkTLSDecided records that transport encryption has been settled. It has
// no effect after the first call.
func (c *Context) MarkTLSDecided() {
	c.p.tlsDecided = true
}

// BindVersion records the negotiated protocol version. Only the first call
// has an effect.
func (c *Context) BindVersion(v uint8) {
	if c.p.versionDecided {
		return
	}
	c.p.versionDecided = true
	c.p.version = v
}

// Version returns the bound version, if any.
func (c *Context) Version() (uint8, bool) {
	return c.p.version, c.p.versionDecided
}

// apply performs the deferred mutations and returns the index of the stage
// that should see the calling stage's output. dir is 1 inbound and -1
// outbound. If the caller is still present its output goes to its
// neighbour; if it removed itself the output goes to whatever now occupies
// its old slot (inbound) or the slot before it (outbound).
func (c *Context) apply(dir int) int {
	p := c.p
	removed := false
	at := c.pos

	for _, o := range c.ops {
		switch o.kind {
		case opInsertAfter:
			if p.index(o.stage.ID()) >= 0 {
				continue
			}
			pos := at
			if !removed {
				pos = p.index(c.self.ID()) + 1
			}
			p.stages = append(p.stages, nil)
			copy(p.stages[pos+1:], p.stages[pos:])
			p.stages[pos] = o.stage
		case opAddLast:
			if p.index(o.stage.ID()) >= 0 {
				continue
			}
			p.stages = append(p.stages, o.stage)
		case opRemove:
			if removed {
				continue
			}
			i := p.index(c.self.ID())
			if i < 0 {
				continue
			}
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			at = i
			removed = true
		}
	}

	if !removed {
		return p.index(c.self.ID()) + dir
	}
	if dir > 0 {
		return at
	}
	return at - 1
}
