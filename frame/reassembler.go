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

package frame

import (
	"fmt"
)

// Reassembler accumulates stream chunks and emits whole frames. It is not
// safe for concurrent use; each connection owns one.
type Reassembler struct {
	pending []byte
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends p to the retained bytes and returns every frame that is now
// complete, in stream order. Feed takes ownership of p. Returned frames are
// independent of later calls.
//
// A declared length below HeaderLen returns ErrMalformedFrame together with
// the frames that completed before it. All bytes from the malformed header
// on are discarded and the stream cannot be resynchronised.
func (r *Reassembler) Feed(p []byte) ([]Frame, error) {
	buf := p
	if len(r.pending) > 0 {
		buf = append(r.pending, p...)
	}
	r.pending = nil

	var frames []Frame
	off := 0
	for len(buf)-off >= HeaderLen {
		n := int(uint16(buf[off+2])<<8 | uint16(buf[off+3]))
		if n < HeaderLen {
			return frames, fmt.Errorf("%w: length %d at offset %d", ErrMalformedFrame, n, off)
		}
		if len(buf)-off < n {
			break
		}
		end := off + n
		frames = append(frames, Frame(buf[off:end:end]))
		off = end
	}

	if off < len(buf) {
		// keep the tail in storage owned by the reassembler so that
		// appending later chunks never writes into an emitted frame
		r.pending = append(make([]byte, 0, len(buf)-off+HeaderLen), buf[off:]...)
	}
	return frames, nil
}

// Buffered reports how many bytes are held waiting for the rest of a frame.
func (r *Reassembler) Buffered() int {
	return len(r.pending)
}

func (r *Reassembler) Reset() {
	r.pending = nil
}
