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

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/k-vswitch/ofwire/frame"
)

var (
	ErrMissingCodec    = errors.New("codec: no codec registered for key")
	ErrDuplicateKey    = errors.New("codec: key already registered")
	ErrNilCodec        = errors.New("codec: nil codec")
	ErrShortMessage    = errors.New("codec: message shorter than its fixed part")
	ErrUnexpectedType  = errors.New("codec: value has unexpected type")
	ErrLengthMismatch  = errors.New("codec: encoded length differs from computed length")
	ErrMessageTooLarge = errors.New("codec: message exceeds 65535 bytes")
	ErrVersionMismatch = errors.New("codec: frame version differs from dialect")
	ErrNilElement      = errors.New("codec: nil element")
)

// IsNil reports whether v is nil or an interface holding a nil pointer,
// map, slice, func or channel.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Message is a typed OpenFlow message. Implementations embed frame.Header.
type Message interface {
	MsgHeader() *frame.Header
	MessageType() uint8
}

type Action interface {
	ActionType() uint16
}

type Instruction interface {
	InstructionType() uint16
}

// MatchField is one OXM entry of a match.
type MatchField interface {
	OXMClass() uint16
	OXMField() uint8
}

// Experimenter is implemented by elements whose key includes an
// experimenter id.
type Experimenter interface {
	ExperimenterID() uint32
}

// Serializer writes one value. For messages only the body is written; for
// actions, instructions and match fields the whole element is written.
// EncodedLen must equal the number of bytes Serialize writes.
type Serializer interface {
	EncodedLen(d Dialect, v any) (int, error)
	Serialize(d Dialect, v any, out *bytes.Buffer) error
}

// Deserializer reads one value. Messages receive their body, other elements
// receive the whole element including its header.
type Deserializer interface {
	Deserialize(d Dialect, data []byte) (any, error)
}

// Codec adapts typed functions to Serializer and Deserializer. Len may be
// nil, in which case the length is measured by encoding.
type Codec[T any] struct {
	Len    func(d Dialect, v T) (int, error)
	Encode func(d Dialect, v T, out *bytes.Buffer) error
	Decode func(d Dialect, data []byte) (T, error)
}

func (c Codec[T]) typed(v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %T, want %T", ErrUnexpectedType, v, zero)
	}
	return t, nil
}

func (c Codec[T]) EncodedLen(d Dialect, v any) (int, error) {
	t, err := c.typed(v)
	if err != nil {
		return 0, err
	}
	if c.Len != nil {
		return c.Len(d, t)
	}
	var scratch bytes.Buffer
	if err := c.Encode(d, t, &scratch); err != nil {
		return 0, err
	}
	return scratch.Len(), nil
}

func (c Codec[T]) Serialize(d Dialect, v any, out *bytes.Buffer) error {
	t, err := c.typed(v)
	if err != nil {
		return err
	}
	return c.Encode(d, t, out)
}

func (c Codec[T]) Deserialize(d Dialect, data []byte) (any, error) {
	v, err := c.Decode(d, data)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Register installs c for key in both directions. A direction whose
// function is nil is skipped.
func Register[T any](r *Registry, key Key, c Codec[T]) error {
	var s Serializer
	var d Deserializer
	if c.Encode != nil {
		s = c
	}
	if c.Decode != nil {
		d = c
	}
	return r.register(key, s, d)
}
