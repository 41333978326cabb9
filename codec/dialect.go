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
	"fmt"

	"github.com/k-vswitch/ofwire/frame"
	"github.com/k-vswitch/ofwire/tlv"
)

// Element list layouts.
var (
	ActionLayout      = tlv.Layout{HeaderLen: 4, LengthOffset: 2, LengthSize: 2, LengthCoversHeader: true}
	InstructionLayout = tlv.Layout{HeaderLen: 4, LengthOffset: 2, LengthSize: 2, LengthCoversHeader: true}
	MatchLayout       = tlv.Layout{HeaderLen: 4, LengthOffset: 3, LengthSize: 1}
)

const maxMessageLen = 0xffff

// Dialect is a registry bound to one protocol version. Codecs receive the
// dialect so they can encode nested element lists of the same version.
type Dialect struct {
	reg     *Registry
	version uint8
}

func (d Dialect) Version() uint8 {
	return d.version
}

func (d Dialect) Registry() *Registry {
	return d.reg
}

func (d Dialect) messageSerializer(m Message) (Serializer, int, error) {
	if IsNil(m) {
		return nil, 0, fmt.Errorf("%w: %T", ErrNilElement, m)
	}
	s, err := d.reg.Serializer(MessageKeyOf(d.version, m))
	if err != nil {
		return nil, 0, err
	}
	n, err := s.EncodedLen(d, m)
	if err != nil {
		return nil, 0, err
	}
	return s, frame.HeaderLen + n, nil
}

// MessageLen is the full encoded size of m, header included.
func (d Dialect) MessageLen(m Message) (int, error) {
	_, n, err := d.messageSerializer(m)
	return n, err
}

// EncodeMessage writes the header and body of m. The version, type and
// length written come from d and the encoding, the xid from m; m itself is
// not modified, so one message may be encoded by several dialects at once.
// On error nothing is left in out.
func (d Dialect) EncodeMessage(m Message, out *bytes.Buffer) error {
	s, total, err := d.messageSerializer(m)
	if err != nil {
		return err
	}
	if total > maxMessageLen {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, total)
	}

	h := *m.MsgHeader()
	h.Version = d.version
	h.Type = m.MessageType()
	h.Length = uint16(total)

	start := out.Len()
	frame.EncodeHeader(out, h)
	if err := s.Serialize(d, m, out); err != nil {
		out.Truncate(start)
		return err
	}
	if written := out.Len() - start; written != total {
		out.Truncate(start)
		return fmt.Errorf("%w: %s wrote %d bytes, computed %d",
			ErrLengthMismatch, MessageKeyOf(d.version, m), written, total)
	}
	return nil
}

// Marshal returns the encoding of m in a new slice.
func (d Dialect) Marshal(m Message) ([]byte, error) {
	var out bytes.Buffer
	if err := d.EncodeMessage(m, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DecodeMessage decodes one whole frame. The decoded message's header is the
// frame header.
func (d Dialect) DecodeMessage(f frame.Frame) (Message, error) {
	h, err := frame.DecodeHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortMessage, err)
	}
	if h.Version != d.version {
		return nil, fmt.Errorf("%w: frame version %d, dialect %d", ErrVersionMismatch, h.Version, d.version)
	}
	if int(h.Length) != len(f) {
		return nil, fmt.Errorf("%w: header says %d bytes, frame has %d", ErrLengthMismatch, h.Length, len(f))
	}

	key, err := PeekMessageKey(f)
	if err != nil {
		return nil, err
	}
	deser, err := d.reg.Deserializer(key)
	if err != nil {
		return nil, err
	}
	v, err := deser.Deserialize(d, f.Body())
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("%w: %s decoded %T", ErrUnexpectedType, key, v)
	}
	*m.MsgHeader() = h
	return m, nil
}

// elementLen and encodeElement are shared by the three element domains.
// A nil element is rejected before its key is computed, since computing the
// key calls its methods.
func elementLen[T any](d Dialect, v T, keyOf func(uint8, T) Key) (Serializer, Key, int, error) {
	if IsNil(v) {
		return nil, Key{}, 0, fmt.Errorf("%w: %T", ErrNilElement, v)
	}
	key := keyOf(d.version, v)
	s, err := d.reg.Serializer(key)
	if err != nil {
		return nil, key, 0, err
	}
	n, err := s.EncodedLen(d, v)
	if err != nil {
		return nil, key, 0, fmt.Errorf("sizing %s: %w", key, err)
	}
	return s, key, n, nil
}

func encodeElement[T any](d Dialect, v T, keyOf func(uint8, T) Key, out *bytes.Buffer) error {
	s, key, n, err := elementLen(d, v, keyOf)
	if err != nil {
		return err
	}
	start := out.Len()
	if err := s.Serialize(d, v, out); err != nil {
		out.Truncate(start)
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if written := out.Len() - start; written != n {
		out.Truncate(start)
		return fmt.Errorf("%w: %s wrote %d bytes, computed %d", ErrLengthMismatch, key, written, n)
	}
	return nil
}

func decodeElement[T any](d Dialect, data []byte, peek func(uint8, []byte) (Key, error)) (T, error) {
	var zero T
	key, err := peek(d.version, data)
	if err != nil {
		return zero, err
	}
	deser, err := d.reg.Deserializer(key)
	if err != nil {
		return zero, err
	}
	v, err := deser.Deserialize(d, data)
	if err != nil {
		return zero, fmt.Errorf("decoding %s: %w", key, err)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s decoded %T", ErrUnexpectedType, key, v)
	}
	return t, nil
}

func listLen[T any](d Dialect, elems []T, keyOf func(uint8, T) Key) (int, error) {
	total := 0
	for _, e := range elems {
		_, _, n, err := elementLen(d, e, keyOf)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func encodeList[T any](d Dialect, elems []T, keyOf func(uint8, T) Key, out *bytes.Buffer) error {
	start := out.Len()
	for _, e := range elems {
		if err := encodeElement(d, e, keyOf, out); err != nil {
			out.Truncate(start)
			return err
		}
	}
	return nil
}

// decodeList splits the whole list before decoding any element so that a
// bad length anywhere rejects the list.
func decodeList[T any](d Dialect, data []byte, layout tlv.Layout, peek func(uint8, []byte) (Key, error)) ([]T, error) {
	chunks, err := tlv.Split(data, layout)
	if err != nil {
		return nil, err
	}
	var elems []T
	for _, chunk := range chunks {
		e, err := decodeElement[T](d, chunk, peek)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, nil
}

func (d Dialect) ActionLen(a Action) (int, error) {
	_, _, n, err := elementLen(d, a, ActionKeyOf)
	return n, err
}

func (d Dialect) EncodeAction(a Action, out *bytes.Buffer) error {
	return encodeElement(d, a, ActionKeyOf, out)
}

// DecodeAction decodes the single action that data holds.
func (d Dialect) DecodeAction(data []byte) (Action, error) {
	return decodeElement[Action](d, data, PeekActionKey)
}

func (d Dialect) ActionsLen(actions []Action) (int, error) {
	return listLen(d, actions, ActionKeyOf)
}

func (d Dialect) EncodeActions(actions []Action, out *bytes.Buffer) error {
	return encodeList(d, actions, ActionKeyOf, out)
}

func (d Dialect) DecodeActions(data []byte) ([]Action, error) {
	return decodeList[Action](d, data, ActionLayout, PeekActionKey)
}

func (d Dialect) InstructionsLen(instrs []Instruction) (int, error) {
	return listLen(d, instrs, InstructionKeyOf)
}

func (d Dialect) EncodeInstructions(instrs []Instruction, out *bytes.Buffer) error {
	return encodeList(d, instrs, InstructionKeyOf, out)
}

func (d Dialect) DecodeInstructions(data []byte) ([]Instruction, error) {
	return decodeList[Instruction](d, data, InstructionLayout, PeekInstructionKey)
}

func (d Dialect) MatchFieldLen(f MatchField) (int, error) {
	_, _, n, err := elementLen(d, f, MatchKeyOf)
	return n, err
}

func (d Dialect) EncodeMatchField(f MatchField, out *bytes.Buffer) error {
	return encodeElement(d, f, MatchKeyOf, out)
}

func (d Dialect) DecodeMatchField(data []byte) (MatchField, error) {
	return decodeElement[MatchField](d, data, PeekMatchKey)
}

func (d Dialect) MatchFieldsLen(fields []MatchField) (int, error) {
	return listLen(d, fields, MatchKeyOf)
}

func (d Dialect) EncodeMatchFields(fields []MatchField, out *bytes.Buffer) error {
	return encodeList(d, fields, MatchKeyOf, out)
}

func (d Dialect) DecodeMatchFields(data []byte) ([]MatchField, error) {
	return decodeList[MatchField](d, data, MatchLayout, PeekMatchKey)
}
