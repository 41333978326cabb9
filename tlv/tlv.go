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

// Package tlv implements the type-length-value discipline shared by every
// structured OpenFlow wire element: OXM style entries with a 4 byte header,
// type/length element lists such as actions and instructions, and the 8 byte
// alignment applied by enclosing containers.
package tlv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// EntryHeaderLen is the size of an OXM style header: class(2), field and
	// mask bit(1), payload length(1).
	EntryHeaderLen = 4

	// Alignment is the boundary enclosing containers are padded to.
	Alignment = 8

	// MaxField is the largest field number that fits in the 7 bit field.
	MaxField = 0x7f
)

var (
	ErrShortHeader      = errors.New("tlv: not enough bytes for element header")
	ErrTruncatedElement = errors.New("tlv: element overruns declared length")
	ErrBadLength        = errors.New("tlv: element length smaller than its header")
	ErrMaskMismatch     = errors.New("tlv: mask length differs from value length")
	ErrFieldSize        = errors.New("tlv: value size does not match field descriptor")
	ErrNotMaskable      = errors.New("tlv: field does not accept a mask")
	ErrFieldRange       = errors.New("tlv: field number out of range")
	ErrPayloadTooLarge  = errors.New("tlv: payload does not fit in length byte")
)

var zeros [Alignment]byte

// Entry is one decoded OXM style element.
type Entry struct {
	Class   uint16
	Field   uint8
	HasMask bool
	Value   []byte
	Mask    []byte
}

// PayloadLen is the value of the on-wire length byte.
func (e Entry) PayloadLen() int {
	n := len(e.Value)
	if e.HasMask {
		n += len(e.Mask)
	}
	return n
}

// Len is the number of bytes EncodeEntry writes for e.
func (e Entry) Len() int {
	return EntryHeaderLen + e.PayloadLen()
}

// FieldByte packs the field number in the high 7 bits and the mask flag in
// the low bit.
func FieldByte(field uint8, hasMask bool) byte {
	b := field << 1
	if hasMask {
		b |= 1
	}
	return b
}

// EncodeEntry writes the header, value and, when HasMask is set, the mask.
// Entries are not padded individually.
func EncodeEntry(out *bytes.Buffer, e Entry) error {
	if e.Field > MaxField {
		return fmt.Errorf("%w: %d", ErrFieldRange, e.Field)
	}
	if e.HasMask && len(e.Mask) != len(e.Value) {
		return fmt.Errorf("%w: value %d mask %d", ErrMaskMismatch, len(e.Value), len(e.Mask))
	}
	payload := e.PayloadLen()
	if payload > 0xff {
		return fmt.Errorf("%w: %d", ErrPayloadTooLarge, payload)
	}

	var hdr [EntryHeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], e.Class)
	hdr[2] = FieldByte(e.Field, e.HasMask)
	hdr[3] = uint8(payload)
	out.Write(hdr[:])
	out.Write(e.Value)
	if e.HasMask {
		out.Write(e.Mask)
	}
	return nil
}

// PeekHeader reads an entry header without consuming it.
func PeekHeader(data []byte) (class uint16, field uint8, hasMask bool, payload int, err error) {
	if len(data) < EntryHeaderLen {
		return 0, 0, false, 0, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(data))
	}
	class = binary.BigEndian.Uint16(data[0:2])
	field = data[2] >> 1
	hasMask = data[2]&1 == 1
	payload = int(data[3])
	return class, field, hasMask, payload, nil
}

// DecodeEntry decodes one entry from the start of data and returns it along
// with the number of bytes consumed. When descs knows the field, the declared
// length must match the descriptor's fixed size (twice that with a mask).
// Value and Mask are copies and do not alias data.
func DecodeEntry(data []byte, descs Descriptors) (Entry, int, error) {
	class, field, hasMask, payload, err := PeekHeader(data)
	if err != nil {
		return Entry{}, 0, err
	}
	n := EntryHeaderLen + payload
	if n > len(data) {
		return Entry{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedElement, n, len(data))
	}

	valueLen := payload
	if desc, ok := descs.Lookup(class, field); ok {
		want := desc.Size
		if hasMask {
			if !desc.Maskable {
				return Entry{}, 0, fmt.Errorf("%w: %s", ErrNotMaskable, desc.Name)
			}
			want *= 2
		}
		if payload != want {
			return Entry{}, 0, fmt.Errorf("%w: %s has %d bytes, want %d", ErrFieldSize, desc.Name, payload, want)
		}
		valueLen = desc.Size
	} else if hasMask {
		if payload%2 != 0 {
			return Entry{}, 0, fmt.Errorf("%w: odd payload %d", ErrMaskMismatch, payload)
		}
		valueLen = payload / 2
	}

	body := data[EntryHeaderLen:n]
	e := Entry{
		Class:   class,
		Field:   field,
		HasMask: hasMask,
		Value:   append([]byte(nil), body[:valueLen]...),
	}
	if hasMask {
		e.Mask = append([]byte(nil), body[valueLen:]...)
	}
	return e, n, nil
}

// Align rounds n up to the next multiple of Alignment.
func Align(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// PadLen is the number of zero bytes needed after n bytes to reach the next
// multiple of Alignment.
func PadLen(n int) int {
	return Align(n) - n
}

// WritePad writes the zero padding that aligns a container of n bytes.
func WritePad(out *bytes.Buffer, n int) {
	out.Write(zeros[:PadLen(n)])
}
