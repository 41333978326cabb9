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

// Package frame cuts an OpenFlow byte stream into whole protocol frames.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is the size of the common OpenFlow header.
const HeaderLen = 8

var (
	ErrMalformedFrame = errors.New("frame: declared length smaller than header")
	ErrShortHeader    = errors.New("frame: not enough bytes for header")
)

// Header is the common header at the start of every OpenFlow message.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

// MsgHeader lets structs embedding a Header expose it.
func (h *Header) MsgHeader() *Header {
	return h
}

// PeekLength returns the message length stored in the header at buf,
// without regard to whether buf holds the whole message.
func PeekLength(buf []byte) (uint16, error) {
	if len(buf) < 4 {
		return 0, ErrShortHeader
	}
	return binary.BigEndian.Uint16(buf[2:4]), nil
}

func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(buf))
	}
	return Header{
		Version: buf[0],
		Type:    buf[1],
		Length:  binary.BigEndian.Uint16(buf[2:4]),
		Xid:     binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

func EncodeHeader(out *bytes.Buffer, h Header) {
	var b [HeaderLen]byte
	PutHeader(b[:], h)
	out.Write(b[:])
}

// PutHeader writes h into the first HeaderLen bytes of b.
func PutHeader(b []byte, h Header) {
	b[0] = h.Version
	b[1] = h.Type
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	binary.BigEndian.PutUint32(b[4:8], h.Xid)
}

// Frame is exactly one OpenFlow message: header plus body.
type Frame []byte

func (f Frame) Version() uint8 {
	return f[0]
}

func (f Frame) Type() uint8 {
	return f[1]
}

func (f Frame) Length() uint16 {
	return binary.BigEndian.Uint16(f[2:4])
}

func (f Frame) Xid() uint32 {
	return binary.BigEndian.Uint32(f[4:8])
}

func (f Frame) Header() Header {
	h, _ := DecodeHeader(f)
	return h
}

// Body is the part of the frame after the header.
func (f Frame) Body() []byte {
	return f[HeaderLen:]
}
