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

package ofp13

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/tlv"
)

const matchHeaderLen = 4

// Match is an OXM match: a typed header, the fields, and padding to 8 bytes.
// An empty match is the 8 byte wildcard match.
type Match struct {
	Fields []codec.MatchField
}

func NewMatch(fields ...codec.MatchField) Match {
	return Match{Fields: fields}
}

// Field returns the first field with the given basic field number.
func (m Match) Field(field uint8) (*OXM, bool) {
	for _, f := range m.Fields {
		if o, ok := f.(*OXM); ok && o != nil && o.Class == OXMClassBasic && o.Field == field {
			return o, true
		}
	}
	return nil, false
}

// unpaddedLen is the value of the match length field.
func (m Match) unpaddedLen(d codec.Dialect) (int, error) {
	n, err := d.MatchFieldsLen(m.Fields)
	if err != nil {
		return 0, err
	}
	return matchHeaderLen + n, nil
}

func matchLen(d codec.Dialect, m Match) (int, error) {
	n, err := m.unpaddedLen(d)
	if err != nil {
		return 0, err
	}
	return tlv.Align(n), nil
}

func encodeMatch(d codec.Dialect, m Match, out *bytes.Buffer) error {
	n, err := m.unpaddedLen(d)
	if err != nil {
		return err
	}
	var hdr [matchHeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], MatchTypeOXM)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(n))
	out.Write(hdr[:])
	if err := d.EncodeMatchFields(m.Fields, out); err != nil {
		return err
	}
	tlv.WritePad(out, n)
	return nil
}

// decodeMatch reads a match from the start of data and returns it with the
// number of bytes consumed, padding included.
func decodeMatch(d codec.Dialect, data []byte) (Match, int, error) {
	if len(data) < matchHeaderLen {
		return Match{}, 0, fmt.Errorf("%w: match header of %d bytes", codec.ErrShortMessage, len(data))
	}
	typ := binary.BigEndian.Uint16(data[0:2])
	n := int(binary.BigEndian.Uint16(data[2:4]))
	if typ != MatchTypeOXM {
		return Match{}, 0, fmt.Errorf("%w: match type %d", codec.ErrMissingCodec, typ)
	}
	if n < matchHeaderLen {
		return Match{}, 0, fmt.Errorf("%w: match length %d", tlv.ErrBadLength, n)
	}
	padded := tlv.Align(n)
	if padded > len(data) {
		return Match{}, 0, fmt.Errorf("%w: match of %d bytes, have %d", tlv.ErrTruncatedElement, padded, len(data))
	}

	fields, err := d.DecodeMatchFields(data[matchHeaderLen:n])
	if err != nil {
		return Match{}, 0, err
	}
	return Match{Fields: fields}, padded, nil
}
