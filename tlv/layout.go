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

package tlv

import (
	"encoding/binary"
	"fmt"
)

// Layout describes where a type/length element list keeps the length of each
// element.
type Layout struct {
	// HeaderLen is the minimum number of bytes needed to read the length.
	HeaderLen int
	// LengthOffset is the offset of the length field from the element start.
	LengthOffset int
	// LengthSize is the width of the length field, 1 or 2 bytes.
	LengthSize int
	// LengthCoversHeader is set when the declared length includes the header.
	LengthCoversHeader bool
}

// ElementLen peeks at the element starting at data and returns its total size
// in bytes, header included. It does not check that data holds the element.
func (l Layout) ElementLen(data []byte) (int, error) {
	if len(data) < l.HeaderLen {
		return 0, fmt.Errorf("%w: %d bytes, want %d", ErrShortHeader, len(data), l.HeaderLen)
	}

	var n int
	switch l.LengthSize {
	case 1:
		n = int(data[l.LengthOffset])
	default:
		n = int(binary.BigEndian.Uint16(data[l.LengthOffset:]))
	}

	if !l.LengthCoversHeader {
		return l.HeaderLen + n, nil
	}
	if n < l.HeaderLen {
		return 0, fmt.Errorf("%w: declared %d, header %d", ErrBadLength, n, l.HeaderLen)
	}
	return n, nil
}

// Split cuts data into consecutive elements until all of it is consumed. The
// returned slices alias data and are capped at their element end. An element
// running past the end of data aborts the whole list.
func Split(data []byte, l Layout) ([][]byte, error) {
	var elems [][]byte
	for off := 0; off < len(data); {
		n, err := l.ElementLen(data[off:])
		if err != nil {
			return nil, fmt.Errorf("element at offset %d: %w", off, err)
		}
		end := off + n
		if end > len(data) {
			return nil, fmt.Errorf("element at offset %d: %w: need %d bytes, have %d",
				off, ErrTruncatedElement, n, len(data)-off)
		}
		elems = append(elems, data[off:end:end])
		off = end
	}
	return elems, nil
}
