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
	"fmt"
	"strings"
)

// Decision is the outcome of inspecting the first bytes of a connection.
type Decision int

const (
	NotYetDecidable Decision = iota
	Plaintext
	Encrypted
)

func (d Decision) String() string {
	switch d {
	case Plaintext:
		return "plaintext"
	case Encrypted:
		return "encrypted"
	default:
		return "undecided"
	}
}

// sniffLen is the number of bytes needed to tell a TLS record header apart
// from an OpenFlow header.
const sniffLen = 5

const maxRecordLen = 1<<14 + 2048

// Inspect classifies the first bytes of a stream. OpenFlow frames start with
// a small version number, TLS records with a content type of 20 to 24.
func Inspect(b []byte) Decision {
	if len(b) < sniffLen {
		return NotYetDecidable
	}
	if isTLSRecord(b) || isSSLv2Hello(b) {
		return Encrypted
	}
	return Plaintext
}

func isTLSRecord(b []byte) bool {
	switch b[0] {
	case 20, 21, 22, 23, 24:
	default:
		return false
	}
	if b[1] != 3 || b[2] > 4 {
		return false
	}
	n := int(b[3])<<8 | int(b[4])
	return n <= maxRecordLen
}

func isSSLv2Hello(b []byte) bool {
	// two byte record header with the high bit set, then CLIENT-HELLO
	return b[0]&0x80 != 0 && b[2] == 1 && (b[3] == 2 || b[3] == 3)
}

// TLSMode selects how a listener treats transport encryption.
type TLSMode int

const (
	// TLSAuto accepts both TLS and plaintext peers.
	TLSAuto TLSMode = iota
	// TLSOff treats every peer as plaintext.
	TLSOff
	// TLSRequired fails setup for plaintext peers.
	TLSRequired
)

func (m TLSMode) String() string {
	switch m {
	case TLSOff:
		return "off"
	case TLSRequired:
		return "required"
	default:
		return "auto"
	}
}

func ParseTLSMode(s string) (TLSMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return TLSAuto, nil
	case "off":
		return TLSOff, nil
	case "required":
		return TLSRequired, nil
	}
	return TLSAuto, fmt.Errorf("unknown tls mode %q", s)
}

// Upgrader switches the transport to TLS. StartTLS receives the ciphertext
// already read from the peer and must not block; the handshake itself runs
// in the connection's read loop.
type Upgrader interface {
	StartTLS(ciphertext []byte) error
}

const (
	SnifferID StageID = "tls-sniffer"
	TLSID     StageID = "tls"
)

// TLSSniffer decides once per connection whether the peer speaks TLS. It
// buffers until a decision is possible and then removes itself.
type TLSSniffer struct {
	upgrader Upgrader
	mode     TLSMode
	buf      []byte
}

// NewTLSSniffer returns a sniffer that hands TLS peers to u. A nil u makes
// TLS peers fail setup.
func NewTLSSniffer(u Upgrader, mode TLSMode) *TLSSniffer {
	return &TLSSniffer{upgrader: u, mode: mode}
}

func (s *TLSSniffer) ID() StageID { return SnifferID }

func (s *TLSSniffer) Inbound(c *Context, ev Event) ([]Event, error) {
	b, ok := ev.(Bytes)
	if !ok {
		return []Event{ev}, nil
	}
	s.buf = append(s.buf, b.Data...)

	decision := Plaintext
	if s.mode != TLSOff {
		decision = Inspect(s.buf)
	}

	switch decision {
	case NotYetDecidable:
		return nil, nil
	case Encrypted:
		if s.upgrader == nil {
			return nil, fmt.Errorf("%w: peer started tls but no certificate is configured", ErrSetupFailed)
		}
		buf := s.buf
		s.buf = nil
		if err := s.upgrader.StartTLS(buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSetupFailed, err)
		}
		c.MarkTLSDecided()
		c.InsertAfter(&TLSStage{})
		c.Remove()
		return nil, nil
	}

	if s.mode == TLSRequired {
		return nil, fmt.Errorf("%w: plaintext peer on a tls only listener", ErrSetupFailed)
	}
	buf := s.buf
	s.buf = nil
	c.MarkTLSDecided()
	c.Remove()
	return []Event{Ready{}, Bytes{Data: buf}}, nil
}

// TLSStage marks a connection whose bytes arrive through a TLS session. The
// record layer lives in the transport, so the stage forwards plaintext as
// is.
type TLSStage struct{}

func (s *TLSStage) ID() StageID { return TLSID }

func (s *TLSStage) Inbound(c *Context, ev Event) ([]Event, error) {
	return []Event{ev}, nil
}
