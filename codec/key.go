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

// Package codec holds the versioned registry of wire codecs and the key
// makers that index it, both from typed values and from raw bytes.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/k-vswitch/ofwire/frame"
	"github.com/k-vswitch/ofwire/tlv"
)

// Domain separates key spaces; keys of different domains never collide.
type Domain uint8

const (
	DomainMessage Domain = iota + 1
	DomainAction
	DomainInstruction
	DomainMatch
)

func (d Domain) String() string {
	switch d {
	case DomainMessage:
		return "message"
	case DomainAction:
		return "action"
	case DomainInstruction:
		return "instruction"
	case DomainMatch:
		return "match"
	default:
		return fmt.Sprintf("domain(%d)", uint8(d))
	}
}

// Experimenter sentinels. When an element carries one of these discriminants
// its experimenter id is part of the key.
const (
	ExperimenterMessageType uint8  = 4
	ExperimenterActionType  uint16 = 0xffff
	ExperimenterInstrType   uint16 = 0xffff
	ExperimenterClass       uint16 = 0xffff
)

// Key identifies one codec. Experimenter 0 means no experimenter.
type Key struct {
	Domain       Domain
	Version      uint8
	Class        uint16
	Type         uint16
	Experimenter uint32
}

func (k Key) String() string {
	s := fmt.Sprintf("%s/v%d/", k.Domain, k.Version)
	if k.Domain == DomainMatch {
		s += fmt.Sprintf("class=%#04x/field=%d", k.Class, k.Type)
	} else {
		s += fmt.Sprintf("type=%d", k.Type)
	}
	if k.Experimenter != 0 {
		s += fmt.Sprintf("/experimenter=%#x", k.Experimenter)
	}
	return s
}

func MessageKey(version, msgType uint8) Key {
	return Key{Domain: DomainMessage, Version: version, Type: uint16(msgType)}
}

func ExperimenterMessageKey(version uint8, experimenter uint32) Key {
	return Key{Domain: DomainMessage, Version: version, Type: uint16(ExperimenterMessageType), Experimenter: experimenter}
}

func ActionKey(version uint8, actionType uint16) Key {
	return Key{Domain: DomainAction, Version: version, Type: actionType}
}

func ExperimenterActionKey(version uint8, experimenter uint32) Key {
	return Key{Domain: DomainAction, Version: version, Type: ExperimenterActionType, Experimenter: experimenter}
}

func InstructionKey(version uint8, instrType uint16) Key {
	return Key{Domain: DomainInstruction, Version: version, Type: instrType}
}

func ExperimenterInstructionKey(version uint8, experimenter uint32) Key {
	return Key{Domain: DomainInstruction, Version: version, Type: ExperimenterInstrType, Experimenter: experimenter}
}

func MatchKey(version uint8, class uint16, field uint8) Key {
	return Key{Domain: DomainMatch, Version: version, Class: class, Type: uint16(field)}
}

func ExperimenterMatchKey(version uint8, field uint8, experimenter uint32) Key {
	return Key{Domain: DomainMatch, Version: version, Class: ExperimenterClass, Type: uint16(field), Experimenter: experimenter}
}

func experimenterOf(v any) uint32 {
	if e, ok := v.(Experimenter); ok {
		return e.ExperimenterID()
	}
	return 0
}

// MessageKeyOf builds the key a message is serialized under.
func MessageKeyOf(version uint8, m Message) Key {
	t := m.MessageType()
	if t == ExperimenterMessageType {
		return ExperimenterMessageKey(version, experimenterOf(m))
	}
	return MessageKey(version, t)
}

func ActionKeyOf(version uint8, a Action) Key {
	t := a.ActionType()
	if t == ExperimenterActionType {
		return ExperimenterActionKey(version, experimenterOf(a))
	}
	return ActionKey(version, t)
}

func InstructionKeyOf(version uint8, i Instruction) Key {
	t := i.InstructionType()
	if t == ExperimenterInstrType {
		return ExperimenterInstructionKey(version, experimenterOf(i))
	}
	return InstructionKey(version, t)
}

func MatchKeyOf(version uint8, f MatchField) Key {
	class := f.OXMClass()
	if class == ExperimenterClass {
		return ExperimenterMatchKey(version, f.OXMField(), experimenterOf(f))
	}
	return MatchKey(version, class, f.OXMField())
}

// PeekMessageKey reads the key of the message framed at data. The version
// comes from the header; the experimenter id follows the header.
func PeekMessageKey(data []byte) (Key, error) {
	if len(data) < frame.HeaderLen {
		return Key{}, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(data))
	}
	version, t := data[0], data[1]
	if t != ExperimenterMessageType {
		return MessageKey(version, t), nil
	}
	if len(data) < frame.HeaderLen+4 {
		return Key{}, fmt.Errorf("%w: experimenter message of %d bytes", ErrShortMessage, len(data))
	}
	return ExperimenterMessageKey(version, binary.BigEndian.Uint32(data[frame.HeaderLen:])), nil
}

func peekTypeLen(data []byte, sentinel uint16) (uint16, uint32, error) {
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("%w: %d bytes", tlv.ErrShortHeader, len(data))
	}
	t := binary.BigEndian.Uint16(data[0:2])
	if t != sentinel {
		return t, 0, nil
	}
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("%w: experimenter element of %d bytes", tlv.ErrShortHeader, len(data))
	}
	return t, binary.BigEndian.Uint32(data[4:8]), nil
}

func PeekActionKey(version uint8, data []byte) (Key, error) {
	t, exp, err := peekTypeLen(data, ExperimenterActionType)
	if err != nil {
		return Key{}, err
	}
	if t == ExperimenterActionType {
		return ExperimenterActionKey(version, exp), nil
	}
	return ActionKey(version, t), nil
}

func PeekInstructionKey(version uint8, data []byte) (Key, error) {
	t, exp, err := peekTypeLen(data, ExperimenterInstrType)
	if err != nil {
		return Key{}, err
	}
	if t == ExperimenterInstrType {
		return ExperimenterInstructionKey(version, exp), nil
	}
	return InstructionKey(version, t), nil
}

func PeekMatchKey(version uint8, data []byte) (Key, error) {
	class, field, _, _, err := tlv.PeekHeader(data)
	if err != nil {
		return Key{}, err
	}
	if class != ExperimenterClass {
		return MatchKey(version, class, field), nil
	}
	if len(data) < tlv.EntryHeaderLen+4 {
		return Key{}, fmt.Errorf("%w: experimenter field of %d bytes", tlv.ErrShortHeader, len(data))
	}
	return ExperimenterMatchKey(version, field, binary.BigEndian.Uint32(data[4:8])), nil
}
