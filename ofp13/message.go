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
	"github.com/k-vswitch/ofwire/frame"
	"github.com/k-vswitch/ofwire/tlv"
)

// HelloElement is one hello element. For version bitmap elements Bitmaps
// holds the bitmap words; other element types keep their body in Data.
type HelloElement struct {
	Type    uint16
	Bitmaps []uint32
	Data    []byte
}

func (e HelloElement) unpaddedLen() int {
	if e.Type == HelloElemVersionBitmap {
		return 4 + 4*len(e.Bitmaps)
	}
	return 4 + len(e.Data)
}

type Hello struct {
	frame.Header
	Elements []HelloElement
}

// NewHello builds a hello advertising versions in a version bitmap.
func NewHello(versions ...uint8) *Hello {
	if len(versions) == 0 {
		return &Hello{}
	}
	var bitmaps []uint32
	for _, v := range versions {
		word := int(v) / 32
		for len(bitmaps) <= word {
			bitmaps = append(bitmaps, 0)
		}
		bitmaps[word] |= 1 << (v % 32)
	}
	return &Hello{Elements: []HelloElement{{Type: HelloElemVersionBitmap, Bitmaps: bitmaps}}}
}

func (m *Hello) MessageType() uint8 { return TypeHello }

// Versions lists the versions of the first version bitmap, or nil when the
// hello carries none.
func (m *Hello) Versions() []uint8 {
	for _, e := range m.Elements {
		if e.Type != HelloElemVersionBitmap {
			continue
		}
		var versions []uint8
		for word, bits := range e.Bitmaps {
			for bit := 0; bit < 32; bit++ {
				if bits&(1<<bit) != 0 {
					versions = append(versions, uint8(word*32+bit))
				}
			}
		}
		return versions
	}
	return nil
}

type Error struct {
	frame.Header
	ErrType uint16
	Code    uint16
	// Experimenter is set when ErrType is ErrorTypeExperimenter, in which case
	// Code holds the experimenter defined type.
	Experimenter uint32
	Data         []byte
}

func (m *Error) MessageType() uint8 { return TypeError }

func (m *Error) Error() string {
	if m.ErrType == ErrorTypeExperimenter {
		return fmt.Sprintf("openflow error: experimenter %#x type %d", m.Experimenter, m.Code)
	}
	return fmt.Sprintf("openflow error: type %d code %d", m.ErrType, m.Code)
}

type EchoRequest struct {
	frame.Header
	Data []byte
}

func (m *EchoRequest) MessageType() uint8 { return TypeEchoRequest }

type EchoReply struct {
	frame.Header
	Data []byte
}

func (m *EchoReply) MessageType() uint8 { return TypeEchoReply }

// Experimenter is an experimenter message. Codecs are registered per
// experimenter id with RegisterExperimenterMessage.
type Experimenter struct {
	frame.Header
	Experimenter uint32
	ExpType      uint32
	Data         []byte
}

func (m *Experimenter) MessageType() uint8     { return TypeExperimenter }
func (m *Experimenter) ExperimenterID() uint32 { return m.Experimenter }

type FeaturesRequest struct {
	frame.Header
}

func (m *FeaturesRequest) MessageType() uint8 { return TypeFeaturesRequest }

type FeaturesReply struct {
	frame.Header
	DatapathID   uint64
	NBuffers     uint32
	NTables      uint8
	AuxiliaryID  uint8
	Capabilities uint32
	Reserved     uint32
}

func (m *FeaturesReply) MessageType() uint8 { return TypeFeaturesReply }

type GetConfigRequest struct {
	frame.Header
}

func (m *GetConfigRequest) MessageType() uint8 { return TypeGetConfigRequest }

// SwitchConfig is the body of get config replies and set config messages.
type SwitchConfig struct {
	Flags       uint16
	MissSendLen uint16
}

type GetConfigReply struct {
	frame.Header
	SwitchConfig
}

func (m *GetConfigReply) MessageType() uint8 { return TypeGetConfigReply }

type SetConfig struct {
	frame.Header
	SwitchConfig
}

func (m *SetConfig) MessageType() uint8 { return TypeSetConfig }

// Packet in reasons.
const (
	PacketInReasonNoMatch uint8 = iota
	PacketInReasonAction
	PacketInReasonInvalidTTL
)

type PacketIn struct {
	frame.Header
	BufferID uint32
	TotalLen uint16
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	Match    Match
	Data     []byte
}

func (m *PacketIn) MessageType() uint8 { return TypePacketIn }

// InPort returns the in_port match field, if present.
func (m *PacketIn) InPort() (uint32, bool) {
	f, ok := m.Match.Field(FieldInPort)
	if !ok {
		return 0, false
	}
	return f.Uint32(), true
}

type FlowRemoved struct {
	frame.Header
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	TableID      uint8
	DurationSec  uint32
	DurationNsec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        Match
}

func (m *FlowRemoved) MessageType() uint8 { return TypeFlowRemoved }

type PacketOut struct {
	frame.Header
	BufferID uint32
	InPort   uint32
	Actions  []codec.Action
	Data     []byte
}

func (m *PacketOut) MessageType() uint8 { return TypePacketOut }

type FlowMod struct {
	frame.Header
	Cookie       uint64
	CookieMask   uint64
	TableID      uint8
	Command      uint8
	IdleTimeout  uint16
	HardTimeout  uint16
	Priority     uint16
	BufferID     uint32
	OutPort      uint32
	OutGroup     uint32
	Flags        uint16
	Match        Match
	Instructions []codec.Instruction
}

// NewFlowAdd builds an add flow mod with no buffer and wildcard out port
// and group.
func NewFlowAdd(table uint8, priority uint16, match Match, instrs ...codec.Instruction) *FlowMod {
	return &FlowMod{
		TableID:      table,
		Command:      FlowAdd,
		Priority:     priority,
		BufferID:     NoBuffer,
		OutPort:      PortAny,
		OutGroup:     GroupAny,
		Match:        match,
		Instructions: instrs,
	}
}

func (m *FlowMod) MessageType() uint8 { return TypeFlowMod }

type BarrierRequest struct {
	frame.Header
}

func (m *BarrierRequest) MessageType() uint8 { return TypeBarrierRequest }

type BarrierReply struct {
	frame.Header
}

func (m *BarrierReply) MessageType() uint8 { return TypeBarrierReply }

func shortBody(name string, data []byte, want int) error {
	if len(data) < want {
		return fmt.Errorf("%w: %s body of %d bytes, want %d", codec.ErrShortMessage, name, len(data), want)
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// emptyMessage is the codec of messages without a body.
func emptyMessage[T codec.Message](newT func() T) codec.Codec[T] {
	return codec.Codec[T]{
		Len:    func(codec.Dialect, T) (int, error) { return 0, nil },
		Encode: func(codec.Dialect, T, *bytes.Buffer) error { return nil },
		Decode: func(codec.Dialect, []byte) (T, error) { return newT(), nil },
	}
}

var (
	featuresRequestCodec  = emptyMessage(func() *FeaturesRequest { return &FeaturesRequest{} })
	getConfigRequestCodec = emptyMessage(func() *GetConfigRequest { return &GetConfigRequest{} })
	barrierRequestCodec   = emptyMessage(func() *BarrierRequest { return &BarrierRequest{} })
	barrierReplyCodec     = emptyMessage(func() *BarrierReply { return &BarrierReply{} })
)

var helloCodec = codec.Codec[*Hello]{
	Len: func(_ codec.Dialect, m *Hello) (int, error) {
		n := 0
		for _, e := range m.Elements {
			n += tlv.Align(e.unpaddedLen())
		}
		return n, nil
	},
	Encode: func(_ codec.Dialect, m *Hello, out *bytes.Buffer) error {
		for _, e := range m.Elements {
			n := e.unpaddedLen()
			writeTypeLen(out, e.Type, n)
			if e.Type == HelloElemVersionBitmap {
				for _, bits := range e.Bitmaps {
					binary.Write(out, binary.BigEndian, bits)
				}
			} else {
				out.Write(e.Data)
			}
			tlv.WritePad(out, n)
		}
		return nil
	},
	// Element lengths exclude padding, so the next element starts at the
	// aligned end of the previous one. Trailing bytes too short for an
	// element header are ignored.
	Decode: func(_ codec.Dialect, data []byte) (*Hello, error) {
		m := &Hello{}
		for off := 0; len(data)-off >= 4; {
			typ := binary.BigEndian.Uint16(data[off:])
			n := int(binary.BigEndian.Uint16(data[off+2:]))
			if n < 4 {
				return nil, fmt.Errorf("%w: hello element length %d", tlv.ErrBadLength, n)
			}
			if off+n > len(data) {
				return nil, fmt.Errorf("%w: hello element of %d bytes at offset %d", tlv.ErrTruncatedElement, n, off)
			}
			body := data[off+4 : off+n]
			e := HelloElement{Type: typ}
			if typ == HelloElemVersionBitmap {
				for i := 0; i+4 <= len(body); i += 4 {
					e.Bitmaps = append(e.Bitmaps, binary.BigEndian.Uint32(body[i:]))
				}
			} else {
				e.Data = copyBytes(body)
			}
			m.Elements = append(m.Elements, e)
			off += tlv.Align(n)
		}
		return m, nil
	},
}

var errorCodec = codec.Codec[*Error]{
	Len: func(_ codec.Dialect, m *Error) (int, error) {
		if m.ErrType == ErrorTypeExperimenter {
			return 8 + len(m.Data), nil
		}
		return 4 + len(m.Data), nil
	},
	Encode: func(_ codec.Dialect, m *Error, out *bytes.Buffer) error {
		binary.Write(out, binary.BigEndian, m.ErrType)
		binary.Write(out, binary.BigEndian, m.Code)
		if m.ErrType == ErrorTypeExperimenter {
			binary.Write(out, binary.BigEndian, m.Experimenter)
		}
		out.Write(m.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*Error, error) {
		if err := shortBody("error", data, 4); err != nil {
			return nil, err
		}
		m := &Error{
			ErrType: binary.BigEndian.Uint16(data[0:2]),
			Code:    binary.BigEndian.Uint16(data[2:4]),
		}
		rest := data[4:]
		if m.ErrType == ErrorTypeExperimenter {
			if err := shortBody("experimenter error", data, 8); err != nil {
				return nil, err
			}
			m.Experimenter = binary.BigEndian.Uint32(data[4:8])
			rest = data[8:]
		}
		m.Data = copyBytes(rest)
		return m, nil
	},
}

var echoRequestCodec = codec.Codec[*EchoRequest]{
	Len: func(_ codec.Dialect, m *EchoRequest) (int, error) { return len(m.Data), nil },
	Encode: func(_ codec.Dialect, m *EchoRequest, out *bytes.Buffer) error {
		out.Write(m.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*EchoRequest, error) {
		return &EchoRequest{Data: copyBytes(data)}, nil
	},
}

var echoReplyCodec = codec.Codec[*EchoReply]{
	Len: func(_ codec.Dialect, m *EchoReply) (int, error) { return len(m.Data), nil },
	Encode: func(_ codec.Dialect, m *EchoReply, out *bytes.Buffer) error {
		out.Write(m.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*EchoReply, error) {
		return &EchoReply{Data: copyBytes(data)}, nil
	},
}

var experimenterCodec = codec.Codec[*Experimenter]{
	Len: func(_ codec.Dialect, m *Experimenter) (int, error) { return 8 + len(m.Data), nil },
	Encode: func(_ codec.Dialect, m *Experimenter, out *bytes.Buffer) error {
		binary.Write(out, binary.BigEndian, m.Experimenter)
		binary.Write(out, binary.BigEndian, m.ExpType)
		out.Write(m.Data)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*Experimenter, error) {
		if err := shortBody("experimenter", data, 8); err != nil {
			return nil, err
		}
		return &Experimenter{
			Experimenter: binary.BigEndian.Uint32(data[0:4]),
			ExpType:      binary.BigEndian.Uint32(data[4:8]),
			Data:         copyBytes(data[8:]),
		}, nil
	},
}

func RegisterExperimenterMessage(r *codec.Registry, experimenter uint32) error {
	return codec.Register(r, codec.ExperimenterMessageKey(Version, experimenter), experimenterCodec)
}

const featuresReplyBodyLen = 24

var featuresReplyCodec = codec.Codec[*FeaturesReply]{
	Len: func(codec.Dialect, *FeaturesReply) (int, error) { return featuresReplyBodyLen, nil },
	Encode: func(_ codec.Dialect, m *FeaturesReply, out *bytes.Buffer) error {
		var b [featuresReplyBodyLen]byte
		binary.BigEndian.PutUint64(b[0:8], m.DatapathID)
		binary.BigEndian.PutUint32(b[8:12], m.NBuffers)
		b[12] = m.NTables
		b[13] = m.AuxiliaryID
		binary.BigEndian.PutUint32(b[16:20], m.Capabilities)
		binary.BigEndian.PutUint32(b[20:24], m.Reserved)
		out.Write(b[:])
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*FeaturesReply, error) {
		if err := shortBody("features reply", data, featuresReplyBodyLen); err != nil {
			return nil, err
		}
		return &FeaturesReply{
			DatapathID:   binary.BigEndian.Uint64(data[0:8]),
			NBuffers:     binary.BigEndian.Uint32(data[8:12]),
			NTables:      data[12],
			AuxiliaryID:  data[13],
			Capabilities: binary.BigEndian.Uint32(data[16:20]),
			Reserved:     binary.BigEndian.Uint32(data[20:24]),
		}, nil
	},
}

func encodeSwitchConfig(c SwitchConfig, out *bytes.Buffer) {
	binary.Write(out, binary.BigEndian, c.Flags)
	binary.Write(out, binary.BigEndian, c.MissSendLen)
}

func decodeSwitchConfig(data []byte) (SwitchConfig, error) {
	if err := shortBody("switch config", data, 4); err != nil {
		return SwitchConfig{}, err
	}
	return SwitchConfig{
		Flags:       binary.BigEndian.Uint16(data[0:2]),
		MissSendLen: binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

var getConfigReplyCodec = codec.Codec[*GetConfigReply]{
	Len: func(codec.Dialect, *GetConfigReply) (int, error) { return 4, nil },
	Encode: func(_ codec.Dialect, m *GetConfigReply, out *bytes.Buffer) error {
		encodeSwitchConfig(m.SwitchConfig, out)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*GetConfigReply, error) {
		c, err := decodeSwitchConfig(data)
		if err != nil {
			return nil, err
		}
		return &GetConfigReply{SwitchConfig: c}, nil
	},
}

var setConfigCodec = codec.Codec[*SetConfig]{
	Len: func(codec.Dialect, *SetConfig) (int, error) { return 4, nil },
	Encode: func(_ codec.Dialect, m *SetConfig, out *bytes.Buffer) error {
		encodeSwitchConfig(m.SwitchConfig, out)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*SetConfig, error) {
		c, err := decodeSwitchConfig(data)
		if err != nil {
			return nil, err
		}
		return &SetConfig{SwitchConfig: c}, nil
	},
}

const packetInFixedLen = 16

var packetInCodec = codec.Codec[*PacketIn]{
	Len: func(d codec.Dialect, m *PacketIn) (int, error) {
		n, err := matchLen(d, m.Match)
		if err != nil {
			return 0, err
		}
		return packetInFixedLen + n + 2 + len(m.Data), nil
	},
	Encode: func(d codec.Dialect, m *PacketIn, out *bytes.Buffer) error {
		var b [packetInFixedLen]byte
		binary.BigEndian.PutUint32(b[0:4], m.BufferID)
		binary.BigEndian.PutUint16(b[4:6], m.TotalLen)
		b[6] = m.Reason
		b[7] = m.TableID
		binary.BigEndian.PutUint64(b[8:16], m.Cookie)
		out.Write(b[:])
		if err := encodeMatch(d, m.Match, out); err != nil {
			return err
		}
		out.Write([]byte{0, 0})
		out.Write(m.Data)
		return nil
	},
	Decode: func(d codec.Dialect, data []byte) (*PacketIn, error) {
		if err := shortBody("packet in", data, packetInFixedLen); err != nil {
			return nil, err
		}
		match, n, err := decodeMatch(d, data[packetInFixedLen:])
		if err != nil {
			return nil, err
		}
		rest := data[packetInFixedLen+n:]
		if err := shortBody("packet in", rest, 2); err != nil {
			return nil, err
		}
		return &PacketIn{
			BufferID: binary.BigEndian.Uint32(data[0:4]),
			TotalLen: binary.BigEndian.Uint16(data[4:6]),
			Reason:   data[6],
			TableID:  data[7],
			Cookie:   binary.BigEndian.Uint64(data[8:16]),
			Match:    match,
			Data:     copyBytes(rest[2:]),
		}, nil
	},
}

const flowRemovedFixedLen = 40

var flowRemovedCodec = codec.Codec[*FlowRemoved]{
	Len: func(d codec.Dialect, m *FlowRemoved) (int, error) {
		n, err := matchLen(d, m.Match)
		if err != nil {
			return 0, err
		}
		return flowRemovedFixedLen + n, nil
	},
	Encode: func(d codec.Dialect, m *FlowRemoved, out *bytes.Buffer) error {
		var b [flowRemovedFixedLen]byte
		binary.BigEndian.PutUint64(b[0:8], m.Cookie)
		binary.BigEndian.PutUint16(b[8:10], m.Priority)
		b[10] = m.Reason
		b[11] = m.TableID
		binary.BigEndian.PutUint32(b[12:16], m.DurationSec)
		binary.BigEndian.PutUint32(b[16:20], m.DurationNsec)
		binary.BigEndian.PutUint16(b[20:22], m.IdleTimeout)
		binary.BigEndian.PutUint16(b[22:24], m.HardTimeout)
		binary.BigEndian.PutUint64(b[24:32], m.PacketCount)
		binary.BigEndian.PutUint64(b[32:40], m.ByteCount)
		out.Write(b[:])
		return encodeMatch(d, m.Match, out)
	},
	Decode: func(d codec.Dialect, data []byte) (*FlowRemoved, error) {
		if err := shortBody("flow removed", data, flowRemovedFixedLen); err != nil {
			return nil, err
		}
		match, _, err := decodeMatch(d, data[flowRemovedFixedLen:])
		if err != nil {
			return nil, err
		}
		return &FlowRemoved{
			Cookie:       binary.BigEndian.Uint64(data[0:8]),
			Priority:     binary.BigEndian.Uint16(data[8:10]),
			Reason:       data[10],
			TableID:      data[11],
			DurationSec:  binary.BigEndian.Uint32(data[12:16]),
			DurationNsec: binary.BigEndian.Uint32(data[16:20]),
			IdleTimeout:  binary.BigEndian.Uint16(data[20:22]),
			HardTimeout:  binary.BigEndian.Uint16(data[22:24]),
			PacketCount:  binary.BigEndian.Uint64(data[24:32]),
			ByteCount:    binary.BigEndian.Uint64(data[32:40]),
			Match:        match,
		}, nil
	},
}

const packetOutFixedLen = 16

var packetOutCodec = codec.Codec[*PacketOut]{
	Len: func(d codec.Dialect, m *PacketOut) (int, error) {
		n, err := d.ActionsLen(m.Actions)
		if err != nil {
			return 0, err
		}
		return packetOutFixedLen + n + len(m.Data), nil
	},
	Encode: func(d codec.Dialect, m *PacketOut, out *bytes.Buffer) error {
		n, err := d.ActionsLen(m.Actions)
		if err != nil {
			return err
		}
		var b [packetOutFixedLen]byte
		binary.BigEndian.PutUint32(b[0:4], m.BufferID)
		binary.BigEndian.PutUint32(b[4:8], m.InPort)
		binary.BigEndian.PutUint16(b[8:10], uint16(n))
		out.Write(b[:])
		if err := d.EncodeActions(m.Actions, out); err != nil {
			return err
		}
		out.Write(m.Data)
		return nil
	},
	Decode: func(d codec.Dialect, data []byte) (*PacketOut, error) {
		if err := shortBody("packet out", data, packetOutFixedLen); err != nil {
			return nil, err
		}
		n := int(binary.BigEndian.Uint16(data[8:10]))
		if err := shortBody("packet out", data, packetOutFixedLen+n); err != nil {
			return nil, err
		}
		actions, err := d.DecodeActions(data[packetOutFixedLen : packetOutFixedLen+n])
		if err != nil {
			return nil, err
		}
		return &PacketOut{
			BufferID: binary.BigEndian.Uint32(data[0:4]),
			InPort:   binary.BigEndian.Uint32(data[4:8]),
			Actions:  actions,
			Data:     copyBytes(data[packetOutFixedLen+n:]),
		}, nil
	},
}

const flowModFixedLen = 40

var flowModCodec = codec.Codec[*FlowMod]{
	Len: func(d codec.Dialect, m *FlowMod) (int, error) {
		n, err := matchLen(d, m.Match)
		if err != nil {
			return 0, err
		}
		i, err := d.InstructionsLen(m.Instructions)
		if err != nil {
			return 0, err
		}
		return flowModFixedLen + n + i, nil
	},
	Encode: func(d codec.Dialect, m *FlowMod, out *bytes.Buffer) error {
		var b [flowModFixedLen]byte
		binary.BigEndian.PutUint64(b[0:8], m.Cookie)
		binary.BigEndian.PutUint64(b[8:16], m.CookieMask)
		b[16] = m.TableID
		b[17] = m.Command
		binary.BigEndian.PutUint16(b[18:20], m.IdleTimeout)
		binary.BigEndian.PutUint16(b[20:22], m.HardTimeout)
		binary.BigEndian.PutUint16(b[22:24], m.Priority)
		binary.BigEndian.PutUint32(b[24:28], m.BufferID)
		binary.BigEndian.PutUint32(b[28:32], m.OutPort)
		binary.BigEndian.PutUint32(b[32:36], m.OutGroup)
		binary.BigEndian.PutUint16(b[36:38], m.Flags)
		out.Write(b[:])
		if err := encodeMatch(d, m.Match, out); err != nil {
			return err
		}
		return d.EncodeInstructions(m.Instructions, out)
	},
	Decode: func(d codec.Dialect, data []byte) (*FlowMod, error) {
		if err := shortBody("flow mod", data, flowModFixedLen); err != nil {
			return nil, err
		}
		match, n, err := decodeMatch(d, data[flowModFixedLen:])
		if err != nil {
			return nil, err
		}
		instrs, err := d.DecodeInstructions(data[flowModFixedLen+n:])
		if err != nil {
			return nil, err
		}
		return &FlowMod{
			Cookie:       binary.BigEndian.Uint64(data[0:8]),
			CookieMask:   binary.BigEndian.Uint64(data[8:16]),
			TableID:      data[16],
			Command:      data[17],
			IdleTimeout:  binary.BigEndian.Uint16(data[18:20]),
			HardTimeout:  binary.BigEndian.Uint16(data[20:22]),
			Priority:     binary.BigEndian.Uint16(data[22:24]),
			BufferID:     binary.BigEndian.Uint32(data[24:28]),
			OutPort:      binary.BigEndian.Uint32(data[28:32]),
			OutGroup:     binary.BigEndian.Uint32(data[32:36]),
			Flags:        binary.BigEndian.Uint16(data[36:38]),
			Match:        match,
			Instructions: instrs,
		}, nil
	},
}
