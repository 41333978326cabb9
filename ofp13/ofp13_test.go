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
	"net"
	"testing"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/frame"
	"github.com/k-vswitch/ofwire/tlv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testExperimenter uint32 = 0x00002320

func newTestDialect(t *testing.T) codec.Dialect {
	r, err := codec.NewRegistry(codec.Options{},
		Register,
		func(r *codec.Registry) error { return RegisterExperimenterAction(r, testExperimenter) },
		func(r *codec.Registry) error { return RegisterExperimenterInstruction(r, testExperimenter) },
		func(r *codec.Registry) error { return RegisterExperimenterMessage(r, testExperimenter) },
		func(r *codec.Registry) error { return RegisterExperimenterOXM(r, testExperimenter, 1, 2) },
	)
	require.NoError(t, err)
	return r.Dialect(Version)
}

func Test_MessageRoundTrip(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name string
		msg  codec.Message
	}{
		{name: "hello, no elements", msg: &Hello{}},
		{name: "hello, version bitmap", msg: NewHello(1, 4)},
		{
			name: "hello, unknown element keeps its body",
			msg: &Hello{Elements: []HelloElement{
				{Type: 7, Data: []byte{1, 2, 3}},
				{Type: HelloElemVersionBitmap, Bitmaps: []uint32{0x10}},
			}},
		},
		{name: "error", msg: &Error{ErrType: ErrorTypeBadRequest, Code: BadRequestBadType, Data: []byte{4, 99, 0, 8}}},
		{name: "experimenter error", msg: &Error{ErrType: ErrorTypeExperimenter, Code: 3, Experimenter: testExperimenter}},
		{name: "echo request", msg: &EchoRequest{Data: []byte("ping")}},
		{name: "echo reply, empty", msg: &EchoReply{}},
		{name: "experimenter", msg: &Experimenter{Experimenter: testExperimenter, ExpType: 12, Data: []byte{9, 9}}},
		{name: "features request", msg: &FeaturesRequest{}},
		{
			name: "features reply",
			msg: &FeaturesReply{
				DatapathID:   0x0000aabbccddeeff,
				NBuffers:     256,
				NTables:      254,
				AuxiliaryID:  1,
				Capabilities: 0x4f,
			},
		},
		{name: "get config request", msg: &GetConfigRequest{}},
		{name: "get config reply", msg: &GetConfigReply{SwitchConfig: SwitchConfig{MissSendLen: 128}}},
		{name: "set config", msg: &SetConfig{SwitchConfig: SwitchConfig{Flags: 1, MissSendLen: 0xffff}}},
		{
			name: "packet in",
			msg: &PacketIn{
				BufferID: NoBuffer,
				TotalLen: 4,
				Reason:   PacketInReasonAction,
				TableID:  3,
				Cookie:   42,
				Match:    NewMatch(NewInPort(7), NewTunnelIDMasked(5, 0xff)),
				Data:     []byte{1, 2, 3, 4},
			},
		},
		{
			name: "flow removed",
			msg: &FlowRemoved{
				Cookie:      1,
				Priority:    100,
				Reason:      2,
				TableID:     1,
				DurationSec: 60,
				IdleTimeout: 10,
				PacketCount: 5,
				ByteCount:   500,
				Match:       NewMatch(NewEthType(0x0800), NewIPv4Dst(net.ParseIP("10.0.0.1"))),
			},
		},
		{
			name: "packet out",
			msg:  NewPacketOut(PortController, []byte{0xde, 0xad}, NewActionOutput(PortFlood)),
		},
		{
			name: "flow mod",
			msg: NewFlowAdd(0, 100, NewMatch(NewInPort(1)),
				NewApplyActions(&ActionPushVLAN{EtherType: 0x8100}, &ActionSetField{Field: NewVlanVID(10)}, NewActionOutput(2)),
				&InstructionGotoTable{TableID: 1},
			),
		},
		{name: "barrier request", msg: &BarrierRequest{}},
		{name: "barrier reply", msg: &BarrierReply{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.msg.MsgHeader().Xid = 0x1234

			n, err := d.MessageLen(test.msg)
			require.NoError(t, err)

			b, err := d.Marshal(test.msg)
			require.NoError(t, err)
			assert.Equal(t, n, len(b))
			assert.Equal(t, Version, b[0])
			assert.Equal(t, test.msg.MessageType(), b[1])

			decoded, err := d.DecodeMessage(frame.Frame(b))
			require.NoError(t, err)

			want := *test.msg.MsgHeader()
			want.Version, want.Type, want.Length = Version, test.msg.MessageType(), uint16(len(b))
			assert.Equal(t, want, *decoded.MsgHeader())
			*decoded.MsgHeader() = *test.msg.MsgHeader()
			assert.Equal(t, test.msg, decoded)
		})
	}
}

func Test_ActionRoundTrip(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name   string
		action codec.Action
		size   int
	}{
		{name: "output", action: &ActionOutput{Port: 1, MaxLen: 128}, size: 16},
		{name: "copy ttl out", action: &ActionCopyTTLOut{}, size: 8},
		{name: "copy ttl in", action: &ActionCopyTTLIn{}, size: 8},
		{name: "set mpls ttl", action: &ActionSetMPLSTTL{TTL: 64}, size: 8},
		{name: "dec mpls ttl", action: &ActionDecMPLSTTL{}, size: 8},
		{name: "push vlan", action: &ActionPushVLAN{EtherType: 0x88a8}, size: 8},
		{name: "pop vlan", action: &ActionPopVLAN{}, size: 8},
		{name: "push mpls", action: &ActionPushMPLS{EtherType: 0x8847}, size: 8},
		{name: "pop mpls", action: &ActionPopMPLS{EtherType: 0x0800}, size: 8},
		{name: "set queue", action: &ActionSetQueue{QueueID: 3}, size: 8},
		{name: "group", action: &ActionGroup{GroupID: 9}, size: 8},
		{name: "set nw ttl", action: &ActionSetNwTTL{TTL: 2}, size: 8},
		{name: "dec nw ttl", action: &ActionDecNwTTL{}, size: 8},
		{name: "set field, 4 byte value", action: &ActionSetField{Field: NewIPv4Src(net.ParseIP("192.168.0.1"))}, size: 16},
		{name: "set field, 6 byte value", action: &ActionSetField{Field: NewEthDst(net.HardwareAddr{1, 2, 3, 4, 5, 6})}, size: 16},
		{name: "set field, 16 byte value", action: &ActionSetField{Field: NewIPv6Dst(net.ParseIP("fe80::1"))}, size: 24},
		{
			name:   "set field, experimenter field",
			action: &ActionSetField{Field: &ExperimenterOXM{Field: 1, Experimenter: testExperimenter, Data: []byte{0, 7}}},
			size:   16,
		},
		{name: "push pbb", action: &ActionPushPBB{EtherType: 0x88e7}, size: 8},
		{name: "pop pbb", action: &ActionPopPBB{}, size: 8},
		{name: "experimenter", action: &ActionExperimenter{Experimenter: testExperimenter, Data: []byte{0, 1, 2, 3, 4, 5, 6, 7}}, size: 16},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n, err := d.ActionLen(test.action)
			require.NoError(t, err)
			assert.Equal(t, test.size, n)

			var out bytes.Buffer
			require.NoError(t, d.EncodeAction(test.action, &out))
			assert.Equal(t, test.size, out.Len())
			assert.Zero(t, out.Len()%tlv.Alignment)

			decoded, err := d.DecodeAction(out.Bytes())
			require.NoError(t, err)
			assert.Equal(t, test.action, decoded)
		})
	}
}

func Test_InstructionRoundTrip(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name  string
		instr codec.Instruction
		size  int
	}{
		{name: "goto table", instr: &InstructionGotoTable{TableID: 5}, size: 8},
		{name: "write metadata", instr: &InstructionWriteMetadata{Metadata: 0xabc, MetadataMask: 0xfff}, size: 24},
		{name: "write actions", instr: &InstructionWriteActions{Actions: []codec.Action{&ActionGroup{GroupID: 1}}}, size: 16},
		{name: "apply actions, empty", instr: &InstructionApplyActions{}, size: 8},
		{name: "apply actions", instr: NewApplyActions(&ActionDecNwTTL{}, NewActionOutput(3)), size: 32},
		{name: "clear actions", instr: &InstructionClearActions{}, size: 8},
		{name: "meter", instr: &InstructionMeter{MeterID: 77}, size: 8},
		{name: "experimenter", instr: &InstructionExperimenter{Experimenter: testExperimenter, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}, size: 16},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, d.EncodeInstructions([]codec.Instruction{test.instr}, &out))
			assert.Equal(t, test.size, out.Len())

			decoded, err := d.DecodeInstructions(out.Bytes())
			require.NoError(t, err)
			require.Len(t, decoded, 1)
			assert.Equal(t, test.instr, decoded[0])
		})
	}
}

func Test_OXMRoundTrip(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name  string
		field codec.MatchField
		wire  []byte
	}{
		{
			name:  "in_port",
			field: NewInPort(1),
			wire:  []byte{0x80, 0x00, 0x00, 0x04, 0, 0, 0, 1},
		},
		{
			name:  "ipv4_src masked",
			field: NewIPv4SrcMasked(net.ParseIP("10.0.0.0"), net.CIDRMask(8, 32)),
			wire:  []byte{0x80, 0x00, 0x17, 0x08, 10, 0, 0, 0, 255, 0, 0, 0},
		},
		{
			name:  "vlan_vid sets present bit",
			field: NewVlanVID(10),
			wire:  []byte{0x80, 0x00, 0x0c, 0x02, 0x10, 0x0a},
		},
		{
			name:  "metadata masked",
			field: NewMetadataMasked(1, 0xff),
			wire: []byte{0x80, 0x00, 0x05, 0x10,
				0, 0, 0, 0, 0, 0, 0, 1,
				0, 0, 0, 0, 0, 0, 0, 0xff},
		},
		{
			name:  "experimenter",
			field: &ExperimenterOXM{Field: 2, HasMask: true, Experimenter: testExperimenter, Data: []byte{1, 0xff}},
			wire:  []byte{0xff, 0xff, 0x05, 0x06, 0x00, 0x00, 0x23, 0x20, 1, 0xff},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, d.EncodeMatchField(test.field, &out))
			assert.Equal(t, test.wire, out.Bytes())

			decoded, err := d.DecodeMatchField(test.wire)
			require.NoError(t, err)
			assert.Equal(t, test.field, decoded)

			fromWire, err := codec.PeekMatchKey(Version, test.wire)
			require.NoError(t, err)
			assert.Equal(t, codec.MatchKeyOf(Version, test.field), fromWire)
		})
	}
}

func Test_OXMRejectsBadSizes(t *testing.T) {
	d := newTestDialect(t)

	var out bytes.Buffer
	err := d.EncodeMatchField(&OXM{tlv.Entry{Class: OXMClassBasic, Field: FieldInPort, Value: []byte{1}}}, &out)
	assert.ErrorIs(t, err, tlv.ErrFieldSize)

	err = d.EncodeMatchField(&OXM{tlv.Entry{Class: OXMClassBasic, Field: FieldEthType, HasMask: true, Value: []byte{8, 0}, Mask: []byte{0xff, 0xff}}}, &out)
	assert.ErrorIs(t, err, tlv.ErrNotMaskable)
	assert.Zero(t, out.Len())

	_, err = d.DecodeMatchField([]byte{0x80, 0x00, 0x00, 0x02, 0, 1})
	assert.ErrorIs(t, err, tlv.ErrFieldSize)
}

func Test_MatchPadding(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name   string
		match  Match
		length uint16
		size   int
	}{
		{name: "wildcard", match: NewMatch(), length: 4, size: 8},
		{name: "in_port", match: NewMatch(NewInPort(1)), length: 12, size: 16},
		{name: "in_port and eth_type", match: NewMatch(NewInPort(1), NewEthType(0x0806)), length: 18, size: 24},
		{name: "exactly aligned", match: NewMatch(NewInPort(1), NewInPort(2), NewEthType(1), NewEthType(2)), length: 32, size: 32},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n, err := matchLen(d, test.match)
			require.NoError(t, err)
			assert.Equal(t, test.size, n)

			var out bytes.Buffer
			require.NoError(t, encodeMatch(d, test.match, &out))
			assert.Equal(t, test.size, out.Len())
			assert.Equal(t, test.length, uint16(out.Bytes()[2])<<8|uint16(out.Bytes()[3]))

			decoded, consumed, err := decodeMatch(d, out.Bytes())
			require.NoError(t, err)
			assert.Equal(t, test.size, consumed)
			assert.Equal(t, test.match, decoded)
		})
	}
}

func Test_ActionListLengthSymmetry(t *testing.T) {
	d := newTestDialect(t)

	lists := map[string][]codec.Action{
		"empty": nil,
		"one":   {NewActionOutput(1)},
		"mixed": {
			&ActionPopVLAN{},
			&ActionSetField{Field: NewEthSrc(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})},
			&ActionExperimenter{Experimenter: testExperimenter},
			&ActionGroup{GroupID: 4},
			NewActionOutput(PortController),
		},
	}

	for name, actions := range lists {
		t.Run(name, func(t *testing.T) {
			n, err := d.ActionsLen(actions)
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, d.EncodeActions(actions, &out))
			assert.Equal(t, n, out.Len())

			decoded, err := d.DecodeActions(out.Bytes())
			require.NoError(t, err)
			assert.Len(t, decoded, len(actions))
		})
	}
}

// A frame whose body is an actions list holding a single copy_ttl_out.
func Test_CopyTTLOutFrame(t *testing.T) {
	d := newTestDialect(t)
	wire := []byte{0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x01, 0x00, 0x0b, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00}

	r := frame.NewReassembler()
	frames, err := r.Feed(append([]byte(nil), wire...))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	h := frames[0].Header()
	assert.Equal(t, frame.Header{Version: 0, Type: 0, Length: 16, Xid: 1}, h)

	actions, err := d.DecodeActions(frames[0].Body())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, &ActionCopyTTLOut{}, actions[0])

	var out bytes.Buffer
	frame.EncodeHeader(&out, h)
	require.NoError(t, d.EncodeActions(actions, &out))
	assert.Equal(t, wire, out.Bytes())
}

func Test_ExperimenterActionLookup(t *testing.T) {
	r := codec.New(codec.Options{})
	require.NoError(t, Register(r))
	require.NoError(t, RegisterExperimenterAction(r, 99))
	d := r.Dialect(Version)

	known := []byte{0xff, 0xff, 0x00, 0x08, 0x00, 0x00, 0x00, 99}
	key, err := codec.PeekActionKey(Version, known)
	require.NoError(t, err)
	assert.Equal(t, codec.ExperimenterActionKey(4, 99), key)

	a, err := d.DecodeAction(known)
	require.NoError(t, err)
	assert.Equal(t, &ActionExperimenter{Experimenter: 99}, a)

	unknown := []byte{0xff, 0xff, 0x00, 0x08, 0x00, 0x00, 0x00, 100}
	_, err = d.DecodeAction(unknown)
	assert.ErrorIs(t, err, codec.ErrMissingCodec)

	assert.ErrorIs(t, RegisterExperimenterAction(r, 99), codec.ErrDuplicateKey)
}

func Test_DecodeErrors(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name string
		wire []byte
		err  error
	}{
		{
			name: "features reply body too short",
			wire: []byte{4, TypeFeaturesReply, 0, 12, 0, 0, 0, 1, 0, 0, 0, 0},
			err:  codec.ErrShortMessage,
		},
		{
			name: "flow mod instruction overruns message",
			wire: func() []byte {
				b, _ := d.Marshal(NewFlowAdd(0, 1, NewMatch(), &InstructionGotoTable{TableID: 1}))
				b[len(b)-5] = 16
				return b
			}(),
			err: tlv.ErrTruncatedElement,
		},
		{
			name: "unknown action in packet out",
			wire: func() []byte {
				b, _ := d.Marshal(NewPacketOut(1, nil, &ActionPopVLAN{}))
				b[len(b)-7] = 0x63
				return b
			}(),
			err: codec.ErrMissingCodec,
		},
		{
			name: "unknown message type",
			wire: []byte{4, 0x55, 0, 8, 0, 0, 0, 1},
			err:  codec.ErrMissingCodec,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := d.DecodeMessage(frame.Frame(test.wire))
			assert.ErrorIs(t, err, test.err)
		})
	}
}

func Test_EncodeNilElements(t *testing.T) {
	d := newTestDialect(t)

	tests := []struct {
		name string
		msg  codec.Message
	}{
		{name: "set field without a field", msg: NewPacketOut(1, nil, &ActionSetField{})},
		{name: "nil action", msg: NewPacketOut(1, nil, NewActionOutput(1), nil)},
		{name: "typed nil action", msg: NewPacketOut(1, nil, (*ActionOutput)(nil))},
		{name: "nil instruction", msg: NewFlowAdd(0, 1, NewMatch(), nil)},
		{name: "nil action in apply actions", msg: NewFlowAdd(0, 1, NewMatch(), NewApplyActions(nil))},
		{name: "typed nil match field", msg: NewFlowAdd(0, 1, NewMatch(NewInPort(1), (*OXM)(nil)))},
		{name: "typed nil message", msg: (*EchoRequest)(nil)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := d.MessageLen(test.msg)
			assert.ErrorIs(t, err, codec.ErrNilElement)

			var out bytes.Buffer
			err = d.EncodeMessage(test.msg, &out)
			assert.ErrorIs(t, err, codec.ErrNilElement)
			assert.Zero(t, out.Len())
		})
	}
}

func Test_EncodeLeavesHeaderUntouched(t *testing.T) {
	d := newTestDialect(t)
	msg := &EchoRequest{Header: frame.Header{Xid: 9}, Data: []byte("ping")}

	b, err := d.Marshal(msg)
	require.NoError(t, err)
	assert.Equal(t, frame.Header{Xid: 9}, msg.Header)
	assert.Equal(t, frame.Header{Version: Version, Type: TypeEchoRequest, Length: uint16(len(b)), Xid: 9},
		frame.Frame(b).Header())
}

func Test_HelloVersions(t *testing.T) {
	assert.Equal(t, []uint8{1, 4}, NewHello(1, 4).Versions())
	assert.Equal(t, []uint32{0x12}, NewHello(1, 4).Elements[0].Bitmaps)
	assert.Nil(t, (&Hello{}).Versions())
	assert.Equal(t, []uint8{33}, NewHello(33).Versions())
}

func Test_PacketInInPort(t *testing.T) {
	m := &PacketIn{Match: NewMatch(NewEthType(0x0800), NewInPort(9))}
	port, ok := m.InPort()
	assert.True(t, ok)
	assert.Equal(t, uint32(9), port)

	_, ok = (&PacketIn{}).InPort()
	assert.False(t, ok)

	_, ok = (&PacketIn{Match: NewMatch((*OXM)(nil))}).InPort()
	assert.False(t, ok)
}
