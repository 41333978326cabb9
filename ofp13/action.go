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

const actionHeaderLen = 4

type ActionOutput struct {
	Port   uint32
	MaxLen uint16
}

// NewActionOutput sends to port. Packets sent to the controller are not
// truncated.
func NewActionOutput(port uint32) *ActionOutput {
	a := &ActionOutput{Port: port}
	if port == PortController {
		a.MaxLen = ControllerMaxLenNoBuffer
	}
	return a
}

func (a *ActionOutput) ActionType() uint16 { return ActionTypeOutput }

type ActionCopyTTLOut struct{}

func (a *ActionCopyTTLOut) ActionType() uint16 { return ActionTypeCopyTTLOut }

type ActionCopyTTLIn struct{}

func (a *ActionCopyTTLIn) ActionType() uint16 { return ActionTypeCopyTTLIn }

type ActionSetMPLSTTL struct {
	TTL uint8
}

func (a *ActionSetMPLSTTL) ActionType() uint16 { return ActionTypeSetMPLSTTL }

type ActionDecMPLSTTL struct{}

func (a *ActionDecMPLSTTL) ActionType() uint16 { return ActionTypeDecMPLSTTL }

type ActionPushVLAN struct {
	EtherType uint16
}

func (a *ActionPushVLAN) ActionType() uint16 { return ActionTypePushVLAN }

type ActionPopVLAN struct{}

func (a *ActionPopVLAN) ActionType() uint16 { return ActionTypePopVLAN }

type ActionPushMPLS struct {
	EtherType uint16
}

func (a *ActionPushMPLS) ActionType() uint16 { return ActionTypePushMPLS }

type ActionPopMPLS struct {
	EtherType uint16
}

func (a *ActionPopMPLS) ActionType() uint16 { return ActionTypePopMPLS }

type ActionSetQueue struct {
	QueueID uint32
}

func (a *ActionSetQueue) ActionType() uint16 { return ActionTypeSetQueue }

type ActionGroup struct {
	GroupID uint32
}

func (a *ActionGroup) ActionType() uint16 { return ActionTypeGroup }

type ActionSetNwTTL struct {
	TTL uint8
}

func (a *ActionSetNwTTL) ActionType() uint16 { return ActionTypeSetNwTTL }

type ActionDecNwTTL struct{}

func (a *ActionDecNwTTL) ActionType() uint16 { return ActionTypeDecNwTTL }

// ActionSetField rewrites one header field. The field is any registered
// match field, experimenter fields included.
type ActionSetField struct {
	Field codec.MatchField
}

func (a *ActionSetField) ActionType() uint16 { return ActionTypeSetField }

type ActionPushPBB struct {
	EtherType uint16
}

func (a *ActionPushPBB) ActionType() uint16 { return ActionTypePushPBB }

type ActionPopPBB struct{}

func (a *ActionPopPBB) ActionType() uint16 { return ActionTypePopPBB }

// ActionExperimenter carries an experimenter body verbatim. Encoding pads the
// body to 8 bytes, so decoded Data includes any padding.
type ActionExperimenter struct {
	Experimenter uint32
	Data         []byte
}

func (a *ActionExperimenter) ActionType() uint16     { return ActionTypeExperimenter }
func (a *ActionExperimenter) ExperimenterID() uint32 { return a.Experimenter }

func writeTypeLen(out *bytes.Buffer, typ uint16, n int) {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], typ)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(n))
	out.Write(hdr[:])
}

func checkLen(data []byte, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: element of %d bytes, want %d", tlv.ErrBadLength, len(data), want)
	}
	return nil
}

// fixedAction builds the codec of an 8 or 16 byte action from functions that
// write and read the bytes after the type/len header.
func fixedAction[T codec.Action](size int, newT func() T, put func(T, []byte), get func(T, []byte)) codec.Codec[T] {
	return codec.Codec[T]{
		Len: func(codec.Dialect, T) (int, error) { return size, nil },
		Encode: func(_ codec.Dialect, a T, out *bytes.Buffer) error {
			body := make([]byte, size-actionHeaderLen)
			if put != nil {
				put(a, body)
			}
			writeTypeLen(out, a.ActionType(), size)
			out.Write(body)
			return nil
		},
		Decode: func(_ codec.Dialect, data []byte) (T, error) {
			a := newT()
			if err := checkLen(data, size); err != nil {
				var zero T
				return zero, err
			}
			if get != nil {
				get(a, data[actionHeaderLen:])
			}
			return a, nil
		},
	}
}

var (
	actionOutputCodec = fixedAction(16, func() *ActionOutput { return &ActionOutput{} },
		func(a *ActionOutput, b []byte) {
			binary.BigEndian.PutUint32(b[0:4], a.Port)
			binary.BigEndian.PutUint16(b[4:6], a.MaxLen)
		},
		func(a *ActionOutput, b []byte) {
			a.Port = binary.BigEndian.Uint32(b[0:4])
			a.MaxLen = binary.BigEndian.Uint16(b[4:6])
		})

	actionCopyTTLOutCodec = fixedAction(8, func() *ActionCopyTTLOut { return &ActionCopyTTLOut{} }, nil, nil)
	actionCopyTTLInCodec  = fixedAction(8, func() *ActionCopyTTLIn { return &ActionCopyTTLIn{} }, nil, nil)
	actionDecMPLSTTLCodec = fixedAction(8, func() *ActionDecMPLSTTL { return &ActionDecMPLSTTL{} }, nil, nil)
	actionPopVLANCodec    = fixedAction(8, func() *ActionPopVLAN { return &ActionPopVLAN{} }, nil, nil)
	actionDecNwTTLCodec   = fixedAction(8, func() *ActionDecNwTTL { return &ActionDecNwTTL{} }, nil, nil)
	actionPopPBBCodec     = fixedAction(8, func() *ActionPopPBB { return &ActionPopPBB{} }, nil, nil)

	actionSetMPLSTTLCodec = fixedAction(8, func() *ActionSetMPLSTTL { return &ActionSetMPLSTTL{} },
		func(a *ActionSetMPLSTTL, b []byte) { b[0] = a.TTL },
		func(a *ActionSetMPLSTTL, b []byte) { a.TTL = b[0] })

	actionSetNwTTLCodec = fixedAction(8, func() *ActionSetNwTTL { return &ActionSetNwTTL{} },
		func(a *ActionSetNwTTL, b []byte) { b[0] = a.TTL },
		func(a *ActionSetNwTTL, b []byte) { a.TTL = b[0] })

	actionPushVLANCodec = fixedAction(8, func() *ActionPushVLAN { return &ActionPushVLAN{} },
		func(a *ActionPushVLAN, b []byte) { binary.BigEndian.PutUint16(b, a.EtherType) },
		func(a *ActionPushVLAN, b []byte) { a.EtherType = binary.BigEndian.Uint16(b) })

	actionPushMPLSCodec = fixedAction(8, func() *ActionPushMPLS { return &ActionPushMPLS{} },
		func(a *ActionPushMPLS, b []byte) { binary.BigEndian.PutUint16(b, a.EtherType) },
		func(a *ActionPushMPLS, b []byte) { a.EtherType = binary.BigEndian.Uint16(b) })

	actionPopMPLSCodec = fixedAction(8, func() *ActionPopMPLS { return &ActionPopMPLS{} },
		func(a *ActionPopMPLS, b []byte) { binary.BigEndian.PutUint16(b, a.EtherType) },
		func(a *ActionPopMPLS, b []byte) { a.EtherType = binary.BigEndian.Uint16(b) })

	actionPushPBBCodec = fixedAction(8, func() *ActionPushPBB { return &ActionPushPBB{} },
		func(a *ActionPushPBB, b []byte) { binary.BigEndian.PutUint16(b, a.EtherType) },
		func(a *ActionPushPBB, b []byte) { a.EtherType = binary.BigEndian.Uint16(b) })

	actionSetQueueCodec = fixedAction(8, func() *ActionSetQueue { return &ActionSetQueue{} },
		func(a *ActionSetQueue, b []byte) { binary.BigEndian.PutUint32(b, a.QueueID) },
		func(a *ActionSetQueue, b []byte) { a.QueueID = binary.BigEndian.Uint32(b) })

	actionGroupCodec = fixedAction(8, func() *ActionGroup { return &ActionGroup{} },
		func(a *ActionGroup, b []byte) { binary.BigEndian.PutUint32(b, a.GroupID) },
		func(a *ActionGroup, b []byte) { a.GroupID = binary.BigEndian.Uint32(b) })
)

var actionSetFieldCodec = codec.Codec[*ActionSetField]{
	Len: func(d codec.Dialect, a *ActionSetField) (int, error) {
		n, err := d.MatchFieldLen(a.Field)
		if err != nil {
			return 0, err
		}
		return tlv.Align(actionHeaderLen + n), nil
	},
	Encode: func(d codec.Dialect, a *ActionSetField, out *bytes.Buffer) error {
		n, err := d.MatchFieldLen(a.Field)
		if err != nil {
			return err
		}
		unpadded := actionHeaderLen + n
		writeTypeLen(out, ActionTypeSetField, tlv.Align(unpadded))
		if err := d.EncodeMatchField(a.Field, out); err != nil {
			return err
		}
		tlv.WritePad(out, unpadded)
		return nil
	},
	Decode: func(d codec.Dialect, data []byte) (*ActionSetField, error) {
		body := data[actionHeaderLen:]
		n, err := codec.MatchLayout.ElementLen(body)
		if err != nil {
			return nil, err
		}
		if n > len(body) {
			return nil, fmt.Errorf("%w: set_field of %d bytes holds a %d byte field", tlv.ErrTruncatedElement, len(data), n)
		}
		f, err := d.DecodeMatchField(body[:n])
		if err != nil {
			return nil, err
		}
		return &ActionSetField{Field: f}, nil
	},
}

var actionExperimenterCodec = codec.Codec[*ActionExperimenter]{
	Len: func(_ codec.Dialect, a *ActionExperimenter) (int, error) {
		return tlv.Align(8 + len(a.Data)), nil
	},
	Encode: func(_ codec.Dialect, a *ActionExperimenter, out *bytes.Buffer) error {
		unpadded := 8 + len(a.Data)
		writeTypeLen(out, ActionTypeExperimenter, tlv.Align(unpadded))
		binary.Write(out, binary.BigEndian, a.Experimenter)
		out.Write(a.Data)
		tlv.WritePad(out, unpadded)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*ActionExperimenter, error) {
		if len(data) < 8 {
			return nil, fmt.Errorf("%w: experimenter action of %d bytes", tlv.ErrBadLength, len(data))
		}
		return &ActionExperimenter{
			Experimenter: binary.BigEndian.Uint32(data[4:8]),
			Data:         append([]byte(nil), data[8:]...),
		}, nil
	},
}

// RegisterExperimenterAction installs the raw experimenter action codec for
// one experimenter id.
func RegisterExperimenterAction(r *codec.Registry, experimenter uint32) error {
	return codec.Register(r, codec.ExperimenterActionKey(Version, experimenter), actionExperimenterCodec)
}
