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

type InstructionGotoTable struct {
	TableID uint8
}

func (i *InstructionGotoTable) InstructionType() uint16 { return InstructionTypeGotoTable }

type InstructionWriteMetadata struct {
	Metadata     uint64
	MetadataMask uint64
}

func (i *InstructionWriteMetadata) InstructionType() uint16 { return InstructionTypeWriteMetadata }

type InstructionWriteActions struct {
	Actions []codec.Action
}

func (i *InstructionWriteActions) InstructionType() uint16 { return InstructionTypeWriteActions }

type InstructionApplyActions struct {
	Actions []codec.Action
}

func NewApplyActions(actions ...codec.Action) *InstructionApplyActions {
	return &InstructionApplyActions{Actions: actions}
}

func (i *InstructionApplyActions) InstructionType() uint16 { return InstructionTypeApplyActions }

type InstructionClearActions struct{}

func (i *InstructionClearActions) InstructionType() uint16 { return InstructionTypeClearActions }

type InstructionMeter struct {
	MeterID uint32
}

func (i *InstructionMeter) InstructionType() uint16 { return InstructionTypeMeter }

// InstructionExperimenter carries an experimenter body verbatim, padded to 8
// bytes on encoding.
type InstructionExperimenter struct {
	Experimenter uint32
	Data         []byte
}

func (i *InstructionExperimenter) InstructionType() uint16 { return InstructionTypeExperimenter }
func (i *InstructionExperimenter) ExperimenterID() uint32  { return i.Experimenter }

// actionsInstruction is the shape shared by write, apply and clear actions:
// type, len, 4 bytes of padding, then an action list.
type actionsInstruction interface {
	codec.Instruction
	actionList() *[]codec.Action
}

func (i *InstructionWriteActions) actionList() *[]codec.Action { return &i.Actions }
func (i *InstructionApplyActions) actionList() *[]codec.Action { return &i.Actions }

// clear_actions never carries actions; the empty list is kept so it shares
// the codec.
func (i *InstructionClearActions) actionList() *[]codec.Action { return new([]codec.Action) }

const actionsInstructionHeaderLen = 8

func actionsInstructionCodec[T actionsInstruction](newT func() T) codec.Codec[T] {
	return codec.Codec[T]{
		Len: func(d codec.Dialect, i T) (int, error) {
			n, err := d.ActionsLen(*i.actionList())
			if err != nil {
				return 0, err
			}
			return actionsInstructionHeaderLen + n, nil
		},
		Encode: func(d codec.Dialect, i T, out *bytes.Buffer) error {
			actions := *i.actionList()
			n, err := d.ActionsLen(actions)
			if err != nil {
				return err
			}
			writeTypeLen(out, i.InstructionType(), actionsInstructionHeaderLen+n)
			out.Write(make([]byte, 4))
			return d.EncodeActions(actions, out)
		},
		Decode: func(d codec.Dialect, data []byte) (T, error) {
			var zero T
			if len(data) < actionsInstructionHeaderLen {
				return zero, fmt.Errorf("%w: actions instruction of %d bytes", tlv.ErrBadLength, len(data))
			}
			actions, err := d.DecodeActions(data[actionsInstructionHeaderLen:])
			if err != nil {
				return zero, err
			}
			i := newT()
			*i.actionList() = actions
			return i, nil
		},
	}
}

var (
	instructionWriteActionsCodec = actionsInstructionCodec(func() *InstructionWriteActions { return &InstructionWriteActions{} })
	instructionApplyActionsCodec = actionsInstructionCodec(func() *InstructionApplyActions { return &InstructionApplyActions{} })
	instructionClearActionsCodec = actionsInstructionCodec(func() *InstructionClearActions { return &InstructionClearActions{} })
)

var instructionGotoTableCodec = codec.Codec[*InstructionGotoTable]{
	Len: func(codec.Dialect, *InstructionGotoTable) (int, error) { return 8, nil },
	Encode: func(_ codec.Dialect, i *InstructionGotoTable, out *bytes.Buffer) error {
		writeTypeLen(out, InstructionTypeGotoTable, 8)
		out.Write([]byte{i.TableID, 0, 0, 0})
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*InstructionGotoTable, error) {
		if err := checkLen(data, 8); err != nil {
			return nil, err
		}
		return &InstructionGotoTable{TableID: data[4]}, nil
	},
}

var instructionWriteMetadataCodec = codec.Codec[*InstructionWriteMetadata]{
	Len: func(codec.Dialect, *InstructionWriteMetadata) (int, error) { return 24, nil },
	Encode: func(_ codec.Dialect, i *InstructionWriteMetadata, out *bytes.Buffer) error {
		var b [24]byte
		binary.BigEndian.PutUint16(b[0:2], InstructionTypeWriteMetadata)
		binary.BigEndian.PutUint16(b[2:4], 24)
		binary.BigEndian.PutUint64(b[8:16], i.Metadata)
		binary.BigEndian.PutUint64(b[16:24], i.MetadataMask)
		out.Write(b[:])
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*InstructionWriteMetadata, error) {
		if err := checkLen(data, 24); err != nil {
			return nil, err
		}
		return &InstructionWriteMetadata{
			Metadata:     binary.BigEndian.Uint64(data[8:16]),
			MetadataMask: binary.BigEndian.Uint64(data[16:24]),
		}, nil
	},
}

var instructionMeterCodec = codec.Codec[*InstructionMeter]{
	Len: func(codec.Dialect, *InstructionMeter) (int, error) { return 8, nil },
	Encode: func(_ codec.Dialect, i *InstructionMeter, out *bytes.Buffer) error {
		writeTypeLen(out, InstructionTypeMeter, 8)
		binary.Write(out, binary.BigEndian, i.MeterID)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*InstructionMeter, error) {
		if err := checkLen(data, 8); err != nil {
			return nil, err
		}
		return &InstructionMeter{MeterID: binary.BigEndian.Uint32(data[4:8])}, nil
	},
}

var instructionExperimenterCodec = codec.Codec[*InstructionExperimenter]{
	Len: func(_ codec.Dialect, i *InstructionExperimenter) (int, error) {
		return tlv.Align(8 + len(i.Data)), nil
	},
	Encode: func(_ codec.Dialect, i *InstructionExperimenter, out *bytes.Buffer) error {
		unpadded := 8 + len(i.Data)
		writeTypeLen(out, InstructionTypeExperimenter, tlv.Align(unpadded))
		binary.Write(out, binary.BigEndian, i.Experimenter)
		out.Write(i.Data)
		tlv.WritePad(out, unpadded)
		return nil
	},
	Decode: func(_ codec.Dialect, data []byte) (*InstructionExperimenter, error) {
		if len(data) < 8 {
			return nil, fmt.Errorf("%w: experimenter instruction of %d bytes", tlv.ErrBadLength, len(data))
		}
		return &InstructionExperimenter{
			Experimenter: binary.BigEndian.Uint32(data[4:8]),
			Data:         append([]byte(nil), data[8:]...),
		}, nil
	},
}

func RegisterExperimenterInstruction(r *codec.Registry, experimenter uint32) error {
	return codec.Register(r, codec.ExperimenterInstructionKey(Version, experimenter), instructionExperimenterCodec)
}
