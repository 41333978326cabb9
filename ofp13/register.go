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
	"github.com/k-vswitch/ofwire/codec"
)

// Register installs every OpenFlow 1.3 codec of this package into r.
// Experimenter codecs are not installed; they are registered per experimenter
// id with the RegisterExperimenter functions.
func Register(r *codec.Registry) error {
	regs := []func() error{
		msg(r, TypeHello, helloCodec),
		msg(r, TypeError, errorCodec),
		msg(r, TypeEchoRequest, echoRequestCodec),
		msg(r, TypeEchoReply, echoReplyCodec),
		msg(r, TypeFeaturesRequest, featuresRequestCodec),
		msg(r, TypeFeaturesReply, featuresReplyCodec),
		msg(r, TypeGetConfigRequest, getConfigRequestCodec),
		msg(r, TypeGetConfigReply, getConfigReplyCodec),
		msg(r, TypeSetConfig, setConfigCodec),
		msg(r, TypePacketIn, packetInCodec),
		msg(r, TypeFlowRemoved, flowRemovedCodec),
		msg(r, TypePacketOut, packetOutCodec),
		msg(r, TypeFlowMod, flowModCodec),
		msg(r, TypeBarrierRequest, barrierRequestCodec),
		msg(r, TypeBarrierReply, barrierReplyCodec),

		action(r, ActionTypeOutput, actionOutputCodec),
		action(r, ActionTypeCopyTTLOut, actionCopyTTLOutCodec),
		action(r, ActionTypeCopyTTLIn, actionCopyTTLInCodec),
		action(r, ActionTypeSetMPLSTTL, actionSetMPLSTTLCodec),
		action(r, ActionTypeDecMPLSTTL, actionDecMPLSTTLCodec),
		action(r, ActionTypePushVLAN, actionPushVLANCodec),
		action(r, ActionTypePopVLAN, actionPopVLANCodec),
		action(r, ActionTypePushMPLS, actionPushMPLSCodec),
		action(r, ActionTypePopMPLS, actionPopMPLSCodec),
		action(r, ActionTypeSetQueue, actionSetQueueCodec),
		action(r, ActionTypeGroup, actionGroupCodec),
		action(r, ActionTypeSetNwTTL, actionSetNwTTLCodec),
		action(r, ActionTypeDecNwTTL, actionDecNwTTLCodec),
		action(r, ActionTypeSetField, actionSetFieldCodec),
		action(r, ActionTypePushPBB, actionPushPBBCodec),
		action(r, ActionTypePopPBB, actionPopPBBCodec),

		instruction(r, InstructionTypeGotoTable, instructionGotoTableCodec),
		instruction(r, InstructionTypeWriteMetadata, instructionWriteMetadataCodec),
		instruction(r, InstructionTypeWriteActions, instructionWriteActionsCodec),
		instruction(r, InstructionTypeApplyActions, instructionApplyActionsCodec),
		instruction(r, InstructionTypeClearActions, instructionClearActionsCodec),
		instruction(r, InstructionTypeMeter, instructionMeterCodec),
	}
	for _, desc := range BasicFields.All() {
		regs = append(regs, field(r, desc.Field))
	}

	for _, register := range regs {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func msg[T any](r *codec.Registry, t uint8, c codec.Codec[T]) func() error {
	return func() error { return codec.Register(r, codec.MessageKey(Version, t), c) }
}

func action[T any](r *codec.Registry, t uint16, c codec.Codec[T]) func() error {
	return func() error { return codec.Register(r, codec.ActionKey(Version, t), c) }
}

func instruction[T any](r *codec.Registry, t uint16, c codec.Codec[T]) func() error {
	return func() error { return codec.Register(r, codec.InstructionKey(Version, t), c) }
}

func field(r *codec.Registry, f uint8) func() error {
	return func() error { return codec.Register(r, codec.MatchKey(Version, OXMClassBasic, f), oxmCodec) }
}
