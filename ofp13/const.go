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

// Package ofp13 implements the OpenFlow 1.3 messages, actions, instructions
// and OXM match fields as codecs for the codec registry.
package ofp13

// Version is the wire version of OpenFlow 1.3.
const Version uint8 = 4

// Message types.
const (
	TypeHello            uint8 = 0
	TypeError            uint8 = 1
	TypeEchoRequest      uint8 = 2
	TypeEchoReply        uint8 = 3
	TypeExperimenter     uint8 = 4
	TypeFeaturesRequest  uint8 = 5
	TypeFeaturesReply    uint8 = 6
	TypeGetConfigRequest uint8 = 7
	TypeGetConfigReply   uint8 = 8
	TypeSetConfig        uint8 = 9
	TypePacketIn         uint8 = 10
	TypeFlowRemoved      uint8 = 11
	TypePortStatus       uint8 = 12
	TypePacketOut        uint8 = 13
	TypeFlowMod          uint8 = 14
	TypeBarrierRequest   uint8 = 20
	TypeBarrierReply     uint8 = 21
)

// Action types.
const (
	ActionTypeOutput       uint16 = 0
	ActionTypeCopyTTLOut   uint16 = 11
	ActionTypeCopyTTLIn    uint16 = 12
	ActionTypeSetMPLSTTL   uint16 = 15
	ActionTypeDecMPLSTTL   uint16 = 16
	ActionTypePushVLAN     uint16 = 17
	ActionTypePopVLAN      uint16 = 18
	ActionTypePushMPLS     uint16 = 19
	ActionTypePopMPLS      uint16 = 20
	ActionTypeSetQueue     uint16 = 21
	ActionTypeGroup        uint16 = 22
	ActionTypeSetNwTTL     uint16 = 23
	ActionTypeDecNwTTL     uint16 = 24
	ActionTypeSetField     uint16 = 25
	ActionTypePushPBB      uint16 = 26
	ActionTypePopPBB       uint16 = 27
	ActionTypeExperimenter uint16 = 0xffff
)

// Instruction types.
const (
	InstructionTypeGotoTable     uint16 = 1
	InstructionTypeWriteMetadata uint16 = 2
	InstructionTypeWriteActions  uint16 = 3
	InstructionTypeApplyActions  uint16 = 4
	InstructionTypeClearActions  uint16 = 5
	InstructionTypeMeter         uint16 = 6
	InstructionTypeExperimenter  uint16 = 0xffff
)

// OXM classes.
const (
	OXMClassNXM0         uint16 = 0x0000
	OXMClassNXM1         uint16 = 0x0001
	OXMClassBasic        uint16 = 0x8000
	OXMClassExperimenter uint16 = 0xffff
)

// OpenFlow basic match fields.
const (
	FieldInPort uint8 = iota
	FieldInPhyPort
	FieldMetadata
	FieldEthDst
	FieldEthSrc
	FieldEthType
	FieldVlanVID
	FieldVlanPCP
	FieldIPDSCP
	FieldIPECN
	FieldIPProto
	FieldIPv4Src
	FieldIPv4Dst
	FieldTCPSrc
	FieldTCPDst
	FieldUDPSrc
	FieldUDPDst
	FieldSCTPSrc
	FieldSCTPDst
	FieldICMPv4Type
	FieldICMPv4Code
	FieldARPOp
	FieldARPSpa
	FieldARPTpa
	FieldARPSha
	FieldARPTha
	FieldIPv6Src
	FieldIPv6Dst
	FieldIPv6FLabel
	FieldICMPv6Type
	FieldICMPv6Code
	FieldIPv6NDTarget
	FieldIPv6NDSLL
	FieldIPv6NDTLL
	FieldMPLSLabel
	FieldMPLSTC
	FieldMPLSBOS
	FieldPBBISID
	FieldTunnelID
	FieldIPv6ExtHdr
)

// Reserved ports, buffers and groups.
const (
	PortMax        uint32 = 0xffffff00
	PortInPort     uint32 = 0xfffffff8
	PortTable      uint32 = 0xfffffff9
	PortNormal     uint32 = 0xfffffffa
	PortFlood      uint32 = 0xfffffffb
	PortAll        uint32 = 0xfffffffc
	PortController uint32 = 0xfffffffd
	PortLocal      uint32 = 0xfffffffe
	PortAny        uint32 = 0xffffffff

	NoBuffer uint32 = 0xffffffff
	GroupAny uint32 = 0xffffffff

	// ControllerMaxLenNoBuffer asks the switch to send the whole packet.
	ControllerMaxLenNoBuffer uint16 = 0xffff
)

// Flow mod commands.
const (
	FlowAdd uint8 = iota
	FlowModify
	FlowModifyStrict
	FlowDelete
	FlowDeleteStrict
)

// Flow mod flags.
const (
	FlowFlagSendFlowRem  uint16 = 1 << 0
	FlowFlagCheckOverlap uint16 = 1 << 1
	FlowFlagResetCounts  uint16 = 1 << 2
	FlowFlagNoPktCounts  uint16 = 1 << 3
	FlowFlagNoBytCounts  uint16 = 1 << 4
)

// MatchTypeOXM is the only match type defined by OpenFlow 1.3.
const MatchTypeOXM uint16 = 1

// HelloElemVersionBitmap is the hello element listing supported versions.
const HelloElemVersionBitmap uint16 = 1

// ErrorTypeExperimenter marks an experimenter error message.
const ErrorTypeExperimenter uint16 = 0xffff

// Error types.
const (
	ErrorTypeHelloFailed        uint16 = 0
	ErrorTypeBadRequest         uint16 = 1
	ErrorTypeBadAction          uint16 = 2
	ErrorTypeBadInstruction     uint16 = 3
	ErrorTypeBadMatch           uint16 = 4
	ErrorTypeFlowModFailed      uint16 = 5
	ErrorTypeSwitchConfigFailed uint16 = 10
)

// Hello failed and bad request codes used by the handshake.
const (
	HelloFailedIncompatible uint16 = 0
	BadRequestBadVersion    uint16 = 0
	BadRequestBadType       uint16 = 1
	BadRequestBadExperiment uint16 = 3
)
