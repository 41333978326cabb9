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

// Package ofctl renders OpenFlow 1.3 flow messages in the text format used
// by ovs-ofctl, for logs and diagnostics.
package ofctl

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/ofp13"
)

const (
	ethTypeIPv4 = 0x0800
	ethTypeARP  = 0x0806
	ethTypeIPv6 = 0x86dd

	ipProtoICMP = 1
	ipProtoTCP  = 6
	ipProtoUDP  = 17
)

var portNames = map[uint32]string{
	ofp13.PortInPort:     "in_port",
	ofp13.PortTable:      "table",
	ofp13.PortNormal:     "normal",
	ofp13.PortFlood:      "flood",
	ofp13.PortAll:        "all",
	ofp13.PortController: "controller",
	ofp13.PortLocal:      "local",
	ofp13.PortAny:        "any",
}

var commandNames = map[uint8]string{
	ofp13.FlowAdd:          "add",
	ofp13.FlowModify:       "modify",
	ofp13.FlowModifyStrict: "modify_strict",
	ofp13.FlowDelete:       "delete",
	ofp13.FlowDeleteStrict: "delete_strict",
}

// FlowString renders m as "table=N priority=N <match> actions=<actions>".
func FlowString(m *ofp13.FlowMod) string {
	flow := fmt.Sprintf("table=%d priority=%d", m.TableID, m.Priority)

	if m.Cookie != 0 {
		flow = fmt.Sprintf("%s cookie=%#x", flow, m.Cookie)
	}
	if m.IdleTimeout != 0 {
		flow = fmt.Sprintf("%s idle_timeout=%d", flow, m.IdleTimeout)
	}
	if m.HardTimeout != 0 {
		flow = fmt.Sprintf("%s hard_timeout=%d", flow, m.HardTimeout)
	}

	if match := MatchString(m.Match); match != "" {
		flow = fmt.Sprintf("%s %s", flow, match)
	}
	return fmt.Sprintf("%s actions=%s", flow, InstructionsString(m.Instructions))
}

// CommandString names the flow mod command, as in "add" or "delete_strict".
func CommandString(command uint8) string {
	if name, ok := commandNames[command]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", command)
}

// MatchString renders a match. The protocol shorthand (ip, tcp, arp, ...)
// comes first, then the remaining fields in match order.
func MatchString(m ofp13.Match) string {
	var parts []string
	if protocol := protocolOf(m); protocol != "" {
		parts = append(parts, protocol)
	}

	for _, f := range m.Fields {
		o, ok := f.(*ofp13.OXM)
		if !ok {
			parts = append(parts, fieldString(f))
			continue
		}
		if o.Class == ofp13.OXMClassBasic && (o.Field == ofp13.FieldEthType || o.Field == ofp13.FieldIPProto) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", matchName(o), valueString(o)))
	}
	return strings.Join(parts, " ")
}

func protocolOf(m ofp13.Match) string {
	ethType, ok := m.Field(ofp13.FieldEthType)
	if !ok {
		return ""
	}

	var protocol string
	switch ethType.Uint16() {
	case ethTypeIPv4:
		protocol = "ip"
	case ethTypeIPv6:
		protocol = "ipv6"
	case ethTypeARP:
		return "arp"
	default:
		return fmt.Sprintf("dl_type=%#04x", ethType.Uint16())
	}

	proto, ok := m.Field(ofp13.FieldIPProto)
	if !ok {
		return protocol
	}
	switch proto.Uint8() {
	case ipProtoTCP:
		return strings.Replace(protocol, "ip", "tcp", 1)
	case ipProtoUDP:
		return strings.Replace(protocol, "ip", "udp", 1)
	case ipProtoICMP:
		if protocol == "ip" {
			return "icmp"
		}
	}
	return fmt.Sprintf("%s nw_proto=%d", protocol, proto.Uint8())
}

// matchName maps field names to the names ovs-ofctl prints in matches.
func matchName(o *ofp13.OXM) string {
	if o.Class != ofp13.OXMClassBasic {
		return o.Name()
	}
	switch o.Field {
	case ofp13.FieldEthSrc:
		return "dl_src"
	case ofp13.FieldEthDst:
		return "dl_dst"
	case ofp13.FieldVlanVID:
		return "dl_vlan"
	case ofp13.FieldIPv4Src:
		return "nw_src"
	case ofp13.FieldIPv4Dst:
		return "nw_dst"
	case ofp13.FieldTunnelID:
		return "tun_id"
	}
	return o.Name()
}

func valueString(o *ofp13.OXM) string {
	if o.Class != ofp13.OXMClassBasic {
		return rawString(o.Value, o.Mask)
	}

	switch o.Field {
	case ofp13.FieldInPort, ofp13.FieldInPhyPort:
		return portString(o.Uint32())
	case ofp13.FieldEthSrc, ofp13.FieldEthDst, ofp13.FieldARPSha, ofp13.FieldARPTha:
		if o.HasMask {
			return fmt.Sprintf("%s/%s", net.HardwareAddr(o.Value), net.HardwareAddr(o.Mask))
		}
		return net.HardwareAddr(o.Value).String()
	case ofp13.FieldIPv4Src, ofp13.FieldIPv4Dst, ofp13.FieldARPSpa, ofp13.FieldARPTpa,
		ofp13.FieldIPv6Src, ofp13.FieldIPv6Dst:
		return ipString(o.Value, o.Mask)
	case ofp13.FieldVlanVID:
		return fmt.Sprintf("%d", o.Uint16()&^ofp13.VlanPresent)
	case ofp13.FieldMetadata, ofp13.FieldTunnelID:
		if o.HasMask {
			return fmt.Sprintf("%#x/%#x", o.Uint64(), beUint(o.Mask))
		}
		return fmt.Sprintf("%#x", o.Uint64())
	case ofp13.FieldEthType:
		return fmt.Sprintf("%#04x", o.Uint16())
	}

	if !o.HasMask && len(o.Value) <= 8 {
		return fmt.Sprintf("%d", beUint(o.Value))
	}
	return rawString(o.Value, o.Mask)
}

func ipString(value, mask []byte) string {
	ip := net.IP(value)
	if len(mask) == 0 {
		return ip.String()
	}
	if ones, bits := net.IPMask(mask).Size(); bits != 0 {
		return fmt.Sprintf("%s/%d", ip, ones)
	}
	return fmt.Sprintf("%s/%s", ip, net.IP(mask))
}

func rawString(value, mask []byte) string {
	if len(mask) == 0 {
		return "0x" + hex.EncodeToString(value)
	}
	return fmt.Sprintf("0x%s/0x%s", hex.EncodeToString(value), hex.EncodeToString(mask))
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func portString(port uint32) string {
	if name, ok := portNames[port]; ok {
		return name
	}
	return fmt.Sprintf("%d", port)
}

func fieldString(f codec.MatchField) string {
	switch f := f.(type) {
	case *ofp13.OXM:
		return fmt.Sprintf("%s=%s", matchName(f), valueString(f))
	case *ofp13.ExperimenterOXM:
		return fmt.Sprintf("experimenter(%#x:%d)=%s", f.Experimenter, f.Field, rawString(f.Data, nil))
	}
	return fmt.Sprintf("oxm(%#04x:%d)", f.OXMClass(), f.OXMField())
}

// InstructionsString renders an instruction list. Apply actions are listed
// bare, as ovs-ofctl does; an empty list renders as "drop".
func InstructionsString(instrs []codec.Instruction) string {
	var actionSet []string
	for _, instr := range instrs {
		switch instr := instr.(type) {
		case *ofp13.InstructionApplyActions:
			for _, a := range instr.Actions {
				actionSet = append(actionSet, ActionString(a))
			}
		case *ofp13.InstructionWriteActions:
			actionSet = append(actionSet, fmt.Sprintf("write_actions(%s)", ActionsString(instr.Actions)))
		case *ofp13.InstructionClearActions:
			actionSet = append(actionSet, "clear_actions")
		case *ofp13.InstructionGotoTable:
			actionSet = append(actionSet, fmt.Sprintf("goto_table:%d", instr.TableID))
		case *ofp13.InstructionWriteMetadata:
			actionSet = append(actionSet, fmt.Sprintf("write_metadata:%#x/%#x", instr.Metadata, instr.MetadataMask))
		case *ofp13.InstructionMeter:
			actionSet = append(actionSet, fmt.Sprintf("meter:%d", instr.MeterID))
		case *ofp13.InstructionExperimenter:
			actionSet = append(actionSet, fmt.Sprintf("experimenter(%#x)", instr.Experimenter))
		default:
			actionSet = append(actionSet, fmt.Sprintf("instruction(%d)", instr.InstructionType()))
		}
	}
	if len(actionSet) == 0 {
		return "drop"
	}
	return strings.Join(actionSet, ",")
}

// ActionsString renders an action list, "drop" when empty.
func ActionsString(actions []codec.Action) string {
	if len(actions) == 0 {
		return "drop"
	}
	actionSet := make([]string, len(actions))
	for i, a := range actions {
		actionSet[i] = ActionString(a)
	}
	return strings.Join(actionSet, ",")
}

func ActionString(a codec.Action) string {
	switch a := a.(type) {
	case *ofp13.ActionOutput:
		switch a.Port {
		case ofp13.PortController:
			return fmt.Sprintf("CONTROLLER:%d", a.MaxLen)
		case ofp13.PortInPort, ofp13.PortNormal, ofp13.PortFlood, ofp13.PortAll, ofp13.PortLocal:
			return portNames[a.Port]
		}
		return fmt.Sprintf("output:%d", a.Port)
	case *ofp13.ActionSetField:
		return setFieldString(a.Field)
	case *ofp13.ActionGroup:
		return fmt.Sprintf("group:%d", a.GroupID)
	case *ofp13.ActionSetQueue:
		return fmt.Sprintf("set_queue:%d", a.QueueID)
	case *ofp13.ActionPushVLAN:
		return fmt.Sprintf("push_vlan:%#04x", a.EtherType)
	case *ofp13.ActionPopVLAN:
		return "pop_vlan"
	case *ofp13.ActionPushMPLS:
		return fmt.Sprintf("push_mpls:%#04x", a.EtherType)
	case *ofp13.ActionPopMPLS:
		return fmt.Sprintf("pop_mpls:%#04x", a.EtherType)
	case *ofp13.ActionPushPBB:
		return fmt.Sprintf("push_pbb:%#04x", a.EtherType)
	case *ofp13.ActionPopPBB:
		return "pop_pbb"
	case *ofp13.ActionSetMPLSTTL:
		return fmt.Sprintf("set_mpls_ttl(%d)", a.TTL)
	case *ofp13.ActionDecMPLSTTL:
		return "dec_mpls_ttl"
	case *ofp13.ActionSetNwTTL:
		return fmt.Sprintf("mod_nw_ttl:%d", a.TTL)
	case *ofp13.ActionDecNwTTL:
		return "dec_ttl"
	case *ofp13.ActionCopyTTLOut:
		return "copy_ttl_out"
	case *ofp13.ActionCopyTTLIn:
		return "copy_ttl_in"
	case *ofp13.ActionExperimenter:
		return fmt.Sprintf("experimenter(%#x)", a.Experimenter)
	}
	return fmt.Sprintf("action(%d)", a.ActionType())
}

func setFieldString(f codec.MatchField) string {
	o, ok := f.(*ofp13.OXM)
	if !ok {
		return fmt.Sprintf("set_field:%s", fieldString(f))
	}
	if o.Class == ofp13.OXMClassBasic {
		switch o.Field {
		case ofp13.FieldEthDst:
			return fmt.Sprintf("mod_dl_dst:%s", valueString(o))
		case ofp13.FieldEthSrc:
			return fmt.Sprintf("mod_dl_src:%s", valueString(o))
		}
	}
	return fmt.Sprintf("set_field:%s->%s", valueString(o), o.Name())
}

// Buffer collects rendered flows, one per line.
type Buffer struct {
	buffer *bytes.Buffer
}

func NewBuffer() *Buffer {
	return &Buffer{buffer: bytes.NewBuffer(nil)}
}

func (b *Buffer) AddFlow(m *ofp13.FlowMod) {
	b.buffer.WriteString(FlowString(m))
	b.buffer.WriteByte('\n')
}

func (b *Buffer) String() string {
	return b.buffer.String()
}

func (b *Buffer) Reset() {
	b.buffer.Reset()
}
