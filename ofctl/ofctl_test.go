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

package ofctl

import (
	"net"
	"testing"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/ofp13"
)

func mustMAC(s string) net.HardwareAddr {
	hw, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return hw
}

func ipv4Match(fields ...codec.MatchField) ofp13.Match {
	return ofp13.NewMatch(append([]codec.MatchField{ofp13.NewEthType(0x0800)}, fields...)...)
}

func Test_FlowString(t *testing.T) {
	tests := []struct {
		name       string
		flow       *ofp13.FlowMod
		flowString string
	}{
		{
			name: "flow, in_port match with output port",
			flow: ofp13.NewFlowAdd(0, 100, ofp13.NewMatch(ofp13.NewInPort(1)),
				ofp13.NewApplyActions(ofp13.NewActionOutput(2))),
			flowString: "table=0 priority=100 in_port=1 actions=output:2",
		},
		{
			name: "flow, with ipv4 match and output port",
			flow: ofp13.NewFlowAdd(0, 100, ipv4Match(ofp13.NewIPv4Dst(net.ParseIP("10.0.0.1"))),
				ofp13.NewApplyActions(ofp13.NewActionOutput(1))),
			flowString: "table=0 priority=100 ip nw_dst=10.0.0.1 actions=output:1",
		},
		{
			name: "flow, with arp match and output port",
			flow: ofp13.NewFlowAdd(0, 100,
				ofp13.NewMatch(ofp13.NewEthType(0x0806), ofp13.NewARPTpa(net.ParseIP("10.0.0.1"))),
				ofp13.NewApplyActions(ofp13.NewActionOutput(1))),
			flowString: "table=0 priority=100 arp arp_tpa=10.0.0.1 actions=output:1",
		},
		{
			name: "flow, with ipv4 match, mod datalink destination and output port",
			flow: ofp13.NewFlowAdd(0, 100, ipv4Match(ofp13.NewIPv4Dst(net.ParseIP("10.0.0.1"))),
				ofp13.NewApplyActions(
					&ofp13.ActionSetField{Field: ofp13.NewEthDst(mustMAC("aa:bb:cc:dd:ee:ff"))},
					ofp13.NewActionOutput(1),
				)),
			flowString: "table=0 priority=100 ip nw_dst=10.0.0.1 actions=mod_dl_dst:aa:bb:cc:dd:ee:ff,output:1",
		},
		{
			name: "flow, with ipv4 match and goto table",
			flow: ofp13.NewFlowAdd(0, 100, ipv4Match(ofp13.NewIPv4Dst(net.ParseIP("10.0.0.1"))),
				&ofp13.InstructionGotoTable{TableID: 20}),
			flowString: "table=0 priority=100 ip nw_dst=10.0.0.1 actions=goto_table:20",
		},
		{
			name: "flow, tcp shorthand with no instructions",
			flow: ofp13.NewFlowAdd(10, 5, ipv4Match(ofp13.NewIPProto(6), ofp13.NewTCPDst(80))),
			flowString: "table=10 priority=5 tcp tcp_dst=80 actions=drop",
		},
		{
			name: "flow, udp with masked source",
			flow: ofp13.NewFlowAdd(0, 10, ipv4Match(ofp13.NewIPProto(17),
				ofp13.NewIPv4SrcMasked(net.ParseIP("10.0.0.0"), net.CIDRMask(24, 32)), ofp13.NewUDPDst(53)),
				ofp13.NewApplyActions(ofp13.NewActionOutput(ofp13.PortNormal))),
			flowString: "table=0 priority=10 udp nw_src=10.0.0.0/24 udp_dst=53 actions=normal",
		},
		{
			name: "table miss flow",
			flow: ofp13.NewFlowAdd(0, 0, ofp13.NewMatch(),
				ofp13.NewApplyActions(ofp13.NewActionOutput(ofp13.PortController))),
			flowString: "table=0 priority=0 actions=CONTROLLER:65535",
		},
		{
			name: "flow, cookie and timeouts with reserved in_port",
			flow: func() *ofp13.FlowMod {
				m := ofp13.NewFlowAdd(0, 100, ofp13.NewMatch(ofp13.NewInPort(ofp13.PortLocal)),
					ofp13.NewApplyActions(ofp13.NewActionOutput(3)))
				m.Cookie = 0x10
				m.IdleTimeout = 30
				return m
			}(),
			flowString: "table=0 priority=100 cookie=0x10 idle_timeout=30 in_port=local actions=output:3",
		},
		{
			name: "flow, vlan push and tunnel set field",
			flow: ofp13.NewFlowAdd(30, 100, ofp13.NewMatch(ofp13.NewVlanVID(10)),
				ofp13.NewApplyActions(
					&ofp13.ActionPushVLAN{EtherType: 0x8100},
					&ofp13.ActionSetField{Field: ofp13.NewTunnelID(5)},
					&ofp13.ActionDecNwTTL{},
					ofp13.NewActionOutput(1),
				)),
			flowString: "table=30 priority=100 dl_vlan=10 actions=push_vlan:0x8100,set_field:0x5->tunnel_id,dec_ttl,output:1",
		},
		{
			name: "flow, write actions, metadata and meter",
			flow: ofp13.NewFlowAdd(1, 50, ofp13.NewMatch(ofp13.NewMetadataMasked(0x1, 0xff)),
				&ofp13.InstructionMeter{MeterID: 4},
				&ofp13.InstructionClearActions{},
				&ofp13.InstructionWriteActions{Actions: []codec.Action{&ofp13.ActionGroup{GroupID: 7}}},
				&ofp13.InstructionWriteMetadata{Metadata: 0x2, MetadataMask: 0xf},
			),
			flowString: "table=1 priority=50 metadata=0x1/0xff actions=meter:4,clear_actions,write_actions(group:7),write_metadata:0x2/0xf",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			flowString := FlowString(test.flow)
			if flowString != test.flowString {
				t.Logf("actual flow string: %q", flowString)
				t.Logf("expected flow string: %q", test.flowString)
				t.Errorf("unexpected flow string")
			}
		})
	}
}

func Test_CommandString(t *testing.T) {
	tests := []struct {
		command uint8
		want    string
	}{
		{ofp13.FlowAdd, "add"},
		{ofp13.FlowDeleteStrict, "delete_strict"},
		{42, "command(42)"},
	}
	for _, test := range tests {
		if got := CommandString(test.command); got != test.want {
			t.Errorf("CommandString(%d) = %q, want %q", test.command, got, test.want)
		}
	}
}

func Test_AddFlow(t *testing.T) {
	flows := []*ofp13.FlowMod{
		ofp13.NewFlowAdd(0, 10, ofp13.NewMatch(), ofp13.NewApplyActions(ofp13.NewActionOutput(1))),
		ofp13.NewFlowAdd(0, 10, ipv4Match(ofp13.NewIPv4Dst(net.ParseIP("10.0.0.1"))),
			&ofp13.InstructionGotoTable{TableID: 10}),
		ofp13.NewFlowAdd(20, 5, ofp13.NewMatch(ofp13.NewEthType(0x0806), ofp13.NewARPTpa(net.ParseIP("10.0.0.2"))),
			ofp13.NewApplyActions(ofp13.NewActionOutput(5))),
	}

	expectedBufferString := `table=0 priority=10 actions=output:1
table=0 priority=10 ip nw_dst=10.0.0.1 actions=goto_table:10
table=20 priority=5 arp arp_tpa=10.0.0.2 actions=output:5
`

	buffer := NewBuffer()
	for _, flow := range flows {
		buffer.AddFlow(flow)
	}

	actualBufferString := buffer.String()
	if actualBufferString != expectedBufferString {
		t.Logf("actual buffer string: %q", actualBufferString)
		t.Logf("expected buffer string: %q", expectedBufferString)
		t.Errorf("unexpected buffer string")
	}

	buffer.Reset()
	if buffer.String() != "" {
		t.Errorf("buffer not empty after reset")
	}
}
