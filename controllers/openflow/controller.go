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

// Package openflow is a reference connection.Handler that identifies the
// switches connecting to an ofwired server.
package openflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/gopacket/layers"
	"github.com/google/uuid"
	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/connection"
	"github.com/k-vswitch/ofwire/frame"
	"github.com/k-vswitch/ofwire/ofctl"
	"github.com/k-vswitch/ofwire/ofp10"
	"github.com/k-vswitch/ofwire/ofp13"

	"k8s.io/klog"
)

// Datapath is what a switch reported in its features reply.
type Datapath struct {
	SessionID    uuid.UUID
	Version      uint8
	DatapathID   uint64
	NTables      uint8
	Capabilities uint32
}

type Options struct {
	// Versions advertised in the hello. Empty means 1.0 and 1.3.
	Versions []uint8
	// TableMiss installs a priority 0 flow in table 0 sending unmatched
	// packets to the controller. Only 1.3 switches get the flow.
	TableMiss bool

	OnFeatures func(s *connection.Session, dp Datapath)
	OnPacketIn func(s *connection.Session, pi *ofp13.PacketIn)
}

// Controller runs the hello, features and echo exchanges for every switch
// of a server. It implements connection.Handler.
type Controller struct {
	opts Options

	mu        sync.RWMutex
	datapaths map[uuid.UUID]Datapath
}

func NewController(opts Options) *Controller {
	if len(opts.Versions) == 0 {
		opts.Versions = []uint8{ofp10.Version, ofp13.Version}
	}
	return &Controller{
		opts:      opts,
		datapaths: make(map[uuid.UUID]Datapath),
	}
}

// Datapath returns the features of the switch on session id.
func (c *Controller) Datapath(id uuid.UUID) (Datapath, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dp, ok := c.datapaths[id]
	return dp, ok
}

// Datapaths lists every identified switch ordered by datapath ID.
func (c *Controller) Datapaths() []Datapath {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dps := make([]Datapath, 0, len(c.datapaths))
	for _, dp := range c.datapaths {
		dps = append(dps, dp)
	}
	sort.Slice(dps, func(i, j int) bool { return dps[i].DatapathID < dps[j].DatapathID })
	return dps
}

func (c *Controller) ConnectionReady(s *connection.Session) {
	// send initial hello which is required to establish a proper connection
	// with an open flow switch.
	v := c.helloVersion(s)
	if v >= ofp13.Version {
		hello := ofp13.NewHello(c.opts.Versions...)
		hello.Version = v
		c.send(s, hello)
	} else {
		c.send(s, &ofp10.Hello{Header: frame.Header{Version: ofp10.Version}})
	}

	klog.Infof("hello (version %d) sent to switch %s", v, s.RemoteAddr())
}

func (c *Controller) helloVersion(s *connection.Session) uint8 {
	if v, ok := s.Version(); ok {
		return v
	}
	var max uint8
	for _, v := range c.opts.Versions {
		if v > max {
			max = v
		}
	}
	return max
}

func (c *Controller) MessageReceived(s *connection.Session, msg codec.Message) {
	switch msg := msg.(type) {
	case *ofp13.Hello:
		if !c.compatible(msg.Versions()) {
			klog.Warningf("switch %s offered versions %v, none of %v", s.RemoteAddr(), msg.Versions(), c.opts.Versions)
			c.rejectHello(s)
			return
		}
		// hello received, next thing to do is send a feature request message
		// to receive the data path ID of the switch
		c.send(s, &ofp13.FeaturesRequest{})

	case *ofp10.Hello:
		c.send(s, &ofp10.FeaturesRequest{})

	case *ofp13.EchoRequest:
		c.send(s, &ofp13.EchoReply{Header: frame.Header{Xid: msg.Xid}, Data: msg.Data})
		klog.V(5).Infof("echo reply sent to switch %s", s.RemoteAddr())

	case *ofp10.EchoRequest:
		c.send(s, &ofp10.EchoReply{Header: frame.Header{Xid: msg.Xid}, Data: msg.Data})
		klog.V(5).Infof("echo reply sent to switch %s", s.RemoteAddr())

	case *ofp13.EchoReply, *ofp10.EchoReply:
		klog.V(5).Infof("received echo reply from switch %s", s.RemoteAddr())

	case *ofp13.FeaturesReply:
		c.setDatapath(s, Datapath{
			SessionID:    s.ID(),
			Version:      ofp13.Version,
			DatapathID:   msg.DatapathID,
			NTables:      msg.NTables,
			Capabilities: msg.Capabilities,
		})

	case *ofp10.FeaturesReply:
		c.setDatapath(s, Datapath{
			SessionID:    s.ID(),
			Version:      ofp10.Version,
			DatapathID:   msg.DatapathID,
			NTables:      msg.NTables,
			Capabilities: msg.Capabilities,
		})

	case *ofp13.Error:
		klog.Warningf("received error from switch %s: %v", s.RemoteAddr(), msg)

	case *ofp10.Error:
		klog.Warningf("received error from switch %s: %v", s.RemoteAddr(), msg)

	case *ofp13.PacketIn:
		// decoding the payload is only worth it when the line is printed
		if klog.V(5) {
			klog.Infof("packet in from switch %s table %d reason %d: %s",
				s.RemoteAddr(), msg.TableID, msg.Reason, packetSummary(msg))
		}
		if c.opts.OnPacketIn != nil {
			c.opts.OnPacketIn(s, msg)
		}

	default:
		klog.V(5).Infof("ignoring message type %d from switch %s", msg.MessageType(), s.RemoteAddr())
	}
}

func (c *Controller) compatible(offered []uint8) bool {
	// a hello without a version bitmap only names its header version, which
	// the session has already accepted.
	if len(offered) == 0 {
		return true
	}
	for _, o := range offered {
		for _, v := range c.opts.Versions {
			if o == v {
				return true
			}
		}
	}
	return false
}

func (c *Controller) rejectHello(s *connection.Session) {
	result := s.Send(&ofp13.Error{
		ErrType: ofp13.ErrorTypeHelloFailed,
		Code:    ofp13.HelloFailedIncompatible,
		Data:    []byte("no common OpenFlow version"),
	})
	go func() {
		<-result
		s.Close()
	}()
}

func (c *Controller) setDatapath(s *connection.Session, dp Datapath) {
	c.mu.Lock()
	c.datapaths[s.ID()] = dp
	c.mu.Unlock()

	klog.Infof("set datapath ID to %s for switch %s (version %d, %d tables)",
		DatapathIDString(dp.DatapathID), s.RemoteAddr(), dp.Version, dp.NTables)

	if c.opts.TableMiss && dp.Version == ofp13.Version {
		flow := ofp13.NewFlowAdd(0, 0, ofp13.NewMatch(),
			ofp13.NewApplyActions(ofp13.NewActionOutput(ofp13.PortController)))
		klog.Infof("adding flow to datapath %s: %s", DatapathIDString(dp.DatapathID), ofctl.FlowString(flow))
		c.send(s, flow)
	}

	if c.opts.OnFeatures != nil {
		c.opts.OnFeatures(s, dp)
	}
}

func (c *Controller) ConnectionIdle(s *connection.Session) {
	if v, _ := s.Version(); v == ofp10.Version {
		c.send(s, &ofp10.EchoRequest{})
	} else {
		c.send(s, &ofp13.EchoRequest{})
	}
	klog.V(5).Infof("switch %s idle, echo request sent", s.RemoteAddr())
}

func (c *Controller) SetupFailed(s *connection.Session, err error) {
	klog.Errorf("error setting up switch connection from %s: %v", s.RemoteAddr(), err)
}

func (c *Controller) ConnectionClosed(s *connection.Session, err error) {
	c.mu.Lock()
	dp, ok := c.datapaths[s.ID()]
	delete(c.datapaths, s.ID())
	c.mu.Unlock()

	if ok {
		klog.Infof("datapath %s disconnected", DatapathIDString(dp.DatapathID))
	}
}

func (c *Controller) send(s *connection.Session, msg codec.Message) {
	msgType := msg.MessageType()
	result := s.Send(msg)
	go func() {
		if err := <-result; err != nil && !errors.Is(err, connection.ErrClosed) {
			klog.Errorf("error sending message type %d to switch %s: %v", msgType, s.RemoteAddr(), err)
		}
	}()
}

// packetSummary describes the ethernet frame of a packet in.
func packetSummary(pi *ofp13.PacketIn) string {
	pkt := pi.Packet()
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return fmt.Sprintf("%d bytes", len(pi.Data))
	}

	parts := []string{fmt.Sprintf("%s > %s %s", eth.SrcMAC, eth.DstMAC, eth.EthernetType)}
	switch l := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		parts = append(parts, fmt.Sprintf("%s > %s %s", l.SrcIP, l.DstIP, l.Protocol))
	case *layers.IPv6:
		parts = append(parts, fmt.Sprintf("%s > %s %s", l.SrcIP, l.DstIP, l.NextHeader))
	}
	if arp, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		parts = append(parts, fmt.Sprintf("arp op %d who-has %s", arp.Operation, netIP(arp.DstProtAddress)))
	}
	return strings.Join(parts, ", ")
}
