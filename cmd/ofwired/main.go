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

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/config"
	"github.com/k-vswitch/ofwire/connection"
	"github.com/k-vswitch/ofwire/controllers/openflow"
	"github.com/k-vswitch/ofwire/ofp10"
	"github.com/k-vswitch/ofwire/ofp13"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog"
)

func main() {
	var configPath string
	var listenAddress string
	var udpListenAddress string

	flag.StringVar(&configPath, "config", "", "Path to the TOML configuration file. Defaults apply when unset.")
	flag.StringVar(&listenAddress, "listen-address", "", "TCP address to accept switch connections on, overrides the config file.")
	flag.StringVar(&udpListenAddress, "udp-listen-address", "", "UDP address to accept switch datagrams on, overrides the config file.")

	klog.InitFlags(flag.CommandLine)
	flag.Parse()

	klog.Info("starting ofwired")

	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			klog.Errorf("error loading config: %v", err)
			os.Exit(1)
		}
	}
	if listenAddress != "" {
		cfg.ListenAddress = listenAddress
	}
	if udpListenAddress != "" {
		cfg.UDPListenAddress = udpListenAddress
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		klog.Errorf("error running ofwired: %v", err)
		os.Exit(1)
	}
	klog.Info("ofwired stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, err := codec.NewRegistry(codec.Options{AllowOverride: cfg.AllowCodecOverride},
		ofp13.Register, ofp10.Register)
	if err != nil {
		return err
	}
	if err := checkVersions(cfg.Versions, reg.Versions()); err != nil {
		return err
	}

	opts, err := cfg.ServerOptions()
	if err != nil {
		return err
	}

	var ctrl *openflow.Controller
	ctrl = openflow.NewController(openflow.Options{
		Versions:  cfg.Versions,
		TableMiss: cfg.Controller.TableMiss,
		OnFeatures: func(s *connection.Session, dp openflow.Datapath) {
			klog.Infof("switch %s connected as datapath %s, %d switches connected",
				s.RemoteAddr(), openflow.DatapathIDString(dp.DatapathID), len(ctrl.Datapaths()))
		},
	})
	server := connection.NewServer(reg, ctrl, opts)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.ListenAddress != "" {
		g.Go(func() error {
			return server.ListenAndServe(ctx, cfg.ListenAddress)
		})
	}
	if cfg.UDPListenAddress != "" {
		g.Go(func() error {
			pc, err := net.ListenPacket("udp", cfg.UDPListenAddress)
			if err != nil {
				return err
			}
			return server.ServeUDP(ctx, pc)
		})
	}
	return g.Wait()
}

// checkVersions fails for a configured version no dialect was registered for.
func checkVersions(configured, registered []uint8) error {
	known := make(map[uint8]bool, len(registered))
	for _, v := range registered {
		known[v] = true
	}
	for _, v := range configured {
		if !known[v] {
			return fmt.Errorf("%w: version %d has no registered codecs", config.ErrInvalid, v)
		}
	}
	return nil
}
