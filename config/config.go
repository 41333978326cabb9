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

// Package config loads the ofwired daemon configuration from a TOML file.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/k-vswitch/ofwire/connection"
	"github.com/k-vswitch/ofwire/pipeline"
)

var ErrInvalid = errors.New("config: invalid configuration")

type TLSConfig struct {
	Mode     string `toml:"mode"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
	CAFile   string `toml:"ca_file"`
	Mutual   bool   `toml:"mutual"`
}

// ControllerConfig tunes the handshake controller run by ofwired.
type ControllerConfig struct {
	TableMiss bool `toml:"table_miss"`
}

type Config struct {
	ListenAddress      string           `toml:"listen_address"`
	UDPListenAddress   string           `toml:"udp_listen_address"`
	Versions           []uint8          `toml:"versions"`
	IdleTimeout        time.Duration    `toml:"-"`
	WriteTimeout       time.Duration    `toml:"-"`
	HandshakeTimeout   time.Duration    `toml:"-"`
	AllowCodecOverride bool             `toml:"allow_codec_override"`
	TLS                TLSConfig        `toml:"tls"`
	Controller         ControllerConfig `toml:"controller"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddress:    connection.DefaultListenAddress,
		Versions:         []uint8{1, 4},
		IdleTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		TLS:              TLSConfig{Mode: "auto"},
	}
}

type fileConfig struct {
	ListenAddress      string           `toml:"listen_address"`
	UDPListenAddress   string           `toml:"udp_listen_address"`
	Versions           []int            `toml:"versions"`
	IdleTimeout        string           `toml:"idle_timeout"`
	WriteTimeout       string           `toml:"write_timeout"`
	HandshakeTimeout   string           `toml:"handshake_timeout"`
	AllowCodecOverride bool             `toml:"allow_codec_override"`
	TLS                TLSConfig        `toml:"tls"`
	Controller         ControllerConfig `toml:"controller"`
}

// Load reads path over DefaultConfig. Keys missing from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}

	if meta.IsDefined("listen_address") {
		cfg.ListenAddress = strings.TrimSpace(raw.ListenAddress)
	}
	if meta.IsDefined("udp_listen_address") {
		cfg.UDPListenAddress = strings.TrimSpace(raw.UDPListenAddress)
	}
	if meta.IsDefined("versions") {
		cfg.Versions = nil
		for _, v := range raw.Versions {
			if v < 1 || v > 0xff {
				return Config{}, fmt.Errorf("%w: version %d out of range", ErrInvalid, v)
			}
			cfg.Versions = append(cfg.Versions, uint8(v))
		}
	}

	durations := []struct {
		key string
		raw string
		out *time.Duration
	}{
		{"idle_timeout", raw.IdleTimeout, &cfg.IdleTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.out = v
	}

	if meta.IsDefined("allow_codec_override") {
		cfg.AllowCodecOverride = raw.AllowCodecOverride
	}
	if meta.IsDefined("tls", "mode") {
		cfg.TLS.Mode = strings.TrimSpace(raw.TLS.Mode)
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.TLS.CertFile = raw.TLS.CertFile
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.TLS.KeyFile = raw.TLS.KeyFile
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.TLS.CAFile = raw.TLS.CAFile
	}
	if meta.IsDefined("tls", "mutual") {
		cfg.TLS.Mutual = raw.TLS.Mutual
	}
	if meta.IsDefined("controller", "table_miss") {
		cfg.Controller.TableMiss = raw.Controller.TableMiss
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddress == "" && c.UDPListenAddress == "" {
		return fmt.Errorf("%w: no listen address", ErrInvalid)
	}
	if len(c.Versions) == 0 {
		return fmt.Errorf("%w: no protocol versions", ErrInvalid)
	}
	if c.IdleTimeout < 0 || c.WriteTimeout < 0 || c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	}
	return c.TLS.Validate()
}

func (t TLSConfig) Validate() error {
	mode, err := pipeline.ParseTLSMode(t.Mode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		return fmt.Errorf("%w: tls cert_file and key_file must be set together", ErrInvalid)
	}
	if mode == pipeline.TLSRequired && t.CertFile == "" {
		return fmt.Errorf("%w: tls mode %q needs a certificate", ErrInvalid, t.Mode)
	}
	if t.Mutual && t.CAFile == "" {
		return fmt.Errorf("%w: mutual tls needs ca_file", ErrInvalid)
	}
	return nil
}

// Enabled reports whether a certificate is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.Mode != "off"
}

// Load builds the server side tls.Config, or nil when TLS is not enabled.
func (t TLSConfig) Load() (*tls.Config, error) {
	if !t.Enabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}

	if t.Mutual {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		caPEM, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("parse tls ca bundle: %s", t.CAFile)
		}
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

// ServerOptions translates the configuration into connection options.
func (c Config) ServerOptions() (connection.Options, error) {
	mode, err := pipeline.ParseTLSMode(c.TLS.Mode)
	if err != nil {
		return connection.Options{}, err
	}
	tlsCfg, err := c.TLS.Load()
	if err != nil {
		return connection.Options{}, err
	}
	return connection.Options{
		TLSConfig:        tlsCfg,
		TLSMode:          mode,
		Versions:         c.Versions,
		IdleTimeout:      c.IdleTimeout,
		WriteTimeout:     c.WriteTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
	}, nil
}
