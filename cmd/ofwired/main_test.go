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
	"testing"
	"time"

	"github.com/k-vswitch/ofwire/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_RunStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.UDPListenAddress = "127.0.0.1:0"
	cfg.TLS.Mode = "off"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func Test_RunInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Versions = nil

	err := run(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func Test_RunUnsupportedVersion(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Versions = []uint8{4, 2}

	err := run(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "version 2")
}
