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

package connection

import (
	"net"
	"os"
	"sync"
	"time"
)

const datagramQueueLen = 64

// datagramConn is the per peer view of a shared packet socket. Each queued
// datagram is handed to one Read.
type datagramConn struct {
	pc   net.PacketConn
	addr net.Addr
	in   chan []byte

	mu       sync.Mutex
	deadline time.Time

	closeOnce sync.Once
	done      chan struct{}
	onClose   func()
}

func newDatagramConn(pc net.PacketConn, addr net.Addr, onClose func()) *datagramConn {
	return &datagramConn{
		pc:      pc,
		addr:    addr,
		in:      make(chan []byte, datagramQueueLen),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// deliver queues a datagram, dropping it if the peer is not keeping up.
func (c *datagramConn) deliver(p []byte) bool {
	select {
	case c.in <- p:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *datagramConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		timeout = t.C
	}

	select {
	case p := <-c.in:
		return copy(b, p), nil
	case <-c.done:
		return 0, net.ErrClosed
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	}
}

func (c *datagramConn) Write(b []byte) (int, error) {
	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}
	return c.pc.WriteTo(b, c.addr)
}

func (c *datagramConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

func (c *datagramConn) LocalAddr() net.Addr  { return c.pc.LocalAddr() }
func (c *datagramConn) RemoteAddr() net.Addr { return c.addr }

func (c *datagramConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *datagramConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

// Writes go straight to the socket and never block for long.
func (c *datagramConn) SetWriteDeadline(time.Time) error {
	return nil
}

// peerTable maps remote addresses to their datagram connections.
type peerTable struct {
	sync.Mutex

	store map[string]*datagramConn
}

func newPeerTable() *peerTable {
	return &peerTable{
		store: make(map[string]*datagramConn),
	}
}

// loadOrStore returns the connection for addr, creating it with create if
// there is none. created reports whether create was called.
func (p *peerTable) loadOrStore(addr net.Addr, create func() *datagramConn) (c *datagramConn, created bool) {
	p.Lock()
	defer p.Unlock()

	key := addr.String()
	if c, exists := p.store[key]; exists {
		return c, false
	}
	c = create()
	p.store[key] = c
	return c, true
}

// delete drops addr if it still maps to c.
func (p *peerTable) delete(addr net.Addr, c *datagramConn) {
	p.Lock()
	defer p.Unlock()

	key := addr.String()
	if p.store[key] == c {
		delete(p.store, key)
	}
}

func (p *peerTable) len() int {
	p.Lock()
	defer p.Unlock()
	return len(p.store)
}

func (p *peerTable) closeAll() {
	p.Lock()
	conns := make([]*datagramConn, 0, len(p.store))
	for _, c := range p.store {
		conns = append(conns, c)
	}
	p.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
