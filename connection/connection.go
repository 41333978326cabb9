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

// Package connection accepts switch connections and runs a protocol
// pipeline per connection.
package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/pipeline"

	"k8s.io/klog"
)

// DefaultListenAddress is the IANA assigned OpenFlow port.
const DefaultListenAddress = ":6653"

type Options struct {
	// TLSConfig enables TLS for peers that start a TLS handshake.
	TLSConfig *tls.Config
	TLSMode   pipeline.TLSMode

	// Versions restricts the accepted protocol versions. Empty means every
	// version with registered message codecs.
	Versions []uint8
	// HelloVersion is used for messages sent before a version is bound.
	// Zero means the highest accepted version.
	HelloVersion uint8

	IdleTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// Server runs sessions for the connections it is given. One registry is
// shared by all sessions.
type Server struct {
	reg     *codec.Registry
	handler Handler
	opts    Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewServer(reg *codec.Registry, handler Handler, opts Options) *Server {
	if opts.HelloVersion == 0 {
		versions := opts.Versions
		if len(versions) == 0 {
			versions = reg.Versions()
		}
		for _, v := range versions {
			if v > opts.HelloVersion {
				opts.HelloVersion = v
			}
		}
	}
	return &Server{
		reg:      reg,
		handler:  handler,
		opts:     opts,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// ListenAndServe listens on the TCP address addr and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultListenAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or ln is closed. It
// closes ln and every session it started before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	klog.Infof("listening for OpenFlow connections on %s", ln.Addr())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.closeSessions()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			klog.Errorf("error accepting TCP connections: %v", err)
			continue
		}
		s.ServeConn(conn)
	}
}

// ServeConn starts a session on an accepted connection.
func (s *Server) ServeConn(conn net.Conn) *Session {
	return s.start(conn, s.opts)
}

func (s *Server) start(conn net.Conn, opts Options) *Session {
	sess := newSession(conn, s.reg, s.handler, opts)
	sess.onClose = s.forget

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	klog.Infof("accepted connection %s from %s", sess.id, conn.RemoteAddr())
	go sess.serve()
	return sess
}

// ServeUDP runs one session per remote address on a packet socket. Each
// datagram must carry whole frames. UDP sessions never use TLS.
func (s *Server) ServeUDP(ctx context.Context, pc net.PacketConn) error {
	klog.Infof("listening for OpenFlow datagrams on %s", pc.LocalAddr())

	peers := newPeerTable()
	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()
	defer peers.closeAll()

	opts := s.opts
	opts.TLSMode = pipeline.TLSOff
	opts.TLSConfig = nil

	buf := make([]byte, readSize)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			klog.Errorf("error reading datagram: %v", err)
			continue
		}

		var dc *datagramConn
		dc, created := peers.loadOrStore(addr, func() *datagramConn {
			return newDatagramConn(pc, addr, func() { peers.delete(addr, dc) })
		})
		if created {
			s.start(dc, opts)
		}
		if !dc.deliver(append([]byte(nil), buf[:n]...)) {
			klog.Warningf("dropping datagram of %d bytes from %s", n, addr)
		}
	}
}

func (s *Server) forget(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
}

func (s *Server) closeSessions() {
	for _, sess := range s.Sessions() {
		sess.Close()
	}
}

// Session returns the live session with id.
func (s *Server) Session(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

// Sessions returns the live sessions in no particular order.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Send queues msg on the session with id.
func (s *Server) Send(id uuid.UUID, msg codec.Message) <-chan error {
	sess, ok := s.Session(id)
	if !ok {
		result := make(chan error, 1)
		result <- ErrUnknownSession
		return result
	}
	return sess.Send(msg)
}
