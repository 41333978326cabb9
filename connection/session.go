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
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/errclass"
	"github.com/google/uuid"
	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/pipeline"

	"k8s.io/klog"
)

const (
	readSize                = 64 * 1024
	defaultHandshakeTimeout = 10 * time.Second
)

var (
	ErrSetupFailed    = pipeline.ErrSetupFailed
	ErrClosed         = errors.New("connection: session closed")
	ErrUnknownSession = errors.New("connection: unknown session")
)

// Handler receives the events of every session of a server. Except for
// ConnectionClosed, calls for one session are made from that session's read
// goroutine, in order.
type Handler interface {
	ConnectionReady(s *Session)
	MessageReceived(s *Session, msg codec.Message)
	ConnectionIdle(s *Session)
	SetupFailed(s *Session, err error)
	// ConnectionClosed is the last call for a session. err is nil when the
	// peer closed the connection cleanly.
	ConnectionClosed(s *Session, err error)
}

type outgoing struct {
	msg    codec.Message
	result chan error
}

// Session is one switch connection: a read loop feeding the pipeline and a
// writer draining the send queue.
type Session struct {
	id      uuid.UUID
	raw     net.Conn
	handler Handler
	opts    Options
	p       *pipeline.Pipeline
	xids    *xidAllocator

	connMu    sync.Mutex
	conn      net.Conn
	upgrade   *tls.Conn
	encrypted bool

	queue     []outgoing
	queueMu   sync.Mutex
	queueCond sync.Cond
	ready     bool
	closed    bool

	closeOnce sync.Once
	done      chan struct{}
	onClose   func(*Session)
}

func newSession(conn net.Conn, reg *codec.Registry, handler Handler, opts Options) *Session {
	s := &Session{
		id:      uuid.New(),
		raw:     conn,
		conn:    conn,
		handler: handler,
		opts:    opts,
		xids:    newXidAllocator(),
		done:    make(chan struct{}),
	}
	s.queueCond.L = &s.queueMu

	popts := pipeline.Options{
		TLSMode:      opts.TLSMode,
		Versions:     opts.Versions,
		HelloVersion: opts.HelloVersion,
	}
	if opts.TLSConfig != nil {
		popts.Upgrader = upgrader{s}
	}
	s.p = pipeline.New(sessionSink{s}, pipeline.Standard(reg, popts)...)
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) RemoteAddr() net.Addr {
	return s.raw.RemoteAddr()
}

// Version returns the negotiated protocol version once the first supported
// frame has been read.
func (s *Session) Version() (uint8, bool) {
	return s.p.Version()
}

// TLS reports whether the session runs over TLS.
func (s *Session) TLS() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.encrypted
}

// Stages lists the session's current pipeline stages.
func (s *Session) Stages() []pipeline.StageID {
	return s.p.Stages()
}

// NextXid returns a fresh transaction id.
func (s *Session) NextXid() uint32 {
	return s.xids.Next()
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send queues msg and returns a channel that receives the write result. A
// zero xid is replaced with a fresh one, stored in msg; set the xid before
// sending one message on several sessions. Messages queued before the
// session is ready are written once it is.
func (s *Session) Send(msg codec.Message) <-chan error {
	result := make(chan error, 1)
	if codec.IsNil(msg) {
		result <- fmt.Errorf("%w: message", codec.ErrNilElement)
		return result
	}
	if msg.MsgHeader().Xid == 0 {
		msg.MsgHeader().Xid = s.xids.Next()
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.closed {
		result <- ErrClosed
		return result
	}
	s.queue = append(s.queue, outgoing{msg: msg, result: result})
	s.queueCond.Broadcast()
	return result
}

// Close shuts the session down. Queued messages fail with ErrClosed.
func (s *Session) Close() error {
	s.close(nil)
	return nil
}

func (s *Session) transport() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Session) serve() {
	go s.writeLoop()

	if s.opts.TLSMode == pipeline.TLSOff {
		if err := s.p.FireInbound(pipeline.Ready{}); err != nil {
			s.close(err)
			return
		}
	}

	for {
		conn := s.transport()
		if s.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}

		chunk := make([]byte, readSize)
		n, err := conn.Read(chunk)
		if n > 0 {
			if ferr := s.fire(pipeline.Bytes{Data: chunk[:n]}); ferr != nil {
				s.fail(ferr)
				return
			}
			if herr := s.finishUpgrade(); herr != nil {
				s.fail(herr)
				return
			}
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if ferr := s.fire(pipeline.Idle{}); ferr != nil {
				s.fail(ferr)
				return
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			err = nil
		}
		s.close(err)
		return
	}
}

func (s *Session) fire(ev pipeline.Event) error {
	decided := s.p.VersionDecided()
	err := s.p.FireInbound(ev)
	if !decided {
		if v, ok := s.p.Version(); ok {
			klog.Infof("connection %s from %s bound to OpenFlow version %d", s.id, s.RemoteAddr(), v)
		}
	}
	return err
}

// finishUpgrade runs a TLS handshake requested by the sniffer.
func (s *Session) finishUpgrade() error {
	s.connMu.Lock()
	tc := s.upgrade
	s.upgrade = nil
	s.connMu.Unlock()
	if tc == nil {
		return nil
	}

	timeout := s.opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	tc.SetDeadline(time.Now().Add(timeout))
	if err := tc.Handshake(); err != nil {
		return fmt.Errorf("%w: tls handshake: %v", ErrSetupFailed, err)
	}
	tc.SetDeadline(time.Time{})

	s.connMu.Lock()
	s.conn = tc
	s.encrypted = true
	s.connMu.Unlock()

	klog.Infof("connection %s from %s completed tls handshake", s.id, s.RemoteAddr())
	return s.fire(pipeline.Ready{})
}

func (s *Session) fail(err error) {
	if errors.Is(err, ErrSetupFailed) {
		klog.Errorf("error setting up connection %s from %s: %v (%s)", s.id, s.RemoteAddr(), err, errclass.New(err))
		s.handler.SetupFailed(s, err)
	}
	s.close(err)
}

func (s *Session) close(err error) {
	s.closeOnce.Do(func() {
		s.queueMu.Lock()
		s.closed = true
		pending := s.queue
		s.queue = nil
		s.queueCond.Broadcast()
		s.queueMu.Unlock()

		for _, out := range pending {
			out.result <- ErrClosed
		}

		s.transport().Close()
		if err != nil {
			klog.Infof("connection %s from %s closed: %v (%s)", s.id, s.RemoteAddr(), err, errclass.New(err))
		} else {
			klog.Infof("connection %s from %s closed", s.id, s.RemoteAddr())
		}
		close(s.done)

		if s.onClose != nil {
			s.onClose(s)
		}
		s.handler.ConnectionClosed(s, err)
	})
}

func (s *Session) markReady() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	s.ready = true
	s.queueCond.Broadcast()
}

// writeLoop does not start writing until the session is ready.
func (s *Session) writeLoop() {
	for {
		s.queueMu.Lock()
		for !s.closed && (!s.ready || len(s.queue) == 0) {
			s.queueCond.Wait()
		}
		if s.closed {
			s.queueMu.Unlock()
			return
		}
		out := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		err := s.write(out.msg)
		out.result <- err
		if err != nil && !isEncodeError(err) {
			klog.Errorf("error writing to connection %s: %v", s.id, err)
			s.close(err)
			return
		}
	}
}

type encodeError struct {
	err error
}

func (e encodeError) Error() string { return e.err.Error() }
func (e encodeError) Unwrap() error { return e.err }

func isEncodeError(err error) bool {
	var ee encodeError
	return errors.As(err, &ee)
}

func (s *Session) write(msg codec.Message) error {
	written, err := s.p.FireOutbound(pipeline.MessageEvent{Message: msg})
	if err != nil {
		return encodeError{err}
	}

	conn := s.transport()
	for _, b := range written {
		if s.opts.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		}
		if _, err := conn.Write(b); err != nil {
			return err
		}
	}
	klog.V(5).Infof("connection %s sent message type %d xid %d", s.id, msg.MessageType(), msg.MsgHeader().Xid)
	return nil
}

type sessionSink struct {
	s *Session
}

func (k sessionSink) Deliver(ev pipeline.Event) {
	s := k.s
	switch ev := ev.(type) {
	case pipeline.Ready:
		s.markReady()
		klog.Infof("connection %s from %s ready", s.id, s.RemoteAddr())
		s.handler.ConnectionReady(s)
	case pipeline.MessageEvent:
		h := ev.Message.MsgHeader()
		klog.V(5).Infof("connection %s received message type %d xid %d", s.id, h.Type, h.Xid)
		s.handler.MessageReceived(s, ev.Message)
	case pipeline.Idle:
		s.handler.ConnectionIdle(s)
	}
}

func (k sessionSink) Diagnostic(err error) {
	klog.Warningf("connection %s from %s: %v", k.s.id, k.s.RemoteAddr(), err)
}

type upgrader struct {
	s *Session
}

func (u upgrader) StartTLS(ciphertext []byte) error {
	s := u.s
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.upgrade = tls.Server(&prefixConn{Conn: s.raw, prefix: ciphertext}, s.opts.TLSConfig)
	return nil
}

// prefixConn replays bytes already read from the connection before reading
// from it again.
type prefixConn struct {
	net.Conn
	prefix []byte
}

func (c *prefixConn) Read(b []byte) (int, error) {
	if len(c.prefix) > 0 {
		n := copy(b, c.prefix)
		c.prefix = c.prefix[n:]
		return n, nil
	}
	return c.Conn.Read(b)
}
