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
	"context"
	"crypto/tls"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/k-vswitch/ofwire/codec"
	"github.com/k-vswitch/ofwire/frame"
	"github.com/k-vswitch/ofwire/internal/testutil/tlstest"
	"github.com/k-vswitch/ofwire/ofp10"
	"github.com/k-vswitch/ofwire/ofp13"
	"github.com/k-vswitch/ofwire/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

type recordingHandler struct {
	onReady func(s *Session)

	ready  chan *Session
	msgs   chan codec.Message
	idle   chan *Session
	setup  chan error
	closed chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		ready:  make(chan *Session, 16),
		msgs:   make(chan codec.Message, 16),
		idle:   make(chan *Session, 16),
		setup:  make(chan error, 16),
		closed: make(chan error, 16),
	}
}

func (h *recordingHandler) ConnectionReady(s *Session) {
	if h.onReady != nil {
		h.onReady(s)
	}
	h.ready <- s
}

func (h *recordingHandler) MessageReceived(s *Session, msg codec.Message) { h.msgs <- msg }
func (h *recordingHandler) ConnectionIdle(s *Session)                     { h.idle <- s }
func (h *recordingHandler) SetupFailed(s *Session, err error)            { h.setup <- err }
func (h *recordingHandler) ConnectionClosed(s *Session, err error)       { h.closed <- err }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %T", *new(T))
	}
	panic("unreachable")
}

func newTestRegistry(t *testing.T) *codec.Registry {
	r, err := codec.NewRegistry(codec.Options{}, ofp13.Register, ofp10.Register)
	require.NoError(t, err)
	return r
}

func marshal(t *testing.T, r *codec.Registry, v uint8, m codec.Message) []byte {
	b, err := r.Dialect(v).Marshal(m)
	require.NoError(t, err)
	return b
}

func hello13(xid uint32) *ofp13.Hello {
	m := ofp13.NewHello(ofp13.Version)
	m.Xid = xid
	return m
}

func readMessage(t *testing.T, conn net.Conn, d codec.Dialect) codec.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testTimeout))

	hdr := make([]byte, frame.HeaderLen)
	_, err := io.ReadFull(conn, hdr)
	require.NoError(t, err)
	n, err := frame.PeekLength(hdr)
	require.NoError(t, err)

	b := make([]byte, n)
	copy(b, hdr)
	_, err = io.ReadFull(conn, b[frame.HeaderLen:])
	require.NoError(t, err)

	m, err := d.DecodeMessage(frame.Frame(b))
	require.NoError(t, err)
	return m
}

func Test_PlaintextSession(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	h.onReady = func(s *Session) { s.Send(ofp13.NewHello(ofp13.Version)) }
	srv := NewServer(r, h, Options{})

	client, server := net.Pipe()
	defer client.Close()
	sess := srv.ServeConn(server)

	_, err := client.Write(marshal(t, r, ofp13.Version, hello13(1)))
	require.NoError(t, err)

	assert.Same(t, sess, recv(t, h.ready))
	m := recv(t, h.msgs)
	require.IsType(t, &ofp13.Hello{}, m)
	assert.Equal(t, uint32(1), m.MsgHeader().Xid)

	reply := readMessage(t, client, r.Dialect(ofp13.Version))
	require.IsType(t, &ofp13.Hello{}, reply)
	assert.NotZero(t, reply.MsgHeader().Xid)

	v, ok := sess.Version()
	assert.True(t, ok)
	assert.Equal(t, ofp13.Version, v)
	assert.False(t, sess.TLS())
	got, ok := srv.Session(sess.ID())
	assert.True(t, ok)
	assert.Same(t, sess, got)

	client.Close()
	assert.NoError(t, recv(t, h.closed))
	_, ok = srv.Session(sess.ID())
	assert.False(t, ok)
	recv(t, sess.Done())
}

func Test_SendQueuedBeforeReady(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{})

	client, server := net.Pipe()
	defer client.Close()
	sess := srv.ServeConn(server)

	result := sess.Send(&ofp13.EchoRequest{Data: []byte("ping")})
	select {
	case err := <-result:
		t.Fatalf("message written before the connection was ready: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	_, err := client.Write(marshal(t, r, ofp13.Version, hello13(1)))
	require.NoError(t, err)

	m := readMessage(t, client, r.Dialect(ofp13.Version))
	require.NoError(t, recv(t, result))
	echo, ok := m.(*ofp13.EchoRequest)
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), echo.Data)
	assert.NotZero(t, echo.Xid)
}

func Test_SendAfterClose(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{})

	client, server := net.Pipe()
	defer client.Close()
	sess := srv.ServeConn(server)

	queued := sess.Send(&ofp13.EchoRequest{})
	require.NoError(t, sess.Close())

	assert.ErrorIs(t, recv(t, queued), ErrClosed)
	assert.ErrorIs(t, recv(t, sess.Send(&ofp13.EchoRequest{})), ErrClosed)
	assert.ErrorIs(t, recv(t, srv.Send(sess.ID(), &ofp13.EchoRequest{})), ErrUnknownSession)
	assert.ErrorIs(t, recv(t, srv.Send(uuid.New(), &ofp13.EchoRequest{})), ErrUnknownSession)
}

func Test_UnencodableSendKeepsSession(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{})

	client, server := net.Pipe()
	defer client.Close()
	sess := srv.ServeConn(server)

	_, err := client.Write(marshal(t, r, ofp13.Version, hello13(1)))
	require.NoError(t, err)
	recv(t, h.ready)
	recv(t, h.msgs)

	bad := []codec.Message{
		ofp13.NewPacketOut(1, nil, &ofp13.ActionSetField{}),
		ofp13.NewPacketOut(1, nil, nil),
		ofp13.NewFlowAdd(0, 1, ofp13.NewMatch(), nil),
		(*ofp13.EchoRequest)(nil),
		nil,
	}
	for _, m := range bad {
		assert.ErrorIs(t, recv(t, sess.Send(m)), codec.ErrNilElement)
	}

	select {
	case <-sess.Done():
		t.Fatal("session closed after a message failed to encode")
	default:
	}

	result := sess.Send(&ofp13.EchoRequest{Data: []byte("still here")})
	m := readMessage(t, client, r.Dialect(ofp13.Version))
	require.NoError(t, recv(t, result))
	require.IsType(t, &ofp13.EchoRequest{}, m)
	assert.Equal(t, []byte("still here"), m.(*ofp13.EchoRequest).Data)
	assert.Empty(t, h.closed)
}

func Test_MalformedFrameClosesConnection(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{TLSMode: pipeline.TLSOff})

	client, server := net.Pipe()
	defer client.Close()
	srv.ServeConn(server)
	recv(t, h.ready)

	_, err := client.Write([]byte{4, 0, 0, 4, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.ErrorIs(t, recv(t, h.closed), frame.ErrMalformedFrame)
	assert.Empty(t, h.setup)
}

func Test_UnsupportedVersionKeepsConnection(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{TLSMode: pipeline.TLSOff, Versions: []uint8{ofp13.Version}})

	client, server := net.Pipe()
	defer client.Close()
	sess := srv.ServeConn(server)
	recv(t, h.ready)

	_, err := client.Write(marshal(t, r, ofp10.Version, &ofp10.Hello{}))
	require.NoError(t, err)
	_, err = client.Write(marshal(t, r, ofp13.Version, hello13(2)))
	require.NoError(t, err)

	m := recv(t, h.msgs)
	assert.Equal(t, uint32(2), m.MsgHeader().Xid)
	v, _ := sess.Version()
	assert.Equal(t, ofp13.Version, v)
	assert.Empty(t, h.closed)
}

func Test_IdleTimeout(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{TLSMode: pipeline.TLSOff, IdleTimeout: 20 * time.Millisecond})

	client, server := net.Pipe()
	defer client.Close()
	sess := srv.ServeConn(server)
	recv(t, h.ready)

	assert.Same(t, sess, recv(t, h.idle))
	select {
	case <-h.idle:
		t.Fatal("idle reported twice without activity")
	case <-time.After(100 * time.Millisecond):
	}

	_, err := client.Write(marshal(t, r, ofp13.Version, hello13(1)))
	require.NoError(t, err)
	recv(t, h.msgs)
	recv(t, h.idle)
}

func tlsServerConfig(t *testing.T, ca *tlstest.Authority) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{ca.ServerCert(t, "controller")},
	}
}

func serveTCP(t *testing.T, srv *Server) (string, context.CancelFunc) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	return ln.Addr().String(), func() {
		cancel()
		assert.NoError(t, recv(t, done))
	}
}

func Test_TLSSession(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	h.onReady = func(s *Session) { s.Send(ofp13.NewHello(ofp13.Version)) }
	ca := tlstest.NewAuthority(t, "test-ca")
	srv := NewServer(r, h, Options{TLSConfig: tlsServerConfig(t, ca)})

	addr, stop := serveTCP(t, srv)
	defer stop()

	conn, err := tls.Dial("tcp", addr, &tls.Config{RootCAs: ca.Pool(), ServerName: "localhost"})
	require.NoError(t, err)
	defer conn.Close()

	sess := recv(t, h.ready)
	assert.True(t, sess.TLS())
	assert.Contains(t, sess.Stages(), pipeline.TLSID)
	assert.NotContains(t, sess.Stages(), pipeline.SnifferID)

	_, err = conn.Write(marshal(t, r, ofp13.Version, hello13(3)))
	require.NoError(t, err)
	m := recv(t, h.msgs)
	assert.Equal(t, uint32(3), m.MsgHeader().Xid)

	reply := readMessage(t, conn, r.Dialect(ofp13.Version))
	assert.IsType(t, &ofp13.Hello{}, reply)
}

func Test_TLSHandshakeFailure(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	ca := tlstest.NewAuthority(t, "test-ca")
	untrusted := tlstest.NewAuthority(t, "other-ca")
	srv := NewServer(r, h, Options{TLSConfig: tlsServerConfig(t, ca), HandshakeTimeout: time.Second})

	addr, stop := serveTCP(t, srv)
	defer stop()

	_, err := tls.Dial("tcp", addr, &tls.Config{RootCAs: untrusted.Pool(), ServerName: "localhost"})
	require.Error(t, err)

	assert.ErrorIs(t, recv(t, h.setup), ErrSetupFailed)
	assert.ErrorIs(t, recv(t, h.closed), ErrSetupFailed)
	assert.Empty(t, h.ready)
}

func Test_TLSRequiredRejectsPlaintext(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	ca := tlstest.NewAuthority(t, "test-ca")
	srv := NewServer(r, h, Options{TLSConfig: tlsServerConfig(t, ca), TLSMode: pipeline.TLSRequired})

	client, server := net.Pipe()
	defer client.Close()
	srv.ServeConn(server)

	_, err := client.Write(marshal(t, r, ofp13.Version, hello13(1)))
	require.NoError(t, err)

	assert.ErrorIs(t, recv(t, h.setup), ErrSetupFailed)
	assert.ErrorIs(t, recv(t, h.closed), ErrSetupFailed)
	assert.Empty(t, h.ready)
}

func Test_ServeClosesSessions(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	srv := NewServer(r, h, Options{TLSMode: pipeline.TLSOff})

	addr, stop := serveTCP(t, srv)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	sess := recv(t, h.ready)
	stop()

	recv(t, sess.Done())
	recv(t, h.closed)
	assert.Empty(t, srv.Sessions())
}

func Test_ServeUDP(t *testing.T) {
	r := newTestRegistry(t)
	h := newRecordingHandler()
	h.onReady = func(s *Session) { s.Send(ofp13.NewHello(ofp13.Version)) }
	srv := NewServer(r, h, Options{TLSConfig: &tls.Config{}})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeUDP(ctx, pc) }()

	client, err := net.Dial("udp", pc.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(marshal(t, r, ofp13.Version, hello13(9)))
	require.NoError(t, err)

	sess := recv(t, h.ready)
	assert.False(t, sess.TLS())
	m := recv(t, h.msgs)
	assert.Equal(t, uint32(9), m.MsgHeader().Xid)

	client.SetReadDeadline(time.Now().Add(testTimeout))
	buf := make([]byte, 1500)
	n, err := client.Read(buf)
	require.NoError(t, err)
	reply, err := r.Dialect(ofp13.Version).DecodeMessage(frame.Frame(buf[:n]))
	require.NoError(t, err)
	assert.IsType(t, &ofp13.Hello{}, reply)

	// later datagrams from the same peer reach the same session
	_, err = client.Write(marshal(t, r, ofp13.Version, &ofp13.EchoRequest{Header: frame.Header{Xid: 10}}))
	require.NoError(t, err)
	m = recv(t, h.msgs)
	assert.IsType(t, &ofp13.EchoRequest{}, m)
	assert.Len(t, srv.Sessions(), 1)

	cancel()
	assert.NoError(t, recv(t, done))
	recv(t, sess.Done())
}

func Test_XidAllocator(t *testing.T) {
	x := newXidAllocator()
	assert.Equal(t, uint32(1), x.Next())
	assert.Equal(t, uint32(2), x.Next())

	x.next = maxXid
	assert.Equal(t, maxXid, x.Next())
	assert.Equal(t, uint32(1), x.Next())
}

func Test_PrefixConn(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	c := &prefixConn{Conn: a, prefix: []byte("abc")}
	go b.Write([]byte("de"))

	buf := make([]byte, 2)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(buf[:n]))
	n, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "c", string(buf[:n]))
	n, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, "de", string(buf[:n]))
}

func Test_PeerTable(t *testing.T) {
	p := newPeerTable()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 6653}

	first, created := p.loadOrStore(addr, func() *datagramConn { return newDatagramConn(nil, addr, nil) })
	assert.True(t, created)
	again, created := p.loadOrStore(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 6653}, func() *datagramConn {
		t.Fatal("created a second connection for the same peer")
		return nil
	})
	assert.False(t, created)
	assert.Same(t, first, again)

	p.delete(addr, newDatagramConn(nil, addr, nil))
	assert.Equal(t, 1, p.len())
	p.delete(addr, first)
	assert.Equal(t, 0, p.len())
}
