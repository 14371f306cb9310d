// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-reactor/socket"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, opts ...Option) *EventQueue {
	t.Helper()
	q, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// pumpUntil calls ProcessEvents from the test goroutine until cond holds.
func pumpUntil(t *testing.T, q *EventQueue, cond func() bool) int {
	t.Helper()
	var total int
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), `timed out waiting for events`)
		n, err := q.ProcessEvents(10 * time.Millisecond)
		require.NoError(t, err)
		total += n
	}
	return total
}

// tcpPair returns a connected pair of loopback sockets.
func tcpPair(t *testing.T) (client, server *socket.TCPConnection) {
	t.Helper()
	ln, err := socket.TCPListen(socket.ParseSocketAddr(`127.0.0.1:0`, false), 0)
	require.NoError(t, err)
	defer ln.Close()
	addr, err := ln.LocalAddr()
	require.NoError(t, err)
	client, err = socket.TCPConnect(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	server, _, err = ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return client, server
}

// syncBuffer is a bytes.Buffer safe for concurrent logging.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}
