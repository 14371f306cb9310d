// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPoller_armFallbacks(t *testing.T) {
	q := newTestQueue(t)
	_, server := tcpPair(t)
	h := server.Handle()

	// MOD of an unknown handle falls back to ADD
	var called atomic.Int32
	index, _ := q.table.register(h, KindWritable, func() { called.Add(1) })
	require.NoError(t, q.poller.arm(h, index, KindWritable, false))
	// ADD of a known handle falls back to MOD
	require.NoError(t, q.poller.arm(h, index, KindWritable, true))

	pumpUntil(t, q, func() bool { return called.Load() > 0 })
	require.NoError(t, q.Deregister(server))
	require.NoError(t, q.poller.disarm(h, index))
}

func TestPoller_armClosedHandle(t *testing.T) {
	q := newTestQueue(t)
	err := q.subscribeHandle(1<<20, KindReadable, func() {})
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EBADF)
}

func TestPoller_wakeCoalesces(t *testing.T) {
	q := newTestQueue(t)
	for range 10 {
		require.NoError(t, q.poller.wake())
	}
	n, err := q.ProcessEvents(time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)

	// drained, so the next wait times out
	start := time.Now()
	n, err = q.ProcessEvents(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestPoller_timerBypassesTable(t *testing.T) {
	q := newTestQueue(t)
	timer, err := q.SetTimer(nil, After(time.Hour), func() {})
	require.NoError(t, err)
	fd := timer.native.fd
	require.GreaterOrEqual(t, fd, 0)

	_, ok := q.table.lookup(fd)
	assert.False(t, ok)
	assert.Same(t, timer, q.poller.timer(int32(fd)))

	require.NoError(t, q.FreeTimer(timer))
	assert.False(t, timer.native.valid())
	assert.Nil(t, q.poller.timer(int32(fd)))
}

func TestPoller_staleTimerReport(t *testing.T) {
	q := newTestQueue(t, WithMetrics(true))
	var called atomic.Int32
	timer, err := q.SetTimer(nil, After(time.Hour), func() { called.Add(1) })
	require.NoError(t, err)
	defer q.FreeTimer(timer)

	// a report delivered after the due time moved finds nothing to read
	assert.False(t, q.fireTimer(timer))
	assert.Zero(t, called.Load())
	assert.Equal(t, uint64(1), q.Metrics().TimerSkips)

	// the timerfd is still armed for the real expiration
	_, err = q.SetTimer(timer, After(5*time.Millisecond), func() { called.Add(1) })
	require.NoError(t, err)
	pumpUntil(t, q, func() bool { return called.Load() == 1 })
	assert.Equal(t, uint64(1), q.Metrics().TimerFirings)
}

func TestPoller_timerNotCountedAsCallback(t *testing.T) {
	q := newTestQueue(t, WithMetrics(true))
	var fired atomic.Int32
	timer, err := q.SetTimer(nil, Every(2*time.Millisecond), func() { fired.Add(1) })
	require.NoError(t, err)

	var total int
	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() < 3 && time.Now().Before(deadline) {
		n, err := q.ProcessEvents(100 * time.Millisecond)
		require.NoError(t, err)
		total += n
	}
	require.NoError(t, q.FreeTimer(timer))

	m := q.Metrics()
	assert.Zero(t, m.Callbacks)
	assert.Equal(t, uint64(fired.Load()), m.TimerFirings)
	assert.Equal(t, int(fired.Load()), total)

	// a report for a freed timer is skipped and not counted
	assert.False(t, q.fireTimer(timer))
	assert.Equal(t, m.TimerFirings, q.Metrics().TimerFirings)
	assert.Zero(t, q.Metrics().Callbacks)
}
