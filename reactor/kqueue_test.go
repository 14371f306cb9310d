// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin || freebsd

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_timerModes(t *testing.T) {
	q := newTestQueue(t)

	var fired atomic.Int32
	timer, err := q.SetTimer(nil, TimerSpec{After: time.Millisecond, Interval: 2 * time.Millisecond}, func() { fired.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, timer.id, timer.native.ident)
	assert.False(t, timer.native.repeating)

	pumpUntil(t, q, func() bool { return fired.Load() >= 2 })
	timer.mu.Lock()
	assert.True(t, timer.native.repeating)
	timer.mu.Unlock()

	_, err = q.SetTimer(timer, Every(2*time.Millisecond), nil)
	require.NoError(t, err)
	timer.mu.Lock()
	assert.True(t, timer.native.repeating)
	timer.mu.Unlock()

	require.NoError(t, q.FreeTimer(timer))
	assert.False(t, timer.native.valid())
}

func TestPoller_disarmUnknown(t *testing.T) {
	q := newTestQueue(t)
	_, server := tcpPair(t)
	assert.NoError(t, q.poller.disarm(server.Handle(), 0))
}
