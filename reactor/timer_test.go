// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_order(t *testing.T) {
	q := newTestQueue(t)

	var order []string
	slow, err := q.SetTimer(nil, After(50*time.Millisecond), func() { order = append(order, `50ms`) })
	require.NoError(t, err)
	fast, err := q.SetTimer(nil, After(10*time.Millisecond), func() { order = append(order, `10ms`) })
	require.NoError(t, err)

	start := time.Now()
	pumpUntil(t, q, func() bool { return len(order) == 2 })
	assert.Equal(t, []string{`10ms`, `50ms`}, order)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)

	require.NoError(t, q.FreeTimer(slow))
	require.NoError(t, q.FreeTimer(fast))
}

func TestTimer_oneShotStaysDisarmed(t *testing.T) {
	q := newTestQueue(t)

	var fired atomic.Int32
	timer, err := q.SetTimer(nil, After(time.Millisecond), func() { fired.Add(1) })
	require.NoError(t, err)
	assert.Zero(t, timer.Interval())

	pumpUntil(t, q, func() bool { return fired.Load() > 0 })
	_, err = q.ProcessEvents(30 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fired.Load())

	// rearming reuses the timer, keeping the callback
	same, err := q.SetTimer(timer, After(time.Millisecond), nil)
	require.NoError(t, err)
	assert.Same(t, timer, same)
	pumpUntil(t, q, func() bool { return fired.Load() == 2 })

	require.NoError(t, q.FreeTimer(timer))
}

func TestTimer_rearmReplacesCallback(t *testing.T) {
	q := newTestQueue(t)

	var first, second atomic.Int32
	timer, err := q.SetTimer(nil, After(time.Hour), func() { first.Add(1) })
	require.NoError(t, err)
	_, err = q.SetTimer(timer, After(time.Millisecond), func() { second.Add(1) })
	require.NoError(t, err)

	pumpUntil(t, q, func() bool { return second.Load() > 0 })
	assert.Zero(t, first.Load())
	require.NoError(t, q.FreeTimer(timer))
}

func TestTimer_pastDeadline(t *testing.T) {
	q := newTestQueue(t)

	var fired atomic.Int32
	timer, err := q.SetTimer(nil, At(time.Now().Add(-time.Hour)), func() { fired.Add(1) })
	require.NoError(t, err)
	pumpUntil(t, q, func() bool { return fired.Load() > 0 })
	require.NoError(t, q.FreeTimer(timer))
}

func TestTimer_periodic(t *testing.T) {
	for _, spec := range []TimerSpec{
		Every(5 * time.Millisecond),
		{After: time.Millisecond, Interval: 5 * time.Millisecond},
	} {
		q := newTestQueue(t)

		var fired atomic.Int32
		timer, err := q.SetTimer(nil, spec, func() { fired.Add(1) })
		require.NoError(t, err)
		assert.Equal(t, 5*time.Millisecond, timer.Interval())

		pumpUntil(t, q, func() bool { return fired.Load() >= 3 })
		require.NoError(t, q.FreeTimer(timer))

		count := fired.Load()
		_, err = q.ProcessEvents(30 * time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, count, fired.Load())
	}
}

func TestTimer_freeRacingFirings(t *testing.T) {
	q := newTestQueue(t, WithMetrics(true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Run(ctx)
		}()
	}

	var (
		fired    atomic.Int32
		inFlight atomic.Int32
		overlap  atomic.Bool
	)
	timer, err := q.SetTimer(nil, Every(time.Millisecond), func() {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		fired.Add(1)
		time.Sleep(200 * time.Microsecond)
		inFlight.Add(-1)
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fired.Load() >= 5 }, 5*time.Second, time.Millisecond)
	require.NoError(t, q.FreeTimer(timer))
	count := fired.Load()
	assert.Zero(t, inFlight.Load())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, fired.Load())
	assert.False(t, overlap.Load())
	assert.Equal(t, uint64(count), q.Metrics().TimerFirings)

	assert.ErrorIs(t, q.FreeTimer(timer), ErrTimerFreed)
	_, err = q.SetTimer(timer, After(time.Millisecond), nil)
	assert.ErrorIs(t, err, ErrTimerFreed)

	cancel()
	wg.Wait()
}

func TestTimer_freeFromOwnCallback(t *testing.T) {
	q := newTestQueue(t)

	var (
		timer *Timer
		fired atomic.Int32
		freed = make(chan error, 1)
	)
	timer, err := q.SetTimer(nil, Every(time.Millisecond), func() {
		fired.Add(1)
		freed <- q.FreeTimer(timer)
	})
	require.NoError(t, err)

	pumpUntil(t, q, func() bool { return fired.Load() > 0 })
	require.NoError(t, <-freed)

	_, err = q.ProcessEvents(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fired.Load())
}

func TestTimer_invalid(t *testing.T) {
	q := newTestQueue(t)
	other := newTestQueue(t)

	_, err := q.SetTimer(nil, After(time.Millisecond), nil)
	assert.ErrorIs(t, err, ErrNilCallback)
	_, err = q.SetTimer(nil, TimerSpec{Interval: -1}, func() {})
	assert.ErrorIs(t, err, ErrInvalidTimer)
	assert.ErrorIs(t, q.FreeTimer(nil), ErrInvalidTimer)

	timer, err := other.SetTimer(nil, After(time.Hour), func() {})
	require.NoError(t, err)
	_, err = q.SetTimer(timer, After(time.Millisecond), nil)
	assert.ErrorIs(t, err, ErrInvalidTimer)
	assert.ErrorIs(t, q.FreeTimer(timer), ErrInvalidTimer)
	require.NoError(t, other.FreeTimer(timer))
}

func TestTimer_closeFreesTimers(t *testing.T) {
	q, err := New()
	require.NoError(t, err)

	var fired atomic.Int32
	timer, err := q.SetTimer(nil, Every(time.Millisecond), func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.FreeTimer(timer), ErrTimerFreed)
	assert.Empty(t, q.timers.all())
}

func TestTimerSpec_firstDelay(t *testing.T) {
	assert.Equal(t, minTimerDelay, TimerSpec{}.firstDelay())
	assert.Equal(t, time.Second, After(time.Second).firstDelay())
	assert.Equal(t, minTimerDelay, At(time.Now().Add(-time.Minute)).firstDelay())
	d := At(time.Now().Add(time.Hour)).firstDelay()
	assert.Greater(t, d, 59*time.Minute)
	assert.LessOrEqual(t, d, time.Hour)
	assert.Equal(t, TimerSpec{After: time.Second, Interval: time.Second}, Every(time.Second))
}

func TestGetGoroutineID(t *testing.T) {
	id := getGoroutineID()
	assert.NotZero(t, id)
	assert.Equal(t, id, getGoroutineID())

	other := make(chan uint64)
	go func() { other <- getGoroutineID() }()
	assert.NotEqual(t, id, <-other)
}

func TestTimerIndex_idWraps(t *testing.T) {
	var x timerIndex
	x.init()
	a, b := &Timer{}, &Timer{}
	x.next = maxTimerID - 1
	assert.Equal(t, maxTimerID, x.add(a))
	x.timers[1] = b
	// 1 is live, so the counter skips it after wrapping
	assert.Equal(t, uint64(2), x.add(a))
	assert.Same(t, b, x.get(1))
}
