// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"code.hybscloud.com/atomix"
)

// Metrics is a snapshot of an EventQueue's counters. All counts are totals
// since creation.
type Metrics struct {
	// Callbacks counts invoked slot callbacks.
	Callbacks uint64
	// Scheduled counts invoked ScheduleCallback callbacks.
	Scheduled uint64
	// TimerFirings counts invoked timer callbacks.
	TimerFirings uint64
	// TimerSkips counts expirations dropped because the timer was freed or
	// set again after the expiration was reported.
	TimerSkips uint64
	// Wakeups counts wait calls that returned without a timeout.
	Wakeups uint64
	// Subscriptions counts arming calls (CallOn*).
	Subscriptions uint64
	// WaitErrors counts failed wait calls.
	WaitErrors uint64
}

type metricsCounters struct {
	callbacks     atomix.Uint64
	scheduled     atomix.Uint64
	timerFirings  atomix.Uint64
	timerSkips    atomix.Uint64
	wakeups       atomix.Uint64
	subscriptions atomix.Uint64
	waitErrors    atomix.Uint64
}

// All methods are nil-safe, a nil receiver being the disabled state.

func (x *metricsCounters) incCallbacks() {
	if x != nil {
		x.callbacks.Add(1)
	}
}

func (x *metricsCounters) incScheduled() {
	if x != nil {
		x.scheduled.Add(1)
	}
}

func (x *metricsCounters) incTimerFirings() {
	if x != nil {
		x.timerFirings.Add(1)
	}
}

func (x *metricsCounters) incTimerSkips() {
	if x != nil {
		x.timerSkips.Add(1)
	}
}

func (x *metricsCounters) incWakeups() {
	if x != nil {
		x.wakeups.Add(1)
	}
}

func (x *metricsCounters) incSubscriptions() {
	if x != nil {
		x.subscriptions.Add(1)
	}
}

func (x *metricsCounters) incWaitErrors() {
	if x != nil {
		x.waitErrors.Add(1)
	}
}

func (x *metricsCounters) snapshot() Metrics {
	if x == nil {
		return Metrics{}
	}
	return Metrics{
		Callbacks:     x.callbacks.Load(),
		Scheduled:     x.scheduled.Load(),
		TimerFirings:  x.timerFirings.Load(),
		TimerSkips:    x.timerSkips.Load(),
		Wakeups:       x.wakeups.Load(),
		Subscriptions: x.subscriptions.Load(),
		WaitErrors:    x.waitErrors.Load(),
	}
}
