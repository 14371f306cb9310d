// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build dragonfly || netbsd || openbsd

package reactor

import (
	"time"

	"github.com/joeycumines/go-reactor/socket"
)

type nativeTimer struct{}

var invalidNativeTimer = nativeTimer{}

func (nativeTimer) valid() bool { return false }

// poller is the placeholder for platforms without an engine; New fails with
// ErrUnsupported.
type poller struct{}

func (*poller) init(*EventQueue) error                              { return ErrUnsupported }
func (*poller) close() error                                        { return nil }
func (*poller) arm(socket.Handle, int, Kind, bool) error            { return ErrUnsupported }
func (*poller) disarm(socket.Handle, int) error                     { return ErrUnsupported }
func (*poller) poll(time.Duration) (int, error)                     { return 0, ErrUnsupported }
func (*poller) wake() error                                         { return ErrUnsupported }
func (*poller) finish() error                                       { return ErrUnsupported }
func (*poller) setTimer(*Timer, time.Duration, time.Duration) error { return ErrUnsupported }
func (*poller) ackTimer(*Timer) bool                                { return false }
func (*poller) rearmTimer(*Timer) error                             { return ErrUnsupported }
func (*poller) freeTimer(*Timer) error                              { return nil }
