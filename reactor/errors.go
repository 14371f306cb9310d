// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"
)

// Standard errors.
var (
	ErrClosed        = errors.New("reactor: event queue closed")
	ErrFinished      = errors.New("reactor: event queue finished")
	ErrNilCallback   = errors.New("reactor: nil callback")
	ErrInvalidHandle = errors.New("reactor: invalid handle")
	ErrTimerFreed    = errors.New("reactor: timer already freed")
	ErrInvalidTimer  = errors.New("reactor: invalid timer")
	ErrUnsupported   = errors.New("reactor: platform not supported")
	// ErrCapacity is returned on Windows when the readiness emulator cannot
	// take more sockets.
	ErrCapacity = errors.New("reactor: socket capacity exceeded")
)
