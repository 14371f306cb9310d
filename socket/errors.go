package socket

import (
	"errors"
)

// Standard errors.
var (
	ErrClosed          = errors.New("socket: use of closed socket")
	ErrNullAddr        = errors.New("socket: null address")
	ErrPathTooLong     = errors.New("socket: local address path empty or too long")
	ErrFamilyNotIP     = errors.New("socket: address family is not IP")
	ErrInvalidShutdown = errors.New("socket: invalid shutdown direction")
)
