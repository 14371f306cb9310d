// Package syserr provides the single error value used for platform failures
// across the socket and reactor packages.
//
// An [Error] carries the numeric code reported by the operating system, tagged
// with where the code came from, so that errno values, Windows error codes and
// resolver failures never get confused with each other. Wrapping happens once,
// at the syscall boundary, via [Wrap].
package syserr

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/bassosimone/errclass"
)

// Origin identifies the numbering space of [Error.Code].
type Origin uint8

const (
	// OriginUnknown is used for failures that did not carry a numeric code.
	OriginUnknown Origin = iota
	// OriginErrno is a POSIX errno value.
	OriginErrno
	// OriginWindows is a Win32 or WinSock error code.
	OriginWindows
	// OriginResolver is a name resolution failure (getaddrinfo style).
	OriginResolver
)

// String returns a human-readable representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginErrno:
		return "errno"
	case OriginWindows:
		return "windows"
	case OriginResolver:
		return "resolver"
	default:
		return "unknown"
	}
}

// Resolver failure codes, used with OriginResolver.
const (
	ResolverNotFound int64 = iota + 1
	ResolverTemporary
	ResolverTimeout
	ResolverBadResponse
)

// Error is a platform failure.
type Error struct {
	// Err is the underlying error, typically a [syscall.Errno].
	Err error
	// Op names the failed operation, e.g. "epoll_ctl" or "connect".
	Op     string
	Code   int64
	Origin Origin
}

// New builds an Error from its parts.
func New(op string, origin Origin, code int64, err error) *Error {
	return &Error{Err: err, Op: op, Code: code, Origin: origin}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error %d", e.Op, e.Origin, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap converts err into an *Error describing op. A nil err yields nil, and an
// err that already contains an *Error is returned unchanged, so wrapping more
// than once is harmless.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var target *Error
	if errors.As(err, &target) {
		return err
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &Error{Err: err, Op: op, Code: int64(errno), Origin: errnoOrigin}
	}
	return &Error{Err: err, Op: op}
}

// Is reports whether err is an *Error with the given origin and code.
func Is(err error, origin Origin, code int64) bool {
	var target *Error
	return errors.As(err, &target) && target.Origin == origin && target.Code == code
}

// Class maps err to a stable, short class name (e.g. "ETIMEDOUT"), suitable
// for log fields and metrics labels. A nil error yields "".
func Class(err error) string {
	if err == nil {
		return ""
	}
	return errclass.New(err)
}
