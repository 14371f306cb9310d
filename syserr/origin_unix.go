//go:build !windows

package syserr

const errnoOrigin = OriginErrno
