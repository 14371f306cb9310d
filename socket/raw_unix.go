//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package socket

import (
	"golang.org/x/sys/unix"
)

type (
	rawSockaddrAny   = unix.RawSockaddrAny
	rawSockaddrInet4 = unix.RawSockaddrInet4
	rawSockaddrInet6 = unix.RawSockaddrInet6
	rawSockaddrUnix  = unix.RawSockaddrUnix
)

const (
	afUnix  = unix.AF_UNIX
	afInet  = unix.AF_INET
	afInet6 = unix.AF_INET6
)

func familyToAF(f Family) int {
	switch f {
	case FamilyUnix:
		return afUnix
	case FamilyIPv4:
		return afInet
	case FamilyIPv6:
		return afInet6
	default:
		return unix.AF_UNSPEC
	}
}
