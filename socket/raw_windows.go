//go:build windows

package socket

import (
	"golang.org/x/sys/windows"
)

type (
	rawSockaddrAny   = windows.RawSockaddrAny
	rawSockaddrInet4 = windows.RawSockaddrInet4
	rawSockaddrInet6 = windows.RawSockaddrInet6
	rawSockaddrUnix  = windows.RawSockaddrUnix
)

const (
	afUnix  = windows.AF_UNIX
	afInet  = windows.AF_INET
	afInet6 = windows.AF_INET6
)

func (a *SocketAddr) setFamily(af int, _ int32) {
	a.raw.Addr.Family = uint16(af)
}

func (a SocketAddr) nativeFamily() int {
	return int(a.raw.Addr.Family)
}

func familyToAF(f Family) int {
	switch f {
	case FamilyUnix:
		return afUnix
	case FamilyIPv4:
		return afInet
	case FamilyIPv6:
		return afInet6
	default:
		return windows.AF_UNSPEC
	}
}
