// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin || dragonfly || netbsd || openbsd

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// These systems make socket calls through libc (or have no raw accept4), so
// addresses go through the x/sys conversions.

func sysBind(fd int, addr *SocketAddr) error {
	sa, err := addr.sockaddr()
	if err != nil {
		return err
	}
	return unix.Bind(fd, sa)
}

func sysConnect(fd int, addr *SocketAddr) error {
	sa, err := addr.sockaddr()
	if err != nil {
		return err
	}
	return unix.Connect(fd, sa)
}

func sysSendto(fd int, b []byte, addr *SocketAddr) (int, error) {
	sa, err := addr.sockaddr()
	if err != nil {
		return 0, err
	}
	if err := unix.Sendto(fd, b, 0, sa); err != nil {
		return 0, err
	}
	return len(b), nil
}

func sysRecvfrom(fd int, b []byte, flags int, from *SocketAddr) (int, error) {
	n, sa, err := unix.Recvfrom(fd, b, flags)
	if err != nil {
		return 0, err
	}
	*from = fromSockaddr(sa)
	return n, nil
}

func sysAccept(fd int, addr *SocketAddr) (int, error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(nfd)
	*addr = fromSockaddr(sa)
	return nfd, nil
}

func sysGetsockname(fd int, addr *SocketAddr) error {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return err
	}
	*addr = fromSockaddr(sa)
	return nil
}

func sysGetpeername(fd int, addr *SocketAddr) error {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return err
	}
	*addr = fromSockaddr(sa)
	return nil
}

// sockaddr converts a to the form accepted by x/sys. The IPv6 flow info is
// not carried by unix.SockaddrInet6, and is dropped on these systems.
func (a *SocketAddr) sockaddr() (unix.Sockaddr, error) {
	switch a.Family() {
	case FamilyIPv4:
		return &unix.SockaddrInet4{Port: int(a.Port()), Addr: a.inet4().Addr}, nil
	case FamilyIPv6:
		sa := a.inet6()
		return &unix.SockaddrInet6{Port: int(a.Port()), ZoneId: sa.Scope_id, Addr: sa.Addr}, nil
	case FamilyUnix:
		return &unix.SockaddrUnix{Name: a.Path()}, nil
	default:
		return nil, ErrNullAddr
	}
}

func fromSockaddr(sa unix.Sockaddr) SocketAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		var a SocketAddr
		raw := a.inet4()
		a.setFamily(afInet, unix.SizeofSockaddrInet4)
		putPort(&raw.Port, uint16(sa.Port))
		raw.Addr = sa.Addr
		return a
	case *unix.SockaddrInet6:
		var a SocketAddr
		raw := a.inet6()
		a.setFamily(afInet6, unix.SizeofSockaddrInet6)
		putPort(&raw.Port, uint16(sa.Port))
		raw.Addr = sa.Addr
		raw.Scope_id = sa.ZoneId
		return a
	case *unix.SockaddrUnix:
		if sa.Name == `` {
			var a SocketAddr
			a.setFamily(afUnix, int32(pathOffset))
			return a
		}
		a, _ := UnixAddr(sa.Name)
		return a
	default:
		return SocketAddr{}
	}
}
