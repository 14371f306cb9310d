// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || freebsd

package socket

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// The address syscalls are made directly with the native structure, as the
// x/sys Sockaddr types have no room for the IPv6 flow info.

func sysBind(fd int, addr *SocketAddr) error {
	_, _, e := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(addr.Pointer()), uintptr(addr.SizeOf()))
	return errnoErr(e)
}

func sysConnect(fd int, addr *SocketAddr) error {
	_, _, e := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(addr.Pointer()), uintptr(addr.SizeOf()))
	return errnoErr(e)
}

func sysSendto(fd int, b []byte, addr *SocketAddr) (int, error) {
	n, _, e := unix.Syscall6(unix.SYS_SENDTO, uintptr(fd), uintptr(bufferPointer(b)), uintptr(len(b)), 0, uintptr(addr.Pointer()), uintptr(addr.SizeOf()))
	if e != 0 {
		return 0, e
	}
	return int(n), nil
}

func sysRecvfrom(fd int, b []byte, flags int, from *SocketAddr) (int, error) {
	size := uint32(unsafe.Sizeof(from.raw))
	n, _, e := unix.Syscall6(unix.SYS_RECVFROM, uintptr(fd), uintptr(bufferPointer(b)), uintptr(len(b)), uintptr(flags), uintptr(from.Pointer()), uintptr(unsafe.Pointer(&size)))
	if e != 0 {
		return 0, e
	}
	return int(n), nil
}

// sysAccept accepts with close-on-exec set atomically.
func sysAccept(fd int, addr *SocketAddr) (int, error) {
	size := uint32(unsafe.Sizeof(addr.raw))
	nfd, _, e := unix.Syscall6(unix.SYS_ACCEPT4, uintptr(fd), uintptr(addr.Pointer()), uintptr(unsafe.Pointer(&size)), unix.SOCK_CLOEXEC, 0, 0)
	if e != 0 {
		return -1, e
	}
	return int(nfd), nil
}

func sysGetsockname(fd int, addr *SocketAddr) error {
	size := uint32(unsafe.Sizeof(addr.raw))
	_, _, e := unix.Syscall(unix.SYS_GETSOCKNAME, uintptr(fd), uintptr(addr.Pointer()), uintptr(unsafe.Pointer(&size)))
	return errnoErr(e)
}

func sysGetpeername(fd int, addr *SocketAddr) error {
	size := uint32(unsafe.Sizeof(addr.raw))
	_, _, e := unix.Syscall(unix.SYS_GETPEERNAME, uintptr(fd), uintptr(addr.Pointer()), uintptr(unsafe.Pointer(&size)))
	return errnoErr(e)
}

func bufferPointer(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func errnoErr(e unix.Errno) error {
	if e == 0 {
		return nil
	}
	return e
}
