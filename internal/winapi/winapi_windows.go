// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

// Package winapi binds the Win32 and WinSock entry points that are not
// exposed by golang.org/x/sys/windows.
package winapi

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modws2_32   = windows.NewLazySystemDLL("ws2_32.dll")
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procIoctlsocket                 = modws2_32.NewProc("ioctlsocket")
	procSelect                      = modws2_32.NewProc("select")
	procAccept                      = modws2_32.NewProc("accept")
	procBind                        = modws2_32.NewProc("bind")
	procConnect                     = modws2_32.NewProc("connect")
	procGetsockname                 = modws2_32.NewProc("getsockname")
	procGetpeername                 = modws2_32.NewProc("getpeername")
	procSendto                      = modws2_32.NewProc("sendto")
	procRecvfrom                    = modws2_32.NewProc("recvfrom")
	procWSAEventSelect              = modws2_32.NewProc("WSAEventSelect")
	procWSAEnumNetworkEvents        = modws2_32.NewProc("WSAEnumNetworkEvents")
	procGetQueuedCompletionStatusEx = modkernel32.NewProc("GetQueuedCompletionStatusEx")
	procCreateWaitableTimerW        = modkernel32.NewProc("CreateWaitableTimerW")
	procSetWaitableTimer            = modkernel32.NewProc("SetWaitableTimer")
	procCancelWaitableTimer         = modkernel32.NewProc("CancelWaitableTimer")
	procWaitForMultipleObjectsEx    = modkernel32.NewProc("WaitForMultipleObjectsEx")
)

// WinSock constants.
const (
	FIONBIO = 0x8004667e

	FD_READ    = 0x01
	FD_WRITE   = 0x02
	FD_OOB     = 0x04
	FD_ACCEPT  = 0x08
	FD_CONNECT = 0x10
	FD_CLOSE   = 0x20

	FD_CONNECT_BIT = 4
	FD_CLOSE_BIT   = 5
	FD_MAX_EVENTS  = 10

	// FD_SETSIZE is the capacity of FdSet, matching WSA_MAXIMUM_WAIT_EVENTS.
	FD_SETSIZE = 64

	MSG_PEEK = 0x2
)

// WinSock error codes.
const (
	WSAEINTR       syscall.Errno = 10004
	WSAEWOULDBLOCK syscall.Errno = 10035
	WSAENOTSOCK    syscall.Errno = 10038
	WSAECONNRESET  syscall.Errno = 10054
)

// Wait results.
const (
	WAIT_OBJECT_0      = 0x00000000
	WAIT_IO_COMPLETION = 0x000000C0
	WAIT_TIMEOUT       = 0x00000102
	WAIT_FAILED        = 0xFFFFFFFF

	// MAXIMUM_WAIT_OBJECTS bounds WaitForMultipleObjectsEx.
	MAXIMUM_WAIT_OBJECTS = 64
)

// FdSet is the WinSock fd_set.
type FdSet struct {
	Count uint32
	Array [FD_SETSIZE]windows.Handle
}

// Set adds h, reporting false if the set is full.
func (x *FdSet) Set(h windows.Handle) bool {
	if x.Count >= FD_SETSIZE {
		return false
	}
	x.Array[x.Count] = h
	x.Count++
	return true
}

// IsSet reports whether h is in the set.
func (x *FdSet) IsSet(h windows.Handle) bool {
	for i := uint32(0); i < x.Count; i++ {
		if x.Array[i] == h {
			return true
		}
	}
	return false
}

// NetworkEvents is WSANETWORKEVENTS.
type NetworkEvents struct {
	Events     int32
	ErrorCodes [FD_MAX_EVENTS]int32
}

// OverlappedEntry is OVERLAPPED_ENTRY.
type OverlappedEntry struct {
	CompletionKey            uintptr
	Overlapped               *windows.Overlapped
	Internal                 uintptr
	NumberOfBytesTransferred uint32
}

// Ioctlsocket calls ioctlsocket.
func Ioctlsocket(s windows.Handle, cmd uint32, arg *uint32) error {
	r1, _, e1 := syscall.SyscallN(procIoctlsocket.Addr(), uintptr(s), uintptr(cmd), uintptr(unsafe.Pointer(arg)))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// Select calls select. A nil timeout waits forever.
func Select(readfds, writefds, exceptfds *FdSet, timeout *windows.Timeval) (int, error) {
	r1, _, e1 := syscall.SyscallN(
		procSelect.Addr(),
		0, // ignored
		uintptr(unsafe.Pointer(readfds)),
		uintptr(unsafe.Pointer(writefds)),
		uintptr(unsafe.Pointer(exceptfds)),
		uintptr(unsafe.Pointer(timeout)),
	)
	if int32(r1) < 0 {
		return 0, errnoErr(e1)
	}
	return int(int32(r1)), nil
}

// Accept calls accept, filling rsa with the peer address.
func Accept(s windows.Handle, rsa *windows.RawSockaddrAny, addrlen *int32) (windows.Handle, error) {
	r1, _, e1 := syscall.SyscallN(procAccept.Addr(), uintptr(s), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(addrlen)))
	if windows.Handle(r1) == windows.InvalidHandle {
		return windows.InvalidHandle, errnoErr(e1)
	}
	return windows.Handle(r1), nil
}

// Bind calls bind with a native address of namelen bytes.
func Bind(s windows.Handle, name unsafe.Pointer, namelen int32) error {
	r1, _, e1 := syscall.SyscallN(procBind.Addr(), uintptr(s), uintptr(name), uintptr(namelen))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// Connect calls connect with a native address of namelen bytes.
func Connect(s windows.Handle, name unsafe.Pointer, namelen int32) error {
	r1, _, e1 := syscall.SyscallN(procConnect.Addr(), uintptr(s), uintptr(name), uintptr(namelen))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// Getsockname calls getsockname, filling rsa.
func Getsockname(s windows.Handle, rsa *windows.RawSockaddrAny, addrlen *int32) error {
	r1, _, e1 := syscall.SyscallN(procGetsockname.Addr(), uintptr(s), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(addrlen)))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// Getpeername calls getpeername, filling rsa.
func Getpeername(s windows.Handle, rsa *windows.RawSockaddrAny, addrlen *int32) error {
	r1, _, e1 := syscall.SyscallN(procGetpeername.Addr(), uintptr(s), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(addrlen)))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// Sendto calls sendto with a native address of tolen bytes.
func Sendto(s windows.Handle, b []byte, flags int32, to unsafe.Pointer, tolen int32) (int, error) {
	var p *byte
	if len(b) > 0 {
		p = &b[0]
	}
	r1, _, e1 := syscall.SyscallN(procSendto.Addr(), uintptr(s), uintptr(unsafe.Pointer(p)), uintptr(len(b)), uintptr(flags), uintptr(to), uintptr(tolen))
	if int32(r1) < 0 {
		return 0, errnoErr(e1)
	}
	return int(int32(r1)), nil
}

// Recvfrom calls recvfrom, filling rsa with the sender's address.
func Recvfrom(s windows.Handle, b []byte, flags int32, rsa *windows.RawSockaddrAny, addrlen *int32) (int, error) {
	var p *byte
	if len(b) > 0 {
		p = &b[0]
	}
	r1, _, e1 := syscall.SyscallN(procRecvfrom.Addr(), uintptr(s), uintptr(unsafe.Pointer(p)), uintptr(len(b)), uintptr(flags), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(addrlen)))
	if int32(r1) < 0 {
		return 0, errnoErr(e1)
	}
	return int(int32(r1)), nil
}

// WSAEventSelect associates the network events in mask with event. It also
// switches s to non-blocking mode. A zero mask (and event) cancels the
// association.
func WSAEventSelect(s windows.Handle, event windows.Handle, mask uint32) error {
	r1, _, e1 := syscall.SyscallN(procWSAEventSelect.Addr(), uintptr(s), uintptr(event), uintptr(mask))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// WSAEnumNetworkEvents reads and clears the network events recorded for s.
// If event is non-zero it is reset as well.
func WSAEnumNetworkEvents(s windows.Handle, event windows.Handle, events *NetworkEvents) error {
	r1, _, e1 := syscall.SyscallN(procWSAEnumNetworkEvents.Addr(), uintptr(s), uintptr(event), uintptr(unsafe.Pointer(events)))
	if int32(r1) != 0 {
		return errnoErr(e1)
	}
	return nil
}

// GetQueuedCompletionStatusEx dequeues up to len(entries) completions.
func GetQueuedCompletionStatusEx(port windows.Handle, entries []OverlappedEntry, removed *uint32, milliseconds uint32, alertable bool) error {
	if len(entries) == 0 {
		return windows.ERROR_INVALID_PARAMETER
	}
	r1, _, e1 := syscall.SyscallN(
		procGetQueuedCompletionStatusEx.Addr(),
		uintptr(port),
		uintptr(unsafe.Pointer(&entries[0])),
		uintptr(len(entries)),
		uintptr(unsafe.Pointer(removed)),
		uintptr(milliseconds),
		boolToUintptr(alertable),
	)
	if r1 == 0 {
		return errnoErr(e1)
	}
	return nil
}

// CreateWaitableTimer creates an unnamed, auto-reset waitable timer.
func CreateWaitableTimer() (windows.Handle, error) {
	r1, _, e1 := syscall.SyscallN(procCreateWaitableTimerW.Addr(), 0, 0, 0)
	if r1 == 0 {
		return 0, errnoErr(e1)
	}
	return windows.Handle(r1), nil
}

// SetWaitableTimer arms h. A negative dueTime is relative, in 100ns units;
// period is in milliseconds, 0 for one-shot. The completion routine is queued
// as an APC to the calling thread, which must wait alertably.
func SetWaitableTimer(h windows.Handle, dueTime int64, period int32, completionRoutine uintptr, arg uintptr) error {
	r1, _, e1 := syscall.SyscallN(
		procSetWaitableTimer.Addr(),
		uintptr(h),
		uintptr(unsafe.Pointer(&dueTime)),
		uintptr(period),
		completionRoutine,
		arg,
		0,
	)
	if r1 == 0 {
		return errnoErr(e1)
	}
	return nil
}

// CancelWaitableTimer disarms h.
func CancelWaitableTimer(h windows.Handle) error {
	r1, _, e1 := syscall.SyscallN(procCancelWaitableTimer.Addr(), uintptr(h))
	if r1 == 0 {
		return errnoErr(e1)
	}
	return nil
}

// WaitForMultipleObjectsEx waits for any of handles (waitAll is not
// supported), optionally alertable so queued APCs run.
func WaitForMultipleObjectsEx(handles []windows.Handle, milliseconds uint32, alertable bool) (uint32, error) {
	if len(handles) == 0 || len(handles) > MAXIMUM_WAIT_OBJECTS {
		return WAIT_FAILED, windows.ERROR_INVALID_PARAMETER
	}
	r1, _, e1 := syscall.SyscallN(
		procWaitForMultipleObjectsEx.Addr(),
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&handles[0])),
		0,
		uintptr(milliseconds),
		boolToUintptr(alertable),
	)
	if uint32(r1) == WAIT_FAILED {
		return WAIT_FAILED, errnoErr(e1)
	}
	return uint32(r1), nil
}

func boolToUintptr(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

func errnoErr(e syscall.Errno) error {
	if e == 0 {
		return syscall.EINVAL
	}
	return e
}
