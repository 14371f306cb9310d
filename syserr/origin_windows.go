//go:build windows

package syserr

// syscall.Errno holds GetLastError / WSAGetLastError values on Windows.
const errnoOrigin = OriginWindows
