//go:build windows

package socket

import (
	"golang.org/x/sys/windows"
)

// Handle is an OS socket handle (a SOCKET).
type Handle = windows.Handle

// InvalidHandle is the null handle (INVALID_SOCKET).
const InvalidHandle Handle = windows.InvalidHandle
