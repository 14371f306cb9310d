//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package socket

// Handle is an OS socket handle (a file descriptor).
type Handle = int

// InvalidHandle is the null handle.
const InvalidHandle Handle = -1
