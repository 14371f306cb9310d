//go:build openbsd

package socket

// OpenBSD only supports system wide keep-alive timing.
const (
	tcpKeepIdle  = -1
	tcpKeepIntvl = -1
)
