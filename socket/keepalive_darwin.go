//go:build darwin

package socket

import (
	"golang.org/x/sys/unix"
)

const (
	tcpKeepIdle  = unix.TCP_KEEPALIVE
	tcpKeepIntvl = unix.TCP_KEEPINTVL
)
