//go:build linux || dragonfly || freebsd || netbsd

package socket

import (
	"golang.org/x/sys/unix"
)

const (
	tcpKeepIdle  = unix.TCP_KEEPIDLE
	tcpKeepIntvl = unix.TCP_KEEPINTVL
)
