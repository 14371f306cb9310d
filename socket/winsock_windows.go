//go:build windows

package socket

import (
	"sync"

	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/windows"
)

// WinSock is reference counted by the OS. The reference taken here is never
// given back: sockets may outlive any owner we could tie a cleanup to, so the
// library stays initialized until the process exits.
var winsock struct {
	once sync.Once
	err  error
}

func startWinsock() error {
	winsock.once.Do(func() {
		var data windows.WSAData
		winsock.err = syserr.Wrap(`WSAStartup`, windows.WSAStartup(uint32(0x202), &data))
	})
	return winsock.err
}
