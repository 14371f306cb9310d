//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package socket

import (
	"io"
	"syscall"
	"time"

	"code.hybscloud.com/iox"
	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/unix"
)

func newHandle(family Family, typ Type) (Handle, error) {
	af := familyToAF(family)
	if af == unix.AF_UNSPEC {
		return InvalidHandle, ErrNullAddr
	}
	sotype := unix.SOCK_STREAM
	if typ == TypeDatagram {
		sotype = unix.SOCK_DGRAM
	}
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(af, sotype, 0)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return InvalidHandle, syserr.Wrap(`socket`, err)
	}
	return fd, nil
}

func closeHandle(h Handle) error {
	return syserr.Wrap(`close`, unix.Close(h))
}

// ReadSome performs a single read into b. A partial read is not an error.
// It returns iox.ErrWouldBlock if no data is available on a non-blocking
// socket, and io.EOF once a stream peer has shut down its writing side.
func (s *Socket) ReadSome(b []byte) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	for {
		n, err := unix.Read(s.h, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, syserr.Wrap(`read`, err)
		case n == 0 && len(b) != 0 && s.typ == TypeStream:
			return 0, io.EOF
		}
		return n, nil
	}
}

// WriteSome performs a single write of b. A partial write is not an error.
// It returns iox.ErrWouldBlock if the send buffer is full on a non-blocking
// socket.
func (s *Socket) WriteSome(b []byte) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	for {
		n, err := unix.Write(s.h, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, syserr.Wrap(`write`, err)
		}
		return n, nil
	}
}

// PeekSome is ReadSome, without consuming the data.
func (s *Socket) PeekSome(b []byte) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	for {
		n, _, err := unix.Recvfrom(s.h, b, unix.MSG_PEEK)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, syserr.Wrap(`recvfrom`, err)
		case n == 0 && len(b) != 0 && s.typ == TypeStream:
			return 0, io.EOF
		}
		return n, nil
	}
}

// SendTo sends a single datagram to addr.
func (s *Socket) SendTo(b []byte, addr SocketAddr) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if addr.IsNull() {
		return 0, ErrNullAddr
	}
	for {
		n, err := sysSendto(s.h, b, &addr)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, syserr.Wrap(`sendto`, err)
		}
		return n, nil
	}
}

// RecvFrom receives a single datagram, returning the sender's address.
func (s *Socket) RecvFrom(b []byte) (int, SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return 0, SocketAddr{}, err
	}
	for {
		var from SocketAddr
		n, err := sysRecvfrom(s.h, b, 0, &from)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, SocketAddr{}, iox.ErrWouldBlock
		case err != nil:
			return 0, SocketAddr{}, syserr.Wrap(`recvfrom`, err)
		}
		return n, from, nil
	}
}

// Accept accepts a pending connection on a listening socket. The new socket
// inherits the listener's family and type, and is in blocking mode. It
// returns iox.ErrWouldBlock if the listener is non-blocking and nothing is
// pending.
func (s *Socket) Accept() (*Socket, SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return nil, SocketAddr{}, err
	}
	for {
		var addr SocketAddr
		fd, err := sysAccept(s.h, &addr)
		switch {
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return nil, SocketAddr{}, iox.ErrWouldBlock
		case err != nil:
			return nil, SocketAddr{}, syserr.Wrap(`accept`, err)
		}
		if err := unix.SetNonblock(fd, false); err != nil {
			_ = unix.Close(fd)
			return nil, SocketAddr{}, syserr.Wrap(`fcntl`, err)
		}
		return FromHandle(fd, s.family, s.typ), addr, nil
	}
}

// SetNonBlocking toggles non-blocking mode.
func (s *Socket) SetNonBlocking(enabled bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return syserr.Wrap(`fcntl`, unix.SetNonblock(s.h, enabled))
}

// SetNoDelay toggles TCP_NODELAY.
func (s *Socket) SetNoDelay(enabled bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return syserr.Wrap(`setsockopt`, unix.SetsockoptInt(s.h, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(enabled)))
}

// SetReuseAddr toggles SO_REUSEADDR.
func (s *Socket) SetReuseAddr(enabled bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return syserr.Wrap(`setsockopt`, unix.SetsockoptInt(s.h, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(enabled)))
}

// SetTimeout bounds how long a silent peer goes unnoticed, using TCP
// keep-alive: probing starts after d of idleness and repeats every d. A
// non-positive d disables keep-alive.
func (s *Socket) SetTimeout(d time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if d <= 0 {
		return syserr.Wrap(`setsockopt`, unix.SetsockoptInt(s.h, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 0))
	}
	if err := unix.SetsockoptInt(s.h, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return syserr.Wrap(`setsockopt`, err)
	}
	secs := int((d + time.Second - 1) / time.Second)
	if tcpKeepIdle >= 0 {
		if err := unix.SetsockoptInt(s.h, unix.IPPROTO_TCP, tcpKeepIdle, secs); err != nil {
			return syserr.Wrap(`setsockopt`, err)
		}
	}
	if tcpKeepIntvl >= 0 {
		if err := unix.SetsockoptInt(s.h, unix.IPPROTO_TCP, tcpKeepIntvl, secs); err != nil {
			return syserr.Wrap(`setsockopt`, err)
		}
	}
	return nil
}

// WaitForInput blocks until the socket is readable or timeout elapses, without
// involving any reactor. A negative timeout waits forever.
func (s *Socket) WaitForInput(timeout time.Duration) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	fds := []unix.PollFd{{Fd: int32(s.h), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, durationToMillis(timeout))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, syserr.Wrap(`poll`, err)
		}
		return n > 0, nil
	}
}

// Shutdown shuts down one or both directions of a connection.
func (s *Socket) Shutdown(how ShutdownHow) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var native int
	switch how {
	case ShutdownRead:
		native = unix.SHUT_RD
	case ShutdownWrite:
		native = unix.SHUT_WR
	case ShutdownBoth:
		native = unix.SHUT_RDWR
	default:
		return ErrInvalidShutdown
	}
	return syserr.Wrap(`shutdown`, unix.Shutdown(s.h, native))
}

// LocalAddr returns the address the socket is bound to.
func (s *Socket) LocalAddr() (SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return SocketAddr{}, err
	}
	var addr SocketAddr
	if err := sysGetsockname(s.h, &addr); err != nil {
		return SocketAddr{}, syserr.Wrap(`getsockname`, err)
	}
	return addr, nil
}

// PeerAddr returns the address of the connected peer.
func (s *Socket) PeerAddr() (SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return SocketAddr{}, err
	}
	var addr SocketAddr
	if err := sysGetpeername(s.h, &addr); err != nil {
		return SocketAddr{}, syserr.Wrap(`getpeername`, err)
	}
	return addr, nil
}

func (s *Socket) connect(addr SocketAddr) error {
	if addr.IsNull() {
		return ErrNullAddr
	}
	err := sysConnect(s.h, &addr)
	if err != unix.EINTR {
		return syserr.Wrap(`connect`, err)
	}
	// the connection attempt carries on in the background
	fds := []unix.PollFd{{Fd: int32(s.h), Events: unix.POLLOUT}}
	for {
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return syserr.Wrap(`poll`, err)
		}
		break
	}
	soerr, err := unix.GetsockoptInt(s.h, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return syserr.Wrap(`getsockopt`, err)
	}
	if soerr != 0 {
		return syserr.Wrap(`connect`, unix.Errno(soerr))
	}
	return nil
}

func (s *Socket) bind(addr SocketAddr) error {
	if addr.IsNull() {
		return ErrNullAddr
	}
	return syserr.Wrap(`bind`, sysBind(s.h, &addr))
}

func (s *Socket) listen(backlog int) error {
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	return syserr.Wrap(`listen`, unix.Listen(s.h, backlog))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
