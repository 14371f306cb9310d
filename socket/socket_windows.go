//go:build windows

package socket

import (
	"io"
	"time"
	"unsafe"

	"code.hybscloud.com/iox"
	"github.com/joeycumines/go-reactor/internal/winapi"
	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/windows"
)

func newHandle(family Family, typ Type) (Handle, error) {
	if err := startWinsock(); err != nil {
		return InvalidHandle, err
	}
	af := familyToAF(family)
	if af == windows.AF_UNSPEC {
		return InvalidHandle, ErrNullAddr
	}
	sotype, proto := windows.SOCK_STREAM, windows.IPPROTO_TCP
	if typ == TypeDatagram {
		sotype, proto = windows.SOCK_DGRAM, windows.IPPROTO_UDP
	}
	if family == FamilyUnix {
		proto = 0
	}
	h, err := windows.Socket(af, sotype, proto)
	if err != nil {
		return InvalidHandle, syserr.Wrap(`socket`, err)
	}
	_ = windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, 0)
	return h, nil
}

func closeHandle(h Handle) error {
	return syserr.Wrap(`closesocket`, windows.Closesocket(h))
}

func isWouldBlock(err error) bool {
	return err == winapi.WSAEWOULDBLOCK
}

func (s *Socket) recv(op string, b []byte, flags uint32) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	buf := windows.WSABuf{Len: uint32(len(b)), Buf: &b[0]}
	var n uint32
	for {
		f := flags
		err := windows.WSARecv(s.h, &buf, 1, &n, &f, nil, nil)
		switch {
		case err == winapi.WSAEINTR:
			continue
		case isWouldBlock(err):
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, syserr.Wrap(op, err)
		case n == 0 && s.typ == TypeStream:
			return 0, io.EOF
		}
		return int(n), nil
	}
}

// ReadSome performs a single read into b. A partial read is not an error.
// It returns iox.ErrWouldBlock if no data is available on a non-blocking
// socket, and io.EOF once a stream peer has shut down its writing side.
func (s *Socket) ReadSome(b []byte) (int, error) {
	return s.recv(`WSARecv`, b, 0)
}

// PeekSome is ReadSome, without consuming the data.
func (s *Socket) PeekSome(b []byte) (int, error) {
	return s.recv(`WSARecv`, b, winapi.MSG_PEEK)
}

// WriteSome performs a single write of b. A partial write is not an error.
// It returns iox.ErrWouldBlock if the send buffer is full on a non-blocking
// socket.
func (s *Socket) WriteSome(b []byte) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	buf := windows.WSABuf{Len: uint32(len(b)), Buf: &b[0]}
	var n uint32
	for {
		err := windows.WSASend(s.h, &buf, 1, &n, 0, nil, nil)
		switch {
		case err == winapi.WSAEINTR:
			continue
		case isWouldBlock(err):
			return 0, iox.ErrWouldBlock
		case err != nil:
			return 0, syserr.Wrap(`WSASend`, err)
		}
		return int(n), nil
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
	n, err := winapi.Sendto(s.h, b, 0, addr.Pointer(), addr.SizeOf())
	switch {
	case isWouldBlock(err):
		return 0, iox.ErrWouldBlock
	case err != nil:
		return 0, syserr.Wrap(`sendto`, err)
	}
	return n, nil
}

// RecvFrom receives a single datagram, returning the sender's address.
func (s *Socket) RecvFrom(b []byte) (int, SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return 0, SocketAddr{}, err
	}
	var (
		from SocketAddr
		size = int32(unsafe.Sizeof(from.raw))
	)
	n, err := winapi.Recvfrom(s.h, b, 0, &from.raw, &size)
	switch {
	case isWouldBlock(err):
		return 0, SocketAddr{}, iox.ErrWouldBlock
	case err != nil:
		return 0, SocketAddr{}, syserr.Wrap(`recvfrom`, err)
	}
	return n, from, nil
}

// Accept accepts a pending connection on a listening socket. The new socket
// inherits the listener's family and type. It returns iox.ErrWouldBlock if
// the listener is non-blocking and nothing is pending.
//
// A socket accepted from a listener registered with a reactor inherits the
// listener's event-select association, and therefore starts out
// non-blocking.
func (s *Socket) Accept() (*Socket, SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return nil, SocketAddr{}, err
	}
	var (
		addr SocketAddr
		size = int32(unsafe.Sizeof(addr.raw))
	)
	for {
		h, err := winapi.Accept(s.h, &addr.raw, &size)
		switch {
		case err == winapi.WSAEINTR || err == winapi.WSAECONNRESET:
			continue
		case isWouldBlock(err):
			return nil, SocketAddr{}, iox.ErrWouldBlock
		case err != nil:
			return nil, SocketAddr{}, syserr.Wrap(`accept`, err)
		}
		_ = windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, 0)
		return FromHandle(h, s.family, s.typ), addr, nil
	}
}

// SetNonBlocking toggles non-blocking mode. A socket registered with a
// reactor cannot be switched back to blocking mode until it is
// deregistered.
func (s *Socket) SetNonBlocking(enabled bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var arg uint32
	if enabled {
		arg = 1
	}
	return syserr.Wrap(`ioctlsocket`, winapi.Ioctlsocket(s.h, winapi.FIONBIO, &arg))
}

// SetNoDelay toggles TCP_NODELAY.
func (s *Socket) SetNoDelay(enabled bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return syserr.Wrap(`setsockopt`, windows.SetsockoptInt(s.h, windows.IPPROTO_TCP, windows.TCP_NODELAY, boolToInt(enabled)))
}

// SetReuseAddr toggles SO_REUSEADDR.
func (s *Socket) SetReuseAddr(enabled bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return syserr.Wrap(`setsockopt`, windows.SetsockoptInt(s.h, windows.SOL_SOCKET, windows.SO_REUSEADDR, boolToInt(enabled)))
}

// SetTimeout bounds how long a silent peer goes unnoticed, using TCP
// keep-alive: probing starts after d of idleness and repeats every d. A
// non-positive d disables keep-alive.
func (s *Socket) SetTimeout(d time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ka := windows.TCPKeepalive{}
	if d > 0 {
		ms := uint32(durationToMillis(d))
		ka = windows.TCPKeepalive{OnOff: 1, Time: ms, Interval: ms}
	}
	var ret uint32
	err := windows.WSAIoctl(
		s.h,
		windows.SIO_KEEPALIVE_VALS,
		(*byte)(unsafe.Pointer(&ka)),
		uint32(unsafe.Sizeof(ka)),
		nil,
		0,
		&ret,
		nil,
		0,
	)
	return syserr.Wrap(`WSAIoctl`, err)
}

// WaitForInput blocks until the socket is readable or timeout elapses, without
// involving any reactor. A negative timeout waits forever.
func (s *Socket) WaitForInput(timeout time.Duration) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var readfds winapi.FdSet
	readfds.Set(s.h)
	var tv *windows.Timeval
	if timeout >= 0 {
		tv = &windows.Timeval{
			Sec:  int32(timeout / time.Second),
			Usec: int32((timeout % time.Second) / time.Microsecond),
		}
	}
	n, err := winapi.Select(&readfds, nil, nil, tv)
	if err != nil {
		return false, syserr.Wrap(`select`, err)
	}
	return n > 0, nil
}

// Shutdown shuts down one or both directions of a connection.
func (s *Socket) Shutdown(how ShutdownHow) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var native int
	switch how {
	case ShutdownRead:
		native = windows.SHUT_RD
	case ShutdownWrite:
		native = windows.SHUT_WR
	case ShutdownBoth:
		native = windows.SHUT_RDWR
	default:
		return ErrInvalidShutdown
	}
	return syserr.Wrap(`shutdown`, windows.Shutdown(s.h, native))
}

// LocalAddr returns the address the socket is bound to.
func (s *Socket) LocalAddr() (SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return SocketAddr{}, err
	}
	var (
		addr SocketAddr
		size = int32(unsafe.Sizeof(addr.raw))
	)
	if err := winapi.Getsockname(s.h, &addr.raw, &size); err != nil {
		return SocketAddr{}, syserr.Wrap(`getsockname`, err)
	}
	return addr, nil
}

// PeerAddr returns the address of the connected peer.
func (s *Socket) PeerAddr() (SocketAddr, error) {
	if err := s.checkOpen(); err != nil {
		return SocketAddr{}, err
	}
	var (
		addr SocketAddr
		size = int32(unsafe.Sizeof(addr.raw))
	)
	if err := winapi.Getpeername(s.h, &addr.raw, &size); err != nil {
		return SocketAddr{}, syserr.Wrap(`getpeername`, err)
	}
	return addr, nil
}

func (s *Socket) connect(addr SocketAddr) error {
	if addr.IsNull() {
		return ErrNullAddr
	}
	return syserr.Wrap(`connect`, winapi.Connect(s.h, addr.Pointer(), addr.SizeOf()))
}

func (s *Socket) bind(addr SocketAddr) error {
	if addr.IsNull() {
		return ErrNullAddr
	}
	return syserr.Wrap(`bind`, winapi.Bind(s.h, addr.Pointer(), addr.SizeOf()))
}

func (s *Socket) listen(backlog int) error {
	if backlog <= 0 {
		backlog = windows.SOMAXCONN
	}
	return syserr.Wrap(`listen`, windows.Listen(s.h, backlog))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
