package socket

import (
	"time"

	"code.hybscloud.com/iox"
)

// Type is the socket type.
type Type uint8

const (
	// TypeStream is a connection oriented byte stream (TCP, or SOCK_STREAM
	// local sockets).
	TypeStream Type = iota + 1
	// TypeDatagram is a connectionless datagram socket (UDP).
	TypeDatagram
)

// ShutdownHow selects the direction(s) closed by Socket.Shutdown.
type ShutdownHow uint8

const (
	ShutdownRead ShutdownHow = iota + 1
	ShutdownWrite
	ShutdownBoth
)

// Socket owns a single OS socket handle.
//
// A Socket must not be copied after first use. The zero value is a closed
// (null) socket. Methods other than Close, Release and IsNull must not be
// called concurrently with Close.
type Socket struct {
	h      Handle
	open   bool
	family Family
	typ    Type
}

// New creates an unconnected socket.
func New(family Family, typ Type) (*Socket, error) {
	h, err := newHandle(family, typ)
	if err != nil {
		return nil, err
	}
	return &Socket{h: h, open: true, family: family, typ: typ}, nil
}

// FromHandle takes ownership of h, which must be a socket of the given
// family and type.
func FromHandle(h Handle, family Family, typ Type) *Socket {
	return &Socket{h: h, open: h != InvalidHandle, family: family, typ: typ}
}

// Connect creates a socket and connects it to addr. The connect call itself
// blocks; the returned socket is in blocking mode.
func Connect(addr SocketAddr, typ Type) (*Socket, error) {
	s, err := New(addr.Family(), typ)
	if err != nil {
		return nil, err
	}
	if err := s.connect(addr); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Bind creates a socket bound to addr, with address reuse enabled.
func Bind(addr SocketAddr, typ Type) (*Socket, error) {
	s, err := New(addr.Family(), typ)
	if err != nil {
		return nil, err
	}
	if addr.Family() != FamilyUnix {
		if err := s.SetReuseAddr(true); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	if err := s.bind(addr); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Listen creates a stream socket bound to addr, listening with the given
// backlog. A backlog <= 0 uses the system maximum.
func Listen(addr SocketAddr, backlog int) (*Socket, error) {
	s, err := Bind(addr, TypeStream)
	if err != nil {
		return nil, err
	}
	if err := s.listen(backlog); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Handle returns the OS handle, or InvalidHandle if the socket is closed.
func (s *Socket) Handle() Handle {
	if s == nil || !s.open {
		return InvalidHandle
	}
	return s.h
}

// IsNull reports whether the socket no longer owns a handle.
func (s *Socket) IsNull() bool {
	return s == nil || !s.open
}

// Family returns the address family the socket was created with.
func (s *Socket) Family() Family {
	return s.family
}

// Type returns the socket type.
func (s *Socket) Type() Type {
	return s.typ
}

// Release gives up ownership of the handle without closing it, and returns
// it. The socket becomes null.
func (s *Socket) Release() Handle {
	if s.IsNull() {
		return InvalidHandle
	}
	h := s.h
	s.h, s.open = InvalidHandle, false
	return h
}

// Close closes the handle. Closing a null socket is a no-op.
func (s *Socket) Close() error {
	if s.IsNull() {
		return nil
	}
	return closeHandle(s.Release())
}

// WriteAll writes all of b, waiting with adaptive backoff whenever the socket
// would block. It is intended for simple call sites (tests, small control
// messages); reactor driven code should wait for writability instead.
func (s *Socket) WriteAll(b []byte) (int, error) {
	var (
		bo    iox.Backoff
		total int
	)
	for total < len(b) {
		n, err := s.WriteSome(b[total:])
		total += n
		if err != nil {
			if iox.IsWouldBlock(err) {
				bo.Wait()
				continue
			}
			return total, err
		}
		bo.Reset()
	}
	return total, nil
}

func (s *Socket) checkOpen() error {
	if s.IsNull() {
		return ErrClosed
	}
	return nil
}

// durationToMillis converts a wait timeout, negative meaning forever.
func durationToMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		ms = 1
	}
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int(ms)
}
