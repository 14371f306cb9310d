package socket

// TCPConnection is a connected stream socket.
type TCPConnection struct {
	Socket
}

// TCPConnect connects to addr, and enables TCP_NODELAY.
func TCPConnect(addr SocketAddr) (*TCPConnection, error) {
	s, err := Connect(addr, TypeStream)
	if err != nil {
		return nil, err
	}
	c := &TCPConnection{Socket: *s.take()}
	if err := c.SetNoDelay(true); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// TCPListener is a listening stream socket.
type TCPListener struct {
	Socket
}

// TCPListen listens on addr. Use port 0 to pick an ephemeral port, then
// LocalAddr to find out which.
func TCPListen(addr SocketAddr, backlog int) (*TCPListener, error) {
	s, err := Listen(addr, backlog)
	if err != nil {
		return nil, err
	}
	return &TCPListener{Socket: *s.take()}, nil
}

// Accept accepts a pending connection, see Socket.Accept.
func (l *TCPListener) Accept() (*TCPConnection, SocketAddr, error) {
	s, addr, err := l.Socket.Accept()
	if err != nil {
		return nil, addr, err
	}
	return &TCPConnection{Socket: *s.take()}, addr, nil
}

// UDPSocket is a bound datagram socket.
type UDPSocket struct {
	Socket
}

// UDPBind binds a datagram socket to addr.
func UDPBind(addr SocketAddr) (*UDPSocket, error) {
	s, err := Bind(addr, TypeDatagram)
	if err != nil {
		return nil, err
	}
	return &UDPSocket{Socket: *s.take()}, nil
}

// take moves the ownership out of s, leaving it null.
func (s *Socket) take() *Socket {
	moved := *s
	s.h, s.open = InvalidHandle, false
	return &moved
}
