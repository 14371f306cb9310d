package socket

import (
	"io"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTCPPair returns a connected client/server pair over loopback.
func newTCPPair(t *testing.T) (client, server *TCPConnection) {
	t.Helper()
	ln, err := TCPListen(ParseSocketAddr(`127.0.0.1:0`, false), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	addr, err := ln.LocalAddr()
	require.NoError(t, err)
	require.Equal(t, FamilyIPv4, addr.Family())
	require.NotZero(t, addr.Port())

	client, err = TCPConnect(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	server, peer, err := ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	local, err := client.LocalAddr()
	require.NoError(t, err)
	assert.Equal(t, local, peer)

	return client, server
}

func TestTCP_readWrite(t *testing.T) {
	client, server := newTCPPair(t)

	n, err := client.WriteAll([]byte(`hello`))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	ok, err := server.WaitForInput(5 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	buf := make([]byte, 16)
	n, err = server.PeekSome(buf[:2])
	require.NoError(t, err)
	assert.Equal(t, `he`, string(buf[:n]))

	var got []byte
	for len(got) < 5 {
		n, err = server.ReadSome(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, `hello`, string(got))
}

func TestTCP_wouldBlock(t *testing.T) {
	client, server := newTCPPair(t)
	require.NoError(t, server.SetNonBlocking(true))

	n, err := server.ReadSome(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, iox.ErrWouldBlock)
	assert.True(t, iox.IsWouldBlock(err))

	n, err = server.PeekSome(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, iox.ErrWouldBlock)

	_ = client
}

func TestTCP_eof(t *testing.T) {
	client, server := newTCPPair(t)
	require.NoError(t, client.Shutdown(ShutdownWrite))

	ok, err := server.WaitForInput(5 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := server.ReadSome(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTCP_options(t *testing.T) {
	client, _ := newTCPPair(t)
	assert.NoError(t, client.SetNoDelay(false))
	assert.NoError(t, client.SetNoDelay(true))
	assert.NoError(t, client.SetTimeout(30*time.Second))
	assert.NoError(t, client.SetTimeout(0))
	assert.NoError(t, client.SetNonBlocking(true))
	assert.NoError(t, client.SetNonBlocking(false))
	assert.ErrorIs(t, client.Shutdown(ShutdownHow(0)), ErrInvalidShutdown)

	peer, err := client.PeerAddr()
	require.NoError(t, err)
	assert.Equal(t, `127.0.0.1`, peer.HostString())
}

func TestWaitForInput_timeout(t *testing.T) {
	_, server := newTCPPair(t)
	start := time.Now()
	ok, err := server.WaitForInput(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestUDP_sendRecv(t *testing.T) {
	a, err := UDPBind(ParseSocketAddr(`127.0.0.1:0`, false))
	require.NoError(t, err)
	defer a.Close()
	b, err := UDPBind(ParseSocketAddr(`127.0.0.1:0`, false))
	require.NoError(t, err)
	defer b.Close()

	addrA, err := a.LocalAddr()
	require.NoError(t, err)
	addrB, err := b.LocalAddr()
	require.NoError(t, err)

	n, err := a.SendTo([]byte(`ping`), addrB)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 64)
	n, from, err := b.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, `ping`, string(buf[:n]))
	assert.Equal(t, addrA, from)
}

func TestSocket_ownership(t *testing.T) {
	s, err := New(FamilyIPv4, TypeStream)
	require.NoError(t, err)
	require.False(t, s.IsNull())
	assert.Equal(t, FamilyIPv4, s.Family())
	assert.Equal(t, TypeStream, s.Type())

	h := s.Release()
	assert.NotEqual(t, InvalidHandle, h)
	assert.True(t, s.IsNull())
	assert.Equal(t, InvalidHandle, s.Handle())
	assert.NoError(t, s.Close())

	moved := FromHandle(h, FamilyIPv4, TypeStream)
	assert.Equal(t, h, moved.Handle())
	assert.NoError(t, moved.Close())
	assert.NoError(t, moved.Close())

	_, err = moved.ReadSome(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = moved.LocalAddr()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSocket_zero(t *testing.T) {
	var s Socket
	assert.True(t, s.IsNull())
	assert.NoError(t, s.Close())
	_, err := s.WriteSome([]byte(`x`))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_nullAddr(t *testing.T) {
	_, err := New(FamilyUnspec, TypeStream)
	assert.ErrorIs(t, err, ErrNullAddr)
	_, err = Connect(SocketAddr{}, TypeStream)
	assert.ErrorIs(t, err, ErrNullAddr)
}

func TestConnect_refused(t *testing.T) {
	ln, err := TCPListen(ParseSocketAddr(`127.0.0.1:0`, false), 0)
	require.NoError(t, err)
	addr, err := ln.LocalAddr()
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	_, err = TCPConnect(addr)
	require.Error(t, err)
}
