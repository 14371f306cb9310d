// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// IPV6_FLOWINFO_SEND, from linux/in6.h
const ipv6FlowinfoSend = 0x21

func TestConnect_flowInfoRoundTrip(t *testing.T) {
	server, err := UDPBind(ParseSocketAddr(`[::1]:0`, false))
	if err != nil {
		t.Skipf(`no IPv6 loopback: %v`, err)
	}
	defer server.Close()
	addr, err := server.LocalAddr()
	require.NoError(t, err)

	s, err := New(FamilyIPv6, TypeDatagram)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, unix.SetsockoptInt(s.Handle(), unix.IPPROTO_IPV6, ipv6FlowinfoSend, 1))

	// traffic class only, a non-zero flow label needs a lease
	const flow = 0x0ab00000
	require.NoError(t, s.connect(addr.WithFlowInfo(flow)))
	peer, err := s.PeerAddr()
	require.NoError(t, err)
	assert.Equal(t, uint32(flow), peer.FlowInfo())
	assert.Equal(t, addr.AddrPort(), peer.AddrPort())

	// the kernel rejects a flow label it has no lease for
	_, err = s.SendTo([]byte(`x`), addr.WithFlowInfo(0x12345))
	assert.ErrorIs(t, err, unix.EINVAL)
	_, err = s.SendTo([]byte(`x`), addr)
	assert.NoError(t, err)
}

func TestAccept_peerMatchesRawAddress(t *testing.T) {
	ln, err := TCPListen(ParseSocketAddr(`[::1]:0`, false), 0)
	if err != nil {
		t.Skipf(`no IPv6 loopback: %v`, err)
	}
	defer ln.Close()
	addr, err := ln.LocalAddr()
	require.NoError(t, err)
	require.Equal(t, FamilyIPv6, addr.Family())

	client, err := TCPConnect(addr.WithFlowInfo(0x0ab00000))
	require.NoError(t, err)
	defer client.Close()
	server, peer, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()

	local, err := client.LocalAddr()
	require.NoError(t, err)
	assert.Equal(t, local, peer)
	assert.Equal(t, int32(unix.SizeofSockaddrInet6), peer.SizeOf())
}
