package socket

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
	"unsafe"
)

// Family is the address family of a SocketAddr.
type Family uint8

const (
	// FamilyUnspec is the family of the null address.
	FamilyUnspec Family = iota
	// FamilyUnix is a local (filesystem path) address.
	FamilyUnix
	// FamilyIPv4 is an IPv4 address and port.
	FamilyIPv4
	// FamilyIPv6 is an IPv6 address, port, flow info and scope id.
	FamilyIPv6
)

// String returns a human-readable representation of the family.
func (f Family) String() string {
	switch f {
	case FamilyUnix:
		return "unix"
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// SocketAddr is a socket address, stored in the layout of the platform's
// native socket address structure.
//
// The zero value is the null address. SocketAddr values are comparable, and
// are immutable once built, either by one of the constructors in this package
// or by the OS (Accept, LocalAddr, PeerAddr, RecvFrom). The OS calls use the
// native structure as is, so IPv6 flow info set with WithFlowInfo reaches
// bind, connect and sendto, except on darwin, dragonfly, netbsd and openbsd.
type SocketAddr struct {
	raw rawSockaddrAny
}

const pathOffset = unsafe.Offsetof(rawSockaddrUnix{}.Path)

// MaxPathLen is the longest local address path supported by this platform.
const MaxPathLen = len(rawSockaddrUnix{}.Path) - 1

// AddrFromNetip builds an IPv4 or IPv6 address from ap. IPv4-mapped IPv6
// addresses are kept as IPv6. A numeric zone is used as the scope id; a named
// zone is resolved to its interface index, and yields the null address if no
// such interface exists.
func AddrFromNetip(ap netip.AddrPort) SocketAddr {
	var a SocketAddr
	ip := ap.Addr()
	switch {
	case ip.Is4():
		sa := a.inet4()
		a.setFamily(afInet, int32(unsafe.Sizeof(*sa)))
		putPort(&sa.Port, ap.Port())
		sa.Addr = ip.As4()
	case ip.Is6():
		scope, ok := zoneToScope(ip.Zone())
		if !ok {
			return SocketAddr{}
		}
		sa := a.inet6()
		a.setFamily(afInet6, int32(unsafe.Sizeof(*sa)))
		putPort(&sa.Port, ap.Port())
		sa.Addr = ip.WithZone(``).As16()
		sa.Scope_id = scope
	}
	return a
}

// AddrFromIPPort is a convenience for AddrFromNetip, accepting a net.IP.
// Following the net package, the 16-byte form of an IPv4 address is IPv4.
// An invalid ip yields the null address.
func AddrFromIPPort(ip net.IP, port uint16) SocketAddr {
	if v4 := ip.To4(); v4 != nil {
		return AddrFromNetip(netip.AddrPortFrom(netip.AddrFrom4([4]byte(v4)), port))
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return SocketAddr{}
	}
	return AddrFromNetip(netip.AddrPortFrom(addr, port))
}

// UnixAddr builds a local address. Paths beginning with '@' are Linux
// abstract socket names.
func UnixAddr(path string) (SocketAddr, error) {
	if path == `` || len(path) > MaxPathLen {
		return SocketAddr{}, ErrPathTooLong
	}
	var a SocketAddr
	sa := a.unix()
	for i := 0; i < len(path); i++ {
		sa.Path[i] = int8(path[i])
	}
	size := int32(pathOffset) + int32(len(path)) + 1
	if path[0] == '@' {
		sa.Path[0] = 0
		size--
	}
	a.setFamily(afUnix, size)
	return a, nil
}

// ParseSocketAddr parses s as an IPv4 literal ("1.2.3.4" or "1.2.3.4:80"),
// then as an IPv6 literal ("::1", "[::1]", "[fe80::1%2]:80") and finally, if
// allowLocal is set, as a local address (anything containing '/' or starting
// with '@'). If nothing matches, the null address is returned.
func ParseSocketAddr(s string, allowLocal bool) SocketAddr {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		if ap.Addr().Is4() || ap.Addr().Is6() {
			return AddrFromNetip(ap)
		}
	}
	host := s
	if len(host) > 2 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return AddrFromNetip(netip.AddrPortFrom(ip, 0))
	}
	if allowLocal && (strings.ContainsRune(s, '/') || strings.HasPrefix(s, `@`)) {
		if a, err := UnixAddr(s); err == nil {
			return a
		}
	}
	return SocketAddr{}
}

// Family returns the address family, FamilyUnspec for the null address.
func (a SocketAddr) Family() Family {
	switch a.nativeFamily() {
	case afUnix:
		return FamilyUnix
	case afInet:
		return FamilyIPv4
	case afInet6:
		return FamilyIPv6
	default:
		return FamilyUnspec
	}
}

// IsNull reports whether a is the null address.
func (a SocketAddr) IsNull() bool {
	return a.Family() == FamilyUnspec
}

// Port returns the port of an IP address, 0 otherwise.
func (a SocketAddr) Port() uint16 {
	switch a.Family() {
	case FamilyIPv4:
		return getPort(&a.inet4().Port)
	case FamilyIPv6:
		return getPort(&a.inet6().Port)
	default:
		return 0
	}
}

// Addr returns the IP address, with the scope id as a numeric zone. The zero
// netip.Addr is returned for non-IP families.
func (a SocketAddr) Addr() netip.Addr {
	switch a.Family() {
	case FamilyIPv4:
		return netip.AddrFrom4(a.inet4().Addr)
	case FamilyIPv6:
		sa := a.inet6()
		ip := netip.AddrFrom16(sa.Addr)
		if sa.Scope_id != 0 {
			ip = ip.WithZone(strconv.FormatUint(uint64(sa.Scope_id), 10))
		}
		return ip
	default:
		return netip.Addr{}
	}
}

// AddrPort combines Addr and Port.
func (a SocketAddr) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.Addr(), a.Port())
}

// FlowInfo returns the IPv6 flow information, 0 otherwise.
func (a SocketAddr) FlowInfo() uint32 {
	if a.Family() != FamilyIPv6 {
		return 0
	}
	return getFlowInfo(&a.inet6().Flowinfo)
}

// WithFlowInfo returns a copy of an IPv6 address with the given flow
// information (traffic class and flow label). Other families are returned
// unchanged.
func (a SocketAddr) WithFlowInfo(flow uint32) SocketAddr {
	if a.Family() == FamilyIPv6 {
		putFlowInfo(&a.inet6().Flowinfo, flow)
	}
	return a
}

// ScopeID returns the IPv6 scope id, 0 otherwise.
func (a SocketAddr) ScopeID() uint32 {
	if a.Family() != FamilyIPv6 {
		return 0
	}
	return a.inet6().Scope_id
}

// Path returns the path of a local address, "" otherwise. Abstract names are
// reported with their leading '@'.
func (a SocketAddr) Path() string {
	if a.Family() != FamilyUnix {
		return ``
	}
	sa := a.unix()
	var b strings.Builder
	for i, c := range sa.Path {
		if c == 0 {
			if i == 0 && a.sizeOfUnix() > int32(pathOffset)+1 {
				b.WriteByte('@')
				continue
			}
			break
		}
		b.WriteByte(byte(c))
	}
	return b.String()
}

// SizeOf returns the number of bytes of the native structure that are
// meaningful for the address family, i.e. the length to hand to the OS.
func (a SocketAddr) SizeOf() int32 {
	switch a.Family() {
	case FamilyIPv4:
		return int32(unsafe.Sizeof(rawSockaddrInet4{}))
	case FamilyIPv6:
		return int32(unsafe.Sizeof(rawSockaddrInet6{}))
	case FamilyUnix:
		return a.sizeOfUnix()
	default:
		return 0
	}
}

// Pointer returns a pointer to the native structure, for use with raw
// syscalls, together with SizeOf.
func (a *SocketAddr) Pointer() unsafe.Pointer {
	return unsafe.Pointer(&a.raw)
}

// String formats IP addresses as host:port (IPv6 in brackets) and local
// addresses as their path. The null address formats as "".
func (a SocketAddr) String() string {
	switch a.Family() {
	case FamilyIPv4, FamilyIPv6:
		return a.AddrPort().String()
	case FamilyUnix:
		return a.Path()
	default:
		return ``
	}
}

// HostString is like String, but omits the port and brackets.
func (a SocketAddr) HostString() string {
	switch a.Family() {
	case FamilyIPv4, FamilyIPv6:
		return a.Addr().String()
	case FamilyUnix:
		return a.Path()
	default:
		return ``
	}
}

func (a *SocketAddr) inet4() *rawSockaddrInet4 {
	return (*rawSockaddrInet4)(unsafe.Pointer(&a.raw))
}

func (a *SocketAddr) inet6() *rawSockaddrInet6 {
	return (*rawSockaddrInet6)(unsafe.Pointer(&a.raw))
}

func (a *SocketAddr) unix() *rawSockaddrUnix {
	return (*rawSockaddrUnix)(unsafe.Pointer(&a.raw))
}

// sizeOfUnix derives the length from the stored path: regular paths are NUL
// terminated, abstract names are not and are terminated by the first NUL
// after the leading one.
func (a *SocketAddr) sizeOfUnix() int32 {
	sa := a.unix()
	off := int32(pathOffset)
	start := 0
	if sa.Path[0] == 0 {
		start = 1
	}
	n := start
	for n < len(sa.Path) && sa.Path[n] != 0 {
		n++
	}
	if start == 1 {
		return off + int32(n)
	}
	return off + int32(n) + 1
}

// Ports are stored in network byte order.
func putPort(p *uint16, port uint16) {
	b := (*[2]byte)(unsafe.Pointer(p))
	b[0] = byte(port >> 8)
	b[1] = byte(port)
}

func getPort(p *uint16) uint16 {
	b := (*[2]byte)(unsafe.Pointer(p))
	return uint16(b[0])<<8 | uint16(b[1])
}

// Flow info is stored in network byte order, like ports.
func putFlowInfo(p *uint32, flow uint32) {
	b := (*[4]byte)(unsafe.Pointer(p))
	b[0] = byte(flow >> 24)
	b[1] = byte(flow >> 16)
	b[2] = byte(flow >> 8)
	b[3] = byte(flow)
}

func getFlowInfo(p *uint32) uint32 {
	b := (*[4]byte)(unsafe.Pointer(p))
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func zoneToScope(zone string) (uint32, bool) {
	if zone == `` {
		return 0, true
	}
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), true
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, false
	}
	return uint32(ifi.Index), true
}
