package socket

import (
	"context"
	"errors"
	"iter"
	"net"
	"net/netip"
	"time"

	"github.com/joeycumines/go-reactor/syserr"
	"github.com/miekg/dns"
)

// AddrInfo iterates over the addresses produced by a resolver.
type AddrInfo struct {
	addrs []SocketAddr
	pos   int
}

// NewAddrInfo wraps addrs, which are not copied.
func NewAddrInfo(addrs ...SocketAddr) *AddrInfo {
	return &AddrInfo{addrs: addrs}
}

// Next returns the next address, or false once exhausted.
func (x *AddrInfo) Next() (SocketAddr, bool) {
	if x == nil || x.pos >= len(x.addrs) {
		return SocketAddr{}, false
	}
	a := x.addrs[x.pos]
	x.pos++
	return a, true
}

// Reset rewinds the iterator.
func (x *AddrInfo) Reset() {
	x.pos = 0
}

// Len returns the total number of addresses.
func (x *AddrInfo) Len() int {
	if x == nil {
		return 0
	}
	return len(x.addrs)
}

// All yields every address, independent of the iterator position.
func (x *AddrInfo) All() iter.Seq[SocketAddr] {
	return func(yield func(SocketAddr) bool) {
		if x == nil {
			return
		}
		for _, a := range x.addrs {
			if !yield(a) {
				return
			}
		}
	}
}

// Resolver resolves a host name to socket addresses, each with the given port.
// Failures are *syserr.Error with syserr.OriginResolver.
type Resolver interface {
	Resolve(ctx context.Context, host string, port uint16) (*AddrInfo, error)
}

var (
	_ Resolver = (*SystemResolver)(nil)
	_ Resolver = (*DNSResolver)(nil)
)

// Resolve resolves host using the system resolver. IP literals are returned
// as is, without a lookup.
func Resolve(ctx context.Context, host string, port uint16) (*AddrInfo, error) {
	return (&SystemResolver{}).Resolve(ctx, host, port)
}

// SystemResolver uses the platform's configured name resolution.
type SystemResolver struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
}

// Resolve implements Resolver.
func (x *SystemResolver) Resolve(ctx context.Context, host string, port uint16) (*AddrInfo, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return NewAddrInfo(AddrFromNetip(netip.AddrPortFrom(ip, port))), nil
	}
	r := x.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	ips, err := r.LookupNetIP(ctx, `ip`, host)
	if err != nil {
		return nil, resolverError(err)
	}
	return addrInfoFromIPs(ips, port)
}

// DNSResolver queries a specific nameserver directly, for A and AAAA
// records.
type DNSResolver struct {
	// Client defaults to a UDP client.
	Client *dns.Client
	// Server is the nameserver's host:port.
	Server string
	// Timeout bounds each exchange, defaulting to 5 seconds.
	Timeout time.Duration
}

// Resolve implements Resolver. IPv4 results are listed first.
func (x *DNSResolver) Resolve(ctx context.Context, host string, port uint16) (*AddrInfo, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return NewAddrInfo(AddrFromNetip(netip.AddrPortFrom(ip, port))), nil
	}
	client := x.Client
	if client == nil {
		timeout := x.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &dns.Client{Net: `udp`, Timeout: timeout}
	}
	var ips []netip.Addr
	for _, qtype := range [...]uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true
		resp, _, err := client.ExchangeContext(ctx, msg, x.Server)
		if err != nil {
			return nil, resolverError(err)
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, syserr.New(`resolve`, syserr.OriginResolver, syserr.ResolverNotFound, errors.New(dns.RcodeToString[resp.Rcode]))
		case dns.RcodeServerFailure, dns.RcodeRefused:
			return nil, syserr.New(`resolve`, syserr.OriginResolver, syserr.ResolverTemporary, errors.New(dns.RcodeToString[resp.Rcode]))
		default:
			return nil, syserr.New(`resolve`, syserr.OriginResolver, syserr.ResolverBadResponse, errors.New(dns.RcodeToString[resp.Rcode]))
		}
		for _, rr := range resp.Answer {
			switch rr := rr.(type) {
			case *dns.A:
				if ip, ok := netip.AddrFromSlice(rr.A.To4()); ok {
					ips = append(ips, ip)
				}
			case *dns.AAAA:
				if ip, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
					ips = append(ips, ip)
				}
			}
		}
	}
	return addrInfoFromIPs(ips, port)
}

func addrInfoFromIPs(ips []netip.Addr, port uint16) (*AddrInfo, error) {
	addrs := make([]SocketAddr, 0, len(ips))
	for _, ip := range ips {
		if a := AddrFromNetip(netip.AddrPortFrom(ip.Unmap(), port)); !a.IsNull() {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, syserr.New(`resolve`, syserr.OriginResolver, syserr.ResolverNotFound, errors.New(`no addresses`))
	}
	return NewAddrInfo(addrs...), nil
}

func resolverError(err error) error {
	code := syserr.ResolverBadResponse
	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		code = syserr.ResolverNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		code = syserr.ResolverTimeout
	case errors.As(err, &dnsErr) && dnsErr.IsTemporary:
		code = syserr.ResolverTemporary
	}
	return syserr.New(`resolve`, syserr.OriginResolver, code, err)
}
