//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package socket

// BSD derived systems carry the structure length in the first byte.
func (a *SocketAddr) setFamily(af int, size int32) {
	a.raw.Addr.Len = uint8(size)
	a.raw.Addr.Family = uint8(af)
}

func (a SocketAddr) nativeFamily() int {
	return int(a.raw.Addr.Family)
}
