//go:build linux

package socket

func (a *SocketAddr) setFamily(af int, _ int32) {
	a.raw.Addr.Family = uint16(af)
}

func (a SocketAddr) nativeFamily() int {
	return int(a.raw.Addr.Family)
}
