// Package socket provides thin, non-blocking friendly wrappers over the
// operating system's socket API.
//
// A [Socket] owns exactly one OS handle. A [SocketAddr] is a fixed-size value
// whose storage is the native socket address structure, so it can be passed
// to the OS without conversion. An [AddrInfo] iterates over resolved
// addresses.
//
// Transfers never block when the socket is in non-blocking mode: a transfer
// that cannot make progress returns iox.ErrWouldBlock, which callers are
// expected to treat as a signal to wait for readiness (typically via the
// reactor package) rather than as a failure. Platform failures are reported as
// *syserr.Error.
//
// # Platform Support
//
// Linux, macOS, the BSDs and Windows. On Windows, the WinSock library is
// started on first use and stays initialized until the process exits.
package socket
