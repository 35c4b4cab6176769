// Package sip implements the hand-rolled single-socket SIP transaction
// handler (spec.md §4.1): REGISTER/INVITE/ACK/BYE/NOTIFY dispatch, 200 OK
// and SDP construction, and the REGISTER-response rendezvous the
// registration loop waits on. It uses github.com/emiago/sipgo's sip
// subpackage purely as a message model (internal/sipmsg), not its
// Server/UA/transaction layer — spec.md §4.1's 1s-timeout listener loop
// and single-slot rendezvous don't fit that shape.
package sip

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenReusePort binds a UDP socket with SO_REUSEPORT set, so the main
// SIP listener and every per-line registration socket can share the same
// local port (spec.md §4.2 step 1: "a fresh socket bound to the same
// port as the listener (SO_REUSEPORT required)").
func listenReusePort(ip string, port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	addr := fmt.Sprintf("%s:%d", ip, port)
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return pc.(*net.UDPConn), nil
}
