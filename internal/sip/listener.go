package sip

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/whispertalk/sipbridge/internal/call"
	"github.com/whispertalk/sipbridge/internal/codec"
	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/sipmsg"
	"github.com/whispertalk/sipbridge/internal/store"
)

// recvTimeout lets the listener loop observe a cleared running flag
// without blocking forever (spec.md §4.1: "1-second receive timeout").
const recvTimeout = 1 * time.Second

// LineLookup resolves the line owning an inbound request, e.g. by the
// Request-URI's user part matching a registered username. Implemented by
// internal/linemgr.
type LineLookup interface {
	LineByUsername(username string) (store.Line, bool)
}

// Handler is the SIP transaction handler: one UDP socket serving both the
// listener loop and every outbound SIP send (spec.md §4.1).
type Handler struct {
	conn    *net.UDPConn
	localIP string

	calls   *call.Manager
	store   store.Store
	rtp     *rtpengine.Registry
	lines   LineLookup
	rendez  *rendezvous
	running func() bool

	// silence is the preloaded outbound silence track (spec.md §4.5 step
	// 2, §6); nil falls back to 0xFF fill.
	silence *codec.SilenceSource
}

// New binds the shared SIP socket on an OS-assigned port (spec.md §4.1)
// and constructs the handler. silence may be nil.
func New(localIP string, calls *call.Manager, st store.Store, rtp *rtpengine.Registry, lines LineLookup, silence *codec.SilenceSource, running func() bool) (*Handler, error) {
	conn, err := listenReusePort(localIP, 0)
	if err != nil {
		return nil, err
	}

	return &Handler{
		conn:    conn,
		localIP: localIP,
		calls:   calls,
		store:   st,
		rtp:     rtp,
		lines:   lines,
		rendez:  newRendezvous(),
		silence: silence,
		running: running,
	}, nil
}

// LocalPort returns the OS-assigned SIP port, used to build Contact
// headers and outbound REGISTER sockets.
func (h *Handler) LocalPort() int {
	return h.conn.LocalAddr().(*net.UDPAddr).Port
}

// Run is the listener loop (spec.md §4.1): reads datagrams with a 1s
// timeout and dispatches on the first token of the message.
func (h *Handler) Run() {
	buf := make([]byte, 65536)

	for h.running() {
		if err := h.conn.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
			slog.Error("[sip] set read deadline", "error", err)
			return
		}

		n, from, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("[sip] recv error", "error", err)
			continue
		}

		msg, err := sipmsg.Parse(buf[:n])
		if err != nil {
			continue // protocol parse failure: drop silently (spec.md §7)
		}

		h.dispatch(msg, from)
	}
}

// Close shuts down the shared SIP socket, unblocking Run (spec.md §5:
// "Shutdown closes the SIP socket to unblock the listener").
func (h *Handler) Close() error {
	return h.conn.Close()
}

func (h *Handler) dispatch(msg sip.Message, from *net.UDPAddr) {
	switch m := msg.(type) {
	case *sip.Request:
		switch m.Method {
		case sip.INVITE:
			h.handleInvite(m, from)
		case sip.ACK:
			h.handleAck(m)
		case sip.BYE:
			h.handleBye(m, from)
		case sip.NOTIFY:
			h.handleNotify(m, from)
		default:
			slog.Debug("[sip] unhandled request method", "method", m.Method)
		}
	case *sip.Response:
		if sipmsg.CSeqMethod(m) == "REGISTER" {
			h.rendez.deliver(sipmsg.CallIDValue(m), m)
		} else {
			slog.Debug("[sip] dropping non-REGISTER response", "status", m.StatusCode)
		}
	}
}

func (h *Handler) send(data []byte, to *net.UDPAddr) {
	if _, err := h.conn.WriteToUDP(data, to); err != nil {
		slog.Warn("[sip] send error", "error", err)
	}
}
