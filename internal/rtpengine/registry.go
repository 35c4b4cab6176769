// Package rtpengine implements the symmetric RTP socket registry,
// packetizer, and outbound streamer (spec.md §3 "RTP endpoint state",
// §4.3, §4.4, §4.5).
package rtpengine

import (
	"fmt"
	"net"
	"sync"

	"github.com/whispertalk/sipbridge/internal/codec"
)

// Endpoint is the per-line RTP socket plus the mutable state the receiver
// and the outbound streamer share; one lock per Endpoint guards its
// sequence/timestamp/SSRC/destination/PT. The line→Endpoint map is guarded
// separately, by the Registry's own lock.
//
// spec.md §3 describes this state as keyed by Call-ID with a "default"
// sentinel for sessionless fallback; §9 flags that sentinel as a
// redesign smell. Since a line id uniquely determines its RTP port and a
// line carries at most one active call, keying by line id instead removes
// the sentinel entirely: there is always exactly one Endpoint per line,
// whether or not a call currently owns it.
type Endpoint struct {
	mu sync.Mutex

	lineID int
	conn   *net.UDPConn

	callID     string
	callActive bool

	seq       uint16
	timestamp uint32
	ssrc      uint32
	pt        uint8
	dest      *net.UDPAddr
}

// Registry owns every Endpoint, one per line, created lazily on first use
// and kept open for the process lifetime (so keepalive, spec.md §4.8, has
// a socket to address even between calls).
type Registry struct {
	mu        sync.Mutex
	endpoints map[int]*Endpoint
}

func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[int]*Endpoint)}
}

// basePort is the RTP port offset spec.md §3 fixes: "10000 + line_id".
const basePort = 10000

// Acquire returns the Endpoint for lineID, binding its UDP socket on first
// use. Call creation (INVITE) calls this to get a receive-ready socket;
// repeat calls on the same line reuse it.
func (r *Registry) Acquire(lineID int) (*Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ep, ok := r.endpoints[lineID]; ok {
		return ep, nil
	}

	addr := &net.UDPAddr{IP: net.IPv4zero, Port: basePort + lineID}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("bind rtp socket for line %d: %w", lineID, err)
	}

	ep := &Endpoint{lineID: lineID, conn: conn}
	r.endpoints[lineID] = ep
	return ep, nil
}

// Get returns the Endpoint for lineID if one has already been acquired,
// used by the keepalive pass (spec.md §4.8) which must not bind a socket
// just to find nothing to send to.
func (r *Registry) Get(lineID int) (*Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[lineID]
	return ep, ok
}

// All returns every currently bound endpoint. The keepalive pass looks
// endpoints up one line at a time with Get instead.
func (r *Registry) All() []*Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	return out
}

// StartCall (re)initializes an Endpoint's per-call state for a new
// Call-ID: fresh random sequence/timestamp/SSRC, destination cleared until
// the first inbound packet arrives (spec.md §3 invariants).
func (ep *Endpoint) StartCall(callID string) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.callID = callID
	ep.callActive = true
	ep.seq = GenerateSequenceStart()
	ep.timestamp = GenerateTimestampStart()
	ep.ssrc = GenerateSSRC()
	ep.pt = codec.PayloadTypePCMU
	ep.dest = nil
}

// EndCall clears the destination (spec.md §4.1 BYE: "clear RTP
// destination") so a subsequent keepalive on this line becomes a no-op
// until the next call captures a fresh destination.
func (ep *Endpoint) EndCall() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.callActive = false
	ep.dest = nil
}

// CallID reports the Call-ID currently owning this endpoint, if any.
func (ep *Endpoint) CallID() (string, bool) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.callID, ep.callActive
}

// ObserveInbound records the sender address as the symmetric-RTP
// destination on the first inbound packet, and mirrors its payload type
// if it's one of the two G.711 types (spec.md §4.3 step 2).
func (ep *Endpoint) ObserveInbound(from *net.UDPAddr, pt uint8) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.dest == nil {
		ep.dest = from
	}
	if pt == codec.PayloadTypePCMU || pt == codec.PayloadTypePCMA {
		ep.pt = pt
	}
}

// Destination returns the captured symmetric-RTP peer address, or nil if
// no inbound packet has arrived yet (outbound sends are suppressed until
// then, spec.md §4.3).
func (ep *Endpoint) Destination() *net.UDPAddr {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.dest
}

// PayloadType returns the currently mirrored outbound payload type.
func (ep *Endpoint) PayloadType() uint8 {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.pt
}

// NextHeader advances and returns the (seq, timestamp, ssrc) triple for
// the next packet to emit (spec.md §3: seq +1, timestamp +160 per packet).
func (ep *Endpoint) NextHeader() (seq uint16, timestamp, ssrc uint32) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	seq, timestamp, ssrc = ep.seq, ep.timestamp, ep.ssrc
	ep.seq++
	ep.timestamp += uint32(codec.FrameSize)
	return
}

// Conn returns the underlying UDP socket, used directly by both the
// receiver loop and the outbound sender (spec.md §4.3: "the same socket
// that received inbound media").
func (ep *Endpoint) Conn() *net.UDPConn {
	return ep.conn
}

// Close releases the endpoint's UDP socket.
func (ep *Endpoint) Close() error {
	return ep.conn.Close()
}
