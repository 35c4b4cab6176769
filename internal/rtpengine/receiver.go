package rtpengine

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/whispertalk/sipbridge/internal/codec"
	"github.com/whispertalk/sipbridge/internal/rtpio"
	"github.com/whispertalk/sipbridge/internal/shmchannel"
)

// recvTimeout lets the receive loop observe a cleared running flag without
// blocking forever on recvfrom (spec.md §5: "a 1 s socket timeout").
const recvTimeout = 1 * time.Second

// InboundSink accepts a decoded μ-law frame for the currently active call.
// Implemented by *shmchannel.Channel in production; an interface keeps the
// receive loop testable without a real SHM region.
type InboundSink interface {
	WriteFrame(data []byte)
}

// RunReceiver is the per-call RTP receive thread (spec.md §4.3). It reads
// datagrams until running reports false, writing decoded μ-law frames to
// sink and feeding each inbound sequence number to seq (if non-nil) for
// packet-loss accounting logged at BYE. Datagrams under 12 bytes or a read
// timeout are not fatal: the former is a silent drop (spec.md §7 "protocol
// parse failures"), the latter is the mechanism that lets running be
// re-checked.
func RunReceiver(ep *Endpoint, sink InboundSink, seq *SequenceTracker, running func() bool) {
	buf := make([]byte, 1500)

	for running() {
		if err := ep.conn.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
			slog.Error("[rtpengine] set read deadline", "error", err)
			return
		}

		n, from, err := ep.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("[rtpengine] recv error", "error", err)
			continue
		}

		hdr, ok := rtpio.ParseInbound(buf[:n])
		if !ok {
			continue // protocol parse failure: drop silently (spec.md §7)
		}

		ep.ObserveInbound(from, hdr.PayloadType)
		if seq != nil {
			seq.Update(hdr.Sequence)
		}

		payload := hdr.Payload
		if hdr.PayloadType == codec.PayloadTypePCMA {
			payload = codec.TranscodeAlawToUlaw(payload)
		}

		if sink == nil {
			continue
		}
		sink.WriteFrame(payload)
	}
}

// OpenInboundChannel attaches (creating if needed) the named inbound SHM
// channel for a call (spec.md §4.6 naming: "/ap_in_<num_id>").
func OpenInboundChannel(numericID int) (*shmchannel.Channel, error) {
	name := shmchannel.InName(numericID)
	return shmchannel.OpenOrCreate(name, shmchannel.RoleProducer, shmchannel.DefaultCapacity, shmchannel.DefaultFrameSize)
}
