package rtpengine

import (
	"log/slog"
	"time"

	"github.com/whispertalk/sipbridge/internal/codec"
)

// tickInterval is the outbound cadence spec.md §4.5 requires: exactly one
// RTP packet per call per 20ms window.
const tickInterval = 20 * time.Millisecond

// OutboundSource is the outbound SHM ring, or anything that can produce
// the next μ-law frame to stream; an interface so tests can supply a fake
// ring without standing up real shared memory.
type OutboundSource interface {
	ReadFrame() ([]byte, bool)
}

// RunStreamer is the per-call outbound streamer thread (spec.md §4.5). It
// paces emission with an absolute deadline so jitter in any one tick does
// not accumulate drift, draining one frame from source per tick and
// falling back to preloaded silence (or 0xFF fill) when the ring is empty
// or dedup suppresses the frame. Runs until running reports false.
func RunStreamer(ep *Endpoint, source OutboundSource, silence *codec.SilenceSource, dedup *TTSDedup, running func() bool) {
	deadline := time.Now().Add(tickInterval)

	for running() {
		sleepUntil(deadline)
		deadline = deadline.Add(tickInterval)

		frame, ok := source.ReadFrame()
		if ok && len(frame) > 0 && dedup != nil && !dedup.Allow(frame) {
			ok = false
		}
		if !ok || len(frame) == 0 {
			frame = nextSilence(silence)
		}

		if err := Send(ep, frame); err != nil {
			slog.Warn("[rtpengine] outbound send error", "error", err)
		}
	}
}

func nextSilence(silence *codec.SilenceSource) []byte {
	if silence != nil {
		return silence.Next()
	}
	return codec.SilenceFrame()
}

// sleepUntil blocks until t, returning immediately if t has already
// passed (a late tick is not compounded by the one after it).
func sleepUntil(t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
