package rtpengine

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whispertalk/sipbridge/internal/codec"
	"github.com/whispertalk/sipbridge/internal/rtpio"
)

type emptySource struct{}

func (emptySource) ReadFrame() ([]byte, bool) { return nil, false }

// fixedSource always returns the same frame, simulating a TTS burst
// re-submitted into the outbound SHM ring faster than it drains.
type fixedSource struct{ frame []byte }

func (f fixedSource) ReadFrame() ([]byte, bool) { return f.frame, true }

// TestStreamerSilenceKeepalive matches spec.md §8 scenario 4: with no
// frames available for ~1s and no silence WAV configured, the streamer
// emits contiguous, 160-byte 0xFF packets at the 20ms cadence.
func TestStreamerSilenceKeepalive(t *testing.T) {
	local, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peer.Close()

	ep := &Endpoint{conn: local}
	ep.StartCall("call-1")
	ep.ObserveInbound(peer.LocalAddr().(*net.UDPAddr), codec.PayloadTypePCMU)
	defer ep.Close()

	stop := time.Now().Add(1100 * time.Millisecond)
	running := func() bool { return time.Now().Before(stop) }

	go RunStreamer(ep, emptySource{}, nil, nil, running)

	var lastSeq uint16
	var lastTS uint32
	seeded := false
	count := 0

	deadline := time.Now().Add(1300 * time.Millisecond)
	buf := make([]byte, 1500)
	for time.Now().Before(deadline) {
		peer.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := peer.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		pkt, err := rtpio.Parse(buf[:n])
		require.NoError(t, err)

		for _, b := range pkt.Payload {
			require.EqualValues(t, codec.SilenceByte, b)
		}
		require.Len(t, pkt.Payload, codec.FrameSize)

		if seeded {
			require.Equal(t, lastSeq+1, pkt.SequenceNumber, "seq not contiguous")
			require.Equal(t, lastTS+uint32(codec.FrameSize), pkt.Timestamp, "timestamp step wrong")
		}
		lastSeq = pkt.SequenceNumber
		lastTS = pkt.Timestamp
		seeded = true
		count++
	}

	require.GreaterOrEqual(t, count, 45)
	require.LessOrEqual(t, count, 55)
}

// TestStreamerDedupSuppressesRepeatedFrame matches spec.md §8 scenario 6:
// the same payload re-read from the ring within the dedup window is
// replaced with silence rather than sent twice.
func TestStreamerDedupSuppressesRepeatedFrame(t *testing.T) {
	local, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peer.Close()

	ep := &Endpoint{conn: local}
	ep.StartCall("call-1")
	ep.ObserveInbound(peer.LocalAddr().(*net.UDPAddr), codec.PayloadTypePCMU)
	defer ep.Close()

	payload := make([]byte, codec.FrameSize)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	stop := time.Now().Add(100 * time.Millisecond)
	running := func() bool { return time.Now().Before(stop) }

	go RunStreamer(ep, fixedSource{frame: payload}, nil, &TTSDedup{}, running)

	buf := make([]byte, 1500)
	peer.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	n, _, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)
	first, err := rtpio.Parse(buf[:n])
	require.NoError(t, err)
	require.Equal(t, payload, first.Payload)

	peer.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	n, _, err = peer.ReadFromUDP(buf)
	require.NoError(t, err)
	second, err := rtpio.Parse(buf[:n])
	require.NoError(t, err)
	for _, b := range second.Payload {
		require.EqualValues(t, codec.SilenceByte, b, "deduped frame must fall back to silence, not repeat the payload")
	}
}
