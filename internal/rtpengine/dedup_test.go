package rtpengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDedupDropsRepeat matches spec.md §8 scenario 6: the same 320-byte
// payload submitted twice within the window is only emitted once.
func TestDedupDropsRepeat(t *testing.T) {
	d := &TTSDedup{}
	payload := make([]byte, 320)
	for i := range payload {
		payload[i] = byte(i)
	}

	require.True(t, d.Allow(payload), "first emission should be allowed")
	require.False(t, d.Allow(payload), "duplicate emission within window should be dropped")
}

func TestDedupAllowsDifferentPayload(t *testing.T) {
	d := &TTSDedup{}
	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6}

	require.True(t, d.Allow(a), "first emission should be allowed")
	require.True(t, d.Allow(b), "distinct payload should be allowed")
}
