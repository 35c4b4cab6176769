package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTranscodeBijective verifies spec.md §8 invariant 3: μ-law↔A-law
// conversion is bijective on the byte space.
func TestTranscodeBijective(t *testing.T) {
	for x := 0; x < 256; x++ {
		b := byte(x)
		require.Equal(t, b, AlawToUlaw(UlawToAlaw(b)))
		require.Equal(t, b, UlawToAlaw(AlawToUlaw(b)))
	}
}

func TestSilenceFrame(t *testing.T) {
	frame := SilenceFrame()
	require.Len(t, frame, FrameSize)
	for _, b := range frame {
		require.Equal(t, byte(SilenceByte), b)
	}
}
