package procsup

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBackoffCapsAndDoubles checks the backoff that run() doubles after
// each failed spawn: five doublings from 250ms reach the 5s cap, and
// further doublings stay there.
func TestBackoffCapsAndDoubles(t *testing.T) {
	b := minBackoff
	for i := 0; i < 10; i++ {
		b = nextBackoff(b)
		require.LessOrEqual(t, b, maxBackoff)
	}
	require.Equal(t, maxBackoff, b)
}

func TestTerminateAndReapKillsRunningProcess(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}

	cmd := exec.Command(path, "30")
	require.NoError(t, cmd.Start())

	done := make(chan struct{})
	go func() {
		terminateAndReap(cmd.Process)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("terminateAndReap did not return in time")
	}
}

func TestExecutableNamePerKind(t *testing.T) {
	require.Equal(t, "inbound-audio-processor", Inbound.executableName())
	require.Equal(t, "outbound-audio-processor", Outbound.executableName())
}
