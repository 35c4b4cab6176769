package sip

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whispertalk/sipbridge/internal/call"
	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/store"
)

type fakeLines struct{}

func (fakeLines) LineByUsername(string) (store.Line, bool) { return store.Line{}, false }

func TestRunReturnsAfterClose(t *testing.T) {
	var running atomic.Bool
	running.Store(true)

	h, err := New("127.0.0.1", call.NewManager(), nil, rtpengine.NewRegistry(), fakeLines{}, nil, running.Load)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { h.Run(); close(done) }()

	require.NoError(t, h.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Close")
	}
}

func TestRunReturnsWhenRunningFlagClears(t *testing.T) {
	var running atomic.Bool
	running.Store(true)

	h, err := New("127.0.0.1", call.NewManager(), nil, rtpengine.NewRegistry(), fakeLines{}, nil, running.Load)
	require.NoError(t, err)
	defer h.Close()

	done := make(chan struct{})
	go func() { h.Run(); close(done) }()

	running.Store(false)

	select {
	case <-done:
	case <-time.After(recvTimeout + 2*time.Second):
		t.Fatalf("Run did not return after running flag cleared")
	}
}
