// Package call aggregates all per-call resources into one owning value,
// per spec.md §9's redesign note: "aggregate per-call state into one
// owning value ... stored in one map under one lock; join handles are
// moved out before joining, never joined while the lock is held."
package call

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/whispertalk/sipbridge/internal/procsup"
	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/shmchannel"
)

// Status mirrors spec.md §3's call record lifecycle: ringing → active →
// ended.
type Status int

const (
	StatusRinging Status = iota
	StatusActive
	StatusEnded
)

// Call is the full in-memory record for one SIP dialog (spec.md §3 "Call
// record"), plus the live resources spec.md §9 says belong in one owning
// value: RTP endpoint, both SHM channels, the process supervisor, and the
// running flags/done channels for the receiver and streamer threads.
type Call struct {
	CallID    string
	LineID    int
	NumericID int
	Number    string
	StartTime time.Time
	RTPPort   int

	status atomic.Int32

	Endpoint   *rtpengine.Endpoint
	ShmIn      *shmchannel.Channel
	ShmOut     *shmchannel.Channel
	Supervisor *procsup.Supervisor
	Dedup      *rtpengine.TTSDedup
	SeqTracker *rtpengine.SequenceTracker

	// running is the shared atomic flag every per-call goroutine
	// (receiver, streamer) observes so teardown can signal all of them
	// without holding the calls-map lock (spec.md §9 "thread-lifetime
	// discipline").
	running atomic.Bool

	receiverDone     chan struct{}
	streamerDone     chan struct{}
	receiverDoneOnce sync.Once
	streamerDoneOnce sync.Once
}

// New creates a Call record in the ringing state with its goroutines not
// yet started; the caller starts them and records the done channels.
func New(callID string, lineID, numericID int, number string, rtpPort int, ep *rtpengine.Endpoint) *Call {
	c := &Call{
		CallID:       callID,
		LineID:       lineID,
		NumericID:    numericID,
		Number:       number,
		StartTime:    time.Now(),
		RTPPort:      rtpPort,
		Endpoint:     ep,
		Dedup:        &rtpengine.TTSDedup{},
		SeqTracker:   &rtpengine.SequenceTracker{},
		receiverDone: make(chan struct{}),
		streamerDone: make(chan struct{}),
	}
	c.status.Store(int32(StatusRinging))
	c.running.Store(true)
	return c
}

func (c *Call) Status() Status              { return Status(c.status.Load()) }
func (c *Call) SetStatus(s Status)          { c.status.Store(int32(s)) }
func (c *Call) Running() bool               { return c.running.Load() }
func (c *Call) ReceiverDone() chan struct{} { return c.receiverDone }
func (c *Call) StreamerDone() chan struct{} { return c.streamerDone }

// MarkReceiverDone and MarkStreamerDone are called by the goroutines
// started in internal/sip when RunReceiver/RunStreamer return, signaling
// Teardown's join.
func (c *Call) MarkReceiverDone() { c.receiverDoneOnce.Do(func() { close(c.receiverDone) }) }
func (c *Call) MarkStreamerDone() { c.streamerDoneOnce.Do(func() { close(c.streamerDone) }) }

// Stop flips the running flag that the receiver and streamer goroutines
// poll. It does not join them: joining happens in Teardown, outside any
// map lock (spec.md §5 locking discipline: "threads must be joined
// outside the lock").
func (c *Call) Stop() {
	c.running.Store(false)
}
