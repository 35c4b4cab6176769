package call

import (
	"context"
	"sync"
)

// Manager owns the active-calls map: one lock, as spec.md §5's resource
// table requires ("Active calls map | SIP handler mutates; many readers |
// One lock").
type Manager struct {
	mu    sync.Mutex
	calls map[string]*Call
}

func NewManager() *Manager {
	return &Manager{calls: make(map[string]*Call)}
}

// Add registers a new call. Returns false if a call with this Call-ID
// already exists (spec.md §8 invariant 4: "at most one call record with
// that Call-ID exists in the active map until the corresponding BYE").
func (m *Manager) Add(c *Call) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.calls[c.CallID]; exists {
		return false
	}
	m.calls[c.CallID] = c
	return true
}

// Get returns the call for a Call-ID, if active.
func (m *Manager) Get(callID string) (*Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	return c, ok
}

// Remove deletes the call from the map under the lock, then returns it
// (or nil) so the caller can join its goroutines and release its
// resources entirely outside the lock (spec.md §5/§9).
func (m *Manager) Remove(callID string) *Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[callID]
	if !ok {
		return nil
	}
	delete(m.calls, callID)
	return c
}

// Teardown stops a call's goroutines and releases its resources, in
// reverse creation order (spec.md §4.1 BYE: "tear down: stop process
// monitor, terminate processors, stop outbound streamer, release SHM
// channels, clear RTP destination"). Must be called with the call already
// removed from the Manager's map.
func Teardown(ctx context.Context, c *Call) {
	c.Stop()

	if c.Supervisor != nil {
		c.Supervisor.Stop(ctx)
	}

	<-c.StreamerDone()
	<-c.ReceiverDone()

	if c.Endpoint != nil {
		c.Endpoint.EndCall()
	}

	if c.ShmIn != nil {
		c.ShmIn.Close()
	}
	if c.ShmOut != nil {
		c.ShmOut.Close()
	}
}
