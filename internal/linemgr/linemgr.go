// Package linemgr loads SIP lines from the external store, drives their
// registration lifecycle, and publishes status changes (spec.md §4.2,
// §4.8).
package linemgr

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whispertalk/sipbridge/internal/store"
)

const (
	reloadInterval     = 5 * time.Minute
	refreshAge         = 30 * time.Minute
	keepaliveInterval  = 20 * time.Second
	registrationTicker = 10 * time.Second
)

// RegisterResult is what a Registrar reports back for one attempt.
type RegisterResult struct {
	Registered bool
	Status     string
}

// Registrar performs the actual REGISTER exchange for a line (spec.md
// §4.2), including digest authentication retry. Implemented by
// internal/sip, which owns the UDP socket and response rendezvous; kept
// as an interface here so linemgr does not depend on the SIP transport.
type Registrar interface {
	Register(line store.Line) (RegisterResult, error)
}

// KeepaliveSender emits a keepalive RTP packet for every currently bound
// line (spec.md §4.8), a no-op for lines with no captured destination.
type KeepaliveSender interface {
	SendKeepalive(lineID int)
}

// lineState is the in-memory lifecycle record for one line (spec.md §3
// "Line state").
type lineState struct {
	mu           sync.Mutex
	registered   bool
	lastRegister time.Time
	lastStatus   string
}

// Manager owns line load, registration, refresh, and keepalive.
type Manager struct {
	store     store.Store
	registrar Registrar
	keepalive KeepaliveSender

	// singleLineID, if non-nil, restricts operation to one line id
	// (spec.md §6 CLI: "--line-id <int>"); nil means all enabled lines.
	singleLineID *int

	mu    sync.Mutex
	lines map[int]store.Line
	state map[int]*lineState
}

func New(st store.Store, registrar Registrar, keepalive KeepaliveSender, singleLineID *int) *Manager {
	return &Manager{
		store:        st,
		registrar:    registrar,
		keepalive:    keepalive,
		singleLineID: singleLineID,
		lines:        make(map[int]store.Line),
		state:        make(map[int]*lineState),
	}
}

// SetRegistrar and SetKeepalive let cmd/sipbridge break the construction
// cycle between linemgr.Manager (needs a Registrar/KeepaliveSender) and
// internal/sip.Handler (needs a LineLookup): the manager is constructed
// first with nil, the SIP handler is built against it, then wired back in.
func (m *Manager) SetRegistrar(r Registrar)        { m.registrar = r }
func (m *Manager) SetKeepalive(k KeepaliveSender)  { m.keepalive = k }

// Run drives the manager's three periodic activities until running
// reports false: line reload (5 min), registration sweep (checks each
// line every 10s, re-registering if unregistered or stale), and keepalive
// (20s).
func (m *Manager) Run(running func() bool) error {
	if err := m.reload(); err != nil {
		return fmt.Errorf("initial line load: %w", err)
	}

	reload := time.NewTicker(reloadInterval)
	defer reload.Stop()
	registerTick := time.NewTicker(registrationTicker)
	defer registerTick.Stop()
	keepaliveTick := time.NewTicker(keepaliveInterval)
	defer keepaliveTick.Stop()
	wake := time.NewTicker(200 * time.Millisecond)
	defer wake.Stop()

	m.registerAll()

	for running() {
		select {
		case <-reload.C:
			if err := m.reload(); err != nil {
				slog.Error("[linemgr] reload failed", "error", err)
			}
		case <-registerTick.C:
			m.registerAll()
		case <-keepaliveTick.C:
			m.sendKeepalives()
		case <-wake.C:
			// Bounds how long a single Run iteration waits before
			// re-checking running(), without busy-spinning.
		}
	}
	return nil
}

func (m *Manager) reload() error {
	all, err := m.store.GetAllSIPLines()
	if err != nil {
		return fmt.Errorf("get all sip lines: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = make(map[int]store.Line, len(all))
	for _, line := range all {
		if m.singleLineID != nil && line.ID != *m.singleLineID {
			continue
		}
		m.lines[line.ID] = line
		if _, ok := m.state[line.ID]; !ok {
			m.state[line.ID] = &lineState{}
		}
	}
	return nil
}

func (m *Manager) snapshotLines() []store.Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Line, 0, len(m.lines))
	for _, l := range m.lines {
		out = append(out, l)
	}
	return out
}

func (m *Manager) lineStateFor(lineID int) *lineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[lineID]
	if !ok {
		st = &lineState{}
		m.state[lineID] = st
	}
	return st
}

func (m *Manager) registerAll() {
	for _, line := range m.snapshotLines() {
		m.registerOne(line)
	}
}

func (m *Manager) registerOne(line store.Line) {
	st := m.lineStateFor(line.ID)

	if !line.Enabled {
		st.mu.Lock()
		st.registered = false
		st.mu.Unlock()
		m.publishStatus(line.ID, "disabled")
		return
	}

	st.mu.Lock()
	needsRefresh := !st.registered || time.Since(st.lastRegister) >= refreshAge
	st.mu.Unlock()
	if !needsRefresh {
		return
	}

	result, err := m.registrar.Register(line)
	if err != nil {
		slog.Warn("[linemgr] registration failed", "line", line.ID, "error", err)
		st.mu.Lock()
		st.registered = false
		st.mu.Unlock()
		m.publishStatus(line.ID, "error")
		return
	}

	st.mu.Lock()
	st.registered = result.Registered
	if result.Registered {
		st.lastRegister = time.Now()
	}
	st.mu.Unlock()

	m.publishStatus(line.ID, result.Status)
}

// publishStatus writes the new status only if it differs from the last
// published value for this line (spec.md §8 invariant 6).
func (m *Manager) publishStatus(lineID int, status string) {
	st := m.lineStateFor(lineID)

	st.mu.Lock()
	if st.lastStatus == status {
		st.mu.Unlock()
		return
	}
	st.lastStatus = status
	st.mu.Unlock()

	if err := m.store.UpdateSIPLineStatus(lineID, status); err != nil {
		slog.Error("[linemgr] status write failed", "line", lineID, "error", err)
	}
}

// LineByUsername finds a loaded line by its SIP username, used by the SIP
// handler to resolve which line an inbound INVITE's Request-URI belongs to
// (spec.md §4.1 implements internal/sip.LineLookup).
func (m *Manager) LineByUsername(username string) (store.Line, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.Username == username {
			return l, true
		}
	}
	return store.Line{}, false
}

func (m *Manager) sendKeepalives() {
	if m.keepalive == nil {
		return
	}
	for _, line := range m.snapshotLines() {
		m.keepalive.SendKeepalive(line.ID)
	}
}
