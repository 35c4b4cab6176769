package linemgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whispertalk/sipbridge/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	lines   []store.Line
	statusW map[int][]string
}

func (f *fakeStore) GetAllSIPLines() ([]store.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Line, len(f.lines))
	copy(out, f.lines)
	return out, nil
}

func (f *fakeStore) UpdateSIPLineStatus(lineID int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusW == nil {
		f.statusW = make(map[int][]string)
	}
	f.statusW[lineID] = append(f.statusW[lineID], status)
	return nil
}

func (f *fakeStore) GetOrCreateCaller(number string) (int, error) { return 0, nil }
func (f *fakeStore) CreateCall(callID string, callerID, lineID int, number string) (int, error) {
	return 0, nil
}
func (f *fakeStore) GetCall(callID string) (int, bool, error)      { return 0, false, nil }
func (f *fakeStore) EndCall(callID string, endedAt time.Time) error { return nil }

type fakeRegistrar struct {
	result RegisterResult
	err    error
	calls  int
}

func (f *fakeRegistrar) Register(line store.Line) (RegisterResult, error) {
	f.calls++
	return f.result, f.err
}

func TestRegisterOneDisabledLinePublishesDisabled(t *testing.T) {
	st := &fakeStore{lines: []store.Line{{ID: 1, Enabled: false}}}
	reg := &fakeRegistrar{}
	m := New(st, reg, nil, nil)

	require.NoError(t, m.reload())
	m.registerAll()

	require.Equal(t, 0, reg.calls, "disabled line should never call Register")
	require.Equal(t, []string{"disabled"}, st.statusW[1])
}

func TestStatusWriteDeduplication(t *testing.T) {
	st := &fakeStore{lines: []store.Line{{ID: 1, Enabled: true}}}
	reg := &fakeRegistrar{result: RegisterResult{Registered: true, Status: "connected"}}
	m := New(st, reg, nil, nil)

	m.reload()
	m.registerOne(store.Line{ID: 1, Enabled: true})
	m.registerOne(store.Line{ID: 1, Enabled: true})
	// Republishing the unchanged status must not write again.
	m.publishStatus(1, "connected")

	require.Len(t, st.statusW[1], 1, "spec.md invariant 6: exactly one status write")
}

func TestSingleLineIDFiltersLoad(t *testing.T) {
	st := &fakeStore{lines: []store.Line{{ID: 1, Enabled: true}, {ID: 2, Enabled: true}}}
	reg := &fakeRegistrar{result: RegisterResult{Registered: true, Status: "connected"}}
	only := 2
	m := New(st, reg, nil, &only)

	require.NoError(t, m.reload())
	lines := m.snapshotLines()
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].ID)
}
