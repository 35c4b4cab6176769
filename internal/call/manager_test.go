package call

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAddRejectsDuplicateCallID matches spec.md §8 invariant 4.
func TestAddRejectsDuplicateCallID(t *testing.T) {
	m := NewManager()
	a := New("call-1", 1, 1, "+15550000", 10001, nil)
	b := New("call-1", 1, 2, "+15550000", 10001, nil)

	require.True(t, m.Add(a), "first Add should succeed")
	require.False(t, m.Add(b), "second Add with the same Call-ID should fail")
}

func TestRemoveThenAddAllowsReuse(t *testing.T) {
	m := NewManager()
	a := New("call-1", 1, 1, "+15550000", 10001, nil)
	m.Add(a)

	require.Same(t, a, m.Remove("call-1"))
	_, ok := m.Get("call-1")
	require.False(t, ok, "call should no longer be present after Remove")

	b := New("call-1", 1, 2, "+15550000", 10001, nil)
	require.True(t, m.Add(b), "Add should succeed again after Remove")
}

func TestMarkDoneIsIdempotent(t *testing.T) {
	c := New("call-1", 1, 1, "+15550000", 10001, nil)
	c.MarkReceiverDone()
	c.MarkReceiverDone() // must not panic on double-close

	select {
	case <-c.ReceiverDone():
	default:
		t.Fatalf("receiver done channel should be closed")
	}
}
