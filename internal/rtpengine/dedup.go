package rtpengine

import (
	"hash/fnv"
	"sync"
	"time"
)

// dedupWindow is the interval within which an identical TTS payload is
// suppressed (spec.md §3 "TTS dedup state", §4.5, §8 scenario 6).
const dedupWindow = 10 * time.Second

// TTSDedup suppresses repeated emission of the same TTS burst within the
// dedup window, guarded by its own mutex (spec.md §5 locking table:
// "TTS dedup state | Whoever emits TTS | Dedicated mutex").
type TTSDedup struct {
	mu       sync.Mutex
	lastHash uint64
	lastSize int
	lastAt   time.Time
	seeded   bool
}

// Allow reports whether payload should be emitted: false if it matches the
// most recent emission (same FNV-1a-64 hash and size) within the window.
func (d *TTSDedup) Allow(payload []byte) bool {
	h := fnv.New64a()
	h.Write(payload)
	hash := h.Sum64()
	size := len(payload)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seeded && hash == d.lastHash && size == d.lastSize && now.Sub(d.lastAt) < dedupWindow {
		return false
	}

	d.lastHash = hash
	d.lastSize = size
	d.lastAt = now
	d.seeded = true
	return true
}
