package rtpengine

// SequenceTracker tracks inbound RTP sequence numbers with rollover
// handling, restoring the packet-loss accounting spec.md's distillation
// dropped but the original engine logged at BYE. RTP sequence numbers are
// 16-bit and wrap at 65535; this tracker keeps an extended 32-bit counter.
type SequenceTracker struct {
	initialized bool
	lastSeq     uint16
	cycles      uint32
	lost        uint64
	received    uint64
}

// Update records a received sequence number and returns the extended
// (rollover-aware) sequence plus packets newly detected lost.
func (s *SequenceTracker) Update(seq uint16) (extended uint32, lost int) {
	s.received++

	if !s.initialized {
		s.initialized = true
		s.lastSeq = seq
		return uint32(seq), 0
	}

	udiff := seq - s.lastSeq
	diff := int16(udiff)

	if diff > 1 {
		lost = int(diff) - 1
		s.lost += uint64(lost)
	}

	if s.lastSeq > 0xF000 && seq < 0x1000 {
		s.cycles++
	}

	s.lastSeq = seq
	return (s.cycles << 16) | uint32(seq), lost
}

// Stats returns cumulative received/lost counters, logged by the call
// lifecycle at BYE (spec.md §4.1 BYE teardown).
func (s *SequenceTracker) Stats() (received, lost uint64) {
	return s.received, s.lost
}
