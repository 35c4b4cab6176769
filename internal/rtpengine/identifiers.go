package rtpengine

import (
	"crypto/rand"
	"encoding/binary"
)

// GenerateSSRC produces a cryptographically random, non-zero 32-bit SSRC
// per RFC 3550 and spec.md §3's invariant ("SSRC (random, non-zero)").
func GenerateSSRC() uint32 {
	for {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0x12345678
		}
		if v := binary.BigEndian.Uint32(b[:]); v != 0 {
			return v
		}
	}
}

// GenerateSequenceStart produces a random initial RTP sequence number
// (RFC 3550: "the initial value of the sequence number SHOULD be random").
func GenerateSequenceStart() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(b[:])
}

// GenerateTimestampStart produces a random initial RTP timestamp.
func GenerateTimestampStart() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}
