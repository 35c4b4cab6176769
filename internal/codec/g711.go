// Package codec provides G.711 payload handling: the μ-law↔A-law direct
// lookup tables, payload-type constants, and the μ-law silence WAV loader.
package codec

import "github.com/zaf/g711"

// RTP payload type numbers per spec.md §3/§6/GLOSSARY.
const (
	PayloadTypePCMU uint8 = 0 // μ-law
	PayloadTypePCMA uint8 = 8 // A-law
)

// FrameSize is one 20ms frame of 8kHz mono G.711 audio (spec.md GLOSSARY "Frame").
const FrameSize = 160

// ulawToAlaw and alawToUlaw are built once at init time from zaf/g711's
// buffer-oriented transcode functions, giving O(1) direct-lookup conversion
// per byte instead of re-invoking the library per sample on the hot path.
var (
	ulawToAlaw [256]byte
	alawToUlaw [256]byte
)

func init() {
	var allBytes [256]byte
	for i := range allBytes {
		allBytes[i] = byte(i)
	}

	a := g711.Ulaw2Alaw(allBytes[:])
	copy(ulawToAlaw[:], a)

	u := g711.Alaw2Ulaw(allBytes[:])
	copy(alawToUlaw[:], u)
}

// UlawToAlaw transcodes a single μ-law byte to A-law via direct lookup.
func UlawToAlaw(b byte) byte {
	return ulawToAlaw[b]
}

// AlawToUlaw transcodes a single A-law byte to μ-law via direct lookup.
func AlawToUlaw(b byte) byte {
	return alawToUlaw[b]
}

// TranscodeUlawToAlaw transcodes a buffer of μ-law samples to A-law in place
// of a new slice, one direct lookup per byte.
func TranscodeUlawToAlaw(ulaw []byte) []byte {
	out := make([]byte, len(ulaw))
	for i, b := range ulaw {
		out[i] = ulawToAlaw[b]
	}
	return out
}

// TranscodeAlawToUlaw transcodes a buffer of A-law samples to μ-law, one
// direct lookup per byte.
func TranscodeAlawToUlaw(alaw []byte) []byte {
	out := make([]byte, len(alaw))
	for i, b := range alaw {
		out[i] = alawToUlaw[b]
	}
	return out
}

// SilenceByte is the μ-law encoding of zero amplitude (spec.md §4.5/§8).
const SilenceByte = 0xFF

// SilenceFrame returns a FrameSize buffer of μ-law silence.
func SilenceFrame() []byte {
	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = SilenceByte
	}
	return frame
}
