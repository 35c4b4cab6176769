package rtpengine

import (
	"fmt"

	"github.com/whispertalk/sipbridge/internal/codec"
	"github.com/whispertalk/sipbridge/internal/rtpio"
)

// Send packetizes one μ-law chunk and writes it to ep's socket at its
// captured destination (spec.md §4.4). The chunk is transcoded to A-law
// first if the endpoint's mirrored payload type is PCMA. Sends before a
// destination is known are suppressed (spec.md §4.3).
func Send(ep *Endpoint, ulawChunk []byte) error {
	dest := ep.Destination()
	if dest == nil {
		return nil
	}

	pt := ep.PayloadType()
	payload := ulawChunk
	if pt == codec.PayloadTypePCMA {
		payload = codec.TranscodeUlawToAlaw(ulawChunk)
	}

	seq, timestamp, ssrc := ep.NextHeader()
	data, err := rtpio.Build(seq, timestamp, ssrc, pt, payload)
	if err != nil {
		return fmt.Errorf("build rtp packet: %w", err)
	}

	_, err = ep.conn.WriteToUDP(data, dest)
	return err
}

// SendChunked splits an arbitrary-length μ-law buffer into FrameSize
// (160-byte, 20ms) chunks and sends one packet per chunk (spec.md §4.4:
// "For each 160-byte chunk"), padding a short final chunk with μ-law
// silence. It sends directly, without going through the outbound SHM ring;
// nothing in this module calls it.
func SendChunked(ep *Endpoint, ulaw []byte) error {
	for off := 0; off < len(ulaw); off += codec.FrameSize {
		end := off + codec.FrameSize
		if end > len(ulaw) {
			end = len(ulaw)
		}
		chunk := ulaw[off:end]
		if len(chunk) < codec.FrameSize {
			padded := make([]byte, codec.FrameSize)
			copy(padded, chunk)
			for i := len(chunk); i < codec.FrameSize; i++ {
				padded[i] = codec.SilenceByte
			}
			chunk = padded
		}
		if err := Send(ep, chunk); err != nil {
			return err
		}
	}
	return nil
}
