// Package rtpio marshals and parses RTP packets (spec.md §4.3, §4.4, §8
// round-trip law), wrapping github.com/pion/rtp for header (de)serialization.
package rtpio

import "github.com/pion/rtp"

// HeaderSize is the fixed 12-byte RTP header with no CSRC list (spec.md
// §4.4: "V=2, P=0, X=0, CC=0").
const HeaderSize = 12

// Build constructs the wire bytes for one RTP packet using pion/rtp's
// Packet type, matching the header layout spec.md §4.4 lists byte-by-byte.
func Build(seq uint16, timestamp, ssrc uint32, pt uint8, payload []byte) ([]byte, error) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	return pkt.Marshal()
}

// InboundHeader is the subset of RTP header fields the receive path needs
// (spec.md §4.3 step 1): payload type, sequence, timestamp. The full
// packet (including CSRC/extension handling) is not needed on this path,
// so it is parsed directly rather than through a full rtp.Packet.Unmarshal,
// matching the byte offsets spec.md §4.3 specifies.
type InboundHeader struct {
	PayloadType uint8
	Sequence    uint16
	Timestamp   uint32
	Payload     []byte
}

// ParseInbound parses a datagram of at least HeaderSize bytes. Datagrams
// shorter than the header are a protocol parse failure (spec.md §7: "drop
// the datagram silently"), reported here as ok=false for the caller to
// drop on.
func ParseInbound(data []byte) (InboundHeader, bool) {
	if len(data) < HeaderSize {
		return InboundHeader{}, false
	}
	return InboundHeader{
		PayloadType: data[1] & 0x7F,
		Sequence:    uint16(data[2])<<8 | uint16(data[3]),
		Timestamp:   uint32(data[4])<<24 | uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7]),
		Payload:     data[HeaderSize:],
	}, true
}

// Parse fully decodes a packet via pion/rtp, used where the full header
// (including version/marker bits) is wanted, e.g. tests asserting the
// round-trip law (spec.md §8).
func Parse(data []byte) (*rtp.Packet, error) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(data); err != nil {
		return nil, err
	}
	return pkt, nil
}
