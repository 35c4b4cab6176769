// Package sdpbuild constructs the SDP answer sent in the 200 OK to INVITE
// (spec.md §6), using github.com/pion/sdp/v3 to assemble and marshal the
// session description instead of hand-formatting the text.
package sdpbuild

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// sessionID/sessionVersion match spec.md §6's literal template
// ("o=whisper 123456 654321 IN IP4 <local-ip>").
const (
	sessionID      = 123456
	sessionVersion = 654321
)

// Answer builds the SDP answer offered in 200 OK to INVITE: PCMU/PCMA/
// telephone-event on rtpPort, sendrecv, fmtp 0-15 for DTMF (spec.md §6).
func Answer(localIP string, rtpPort int) ([]byte, error) {
	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "whisper",
			SessionID:      sessionID,
			SessionVersion: sessionVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: localIP,
		},
		SessionName: "Whisper Talk Session",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: localIP},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: rtpPort},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"0", "8", "101"},
				},
				Attributes: []sdp.Attribute{
					{Key: "rtpmap", Value: "0 PCMU/8000"},
					{Key: "rtpmap", Value: "8 PCMA/8000"},
					{Key: "rtpmap", Value: "101 telephone-event/8000"},
					{Key: "fmtp", Value: "101 0-15"},
					{Key: "sendrecv"},
				},
			},
		},
	}

	data, err := desc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal sdp answer: %w", err)
	}
	return data, nil
}
