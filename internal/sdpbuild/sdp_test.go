package sdpbuild

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnswerContainsRequiredLines(t *testing.T) {
	data, err := Answer("192.0.2.10", 10001)
	require.NoError(t, err)
	sdpText := string(data)

	want := []string{
		"o=whisper 123456 654321 IN IP4 192.0.2.10",
		"s=Whisper Talk Session",
		"c=IN IP4 192.0.2.10",
		"m=audio 10001 RTP/AVP 0 8 101",
		"a=rtpmap:0 PCMU/8000",
		"a=rtpmap:8 PCMA/8000",
		"a=rtpmap:101 telephone-event/8000",
		"a=fmtp:101 0-15",
		"a=sendrecv",
	}
	for _, line := range want {
		require.Contains(t, sdpText, line)
	}
}
