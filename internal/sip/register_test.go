package sip

import (
	"net"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/require"

	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/sipmsg"
	"github.com/whispertalk/sipbridge/internal/store"
)

// fakeRegistrar plays the upstream PBX side of spec.md §4.2: challenge the
// first REGISTER with a 401, accept the second once it carries a matching
// Authorization header.
func fakeRegistrar(t *testing.T, conn *net.UDPConn, challenge string) {
	t.Helper()
	buf := make([]byte, 8192)
	n, from, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	req, err := sipmsg.Parse(buf[:n])
	require.NoError(t, err)
	firstReq := req.(*sip.Request)
	require.Nil(t, firstReq.GetHeader("Authorization"))

	res := sip.NewResponseFromRequest(firstReq, sip.StatusCode(401), "Unauthorized", nil)
	res.AppendHeader(sip.NewHeader("WWW-Authenticate", challenge))
	res.AppendHeader(sip.NewHeader("Content-Length", "0"))
	_, err = conn.WriteToUDP([]byte(res.String()), from)
	require.NoError(t, err)

	n, from, err = conn.ReadFromUDP(buf)
	require.NoError(t, err)
	secondReq, err := sipmsg.Parse(buf[:n])
	require.NoError(t, err)
	req2 := secondReq.(*sip.Request)
	require.NotNil(t, req2.GetHeader("Authorization"))

	ok := sip.NewResponseFromRequest(req2, sip.StatusOK, "OK", nil)
	ok.AppendHeader(sip.NewHeader("Content-Length", "0"))
	_, err = conn.WriteToUDP([]byte(ok.String()), from)
	require.NoError(t, err)
}

func TestRegisterChallengeThenAcceptNoQOP(t *testing.T) {
	registrarConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer registrarConn.Close()
	registrarPort := registrarConn.LocalAddr().(*net.UDPAddr).Port

	h, err := New("127.0.0.1", nil, nil, nil, nil, nil, func() bool { return true })
	require.NoError(t, err)
	defer h.Close()
	go h.Run() // the listener delivers REGISTER responses to Register

	challenge := `Digest realm="whispertalk", nonce="abc123", algorithm=MD5`
	done := make(chan struct{})
	go func() { fakeRegistrar(t, registrarConn, challenge); close(done) }()

	line := store.Line{Username: "1001", Password: "secret", ServerHost: "127.0.0.1", ServerPort: registrarPort}
	result, err := h.Register(line)
	require.NoError(t, err)
	require.True(t, result.Registered)
	require.Equal(t, "connected", result.Status)

	<-done
}

func TestRegisterRejectedWithoutChallengeHeader(t *testing.T) {
	registrarConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer registrarConn.Close()
	registrarPort := registrarConn.LocalAddr().(*net.UDPAddr).Port

	h, err := New("127.0.0.1", nil, nil, nil, nil, nil, func() bool { return true })
	require.NoError(t, err)
	defer h.Close()
	go h.Run()

	go func() {
		buf := make([]byte, 8192)
		n, from, rerr := registrarConn.ReadFromUDP(buf)
		if rerr != nil {
			return
		}
		req, perr := sipmsg.Parse(buf[:n])
		if perr != nil {
			return
		}
		res := sip.NewResponseFromRequest(req.(*sip.Request), sip.StatusCode(401), "Unauthorized", nil)
		res.AppendHeader(sip.NewHeader("Content-Length", "0"))
		registrarConn.WriteToUDP([]byte(res.String()), from)
	}()

	line := store.Line{Username: "1001", Password: "secret", ServerHost: "127.0.0.1", ServerPort: registrarPort}
	result, err := h.Register(line)
	require.Error(t, err)
	require.False(t, result.Registered)
}

func TestRegisterRejectedOnNon401Response(t *testing.T) {
	registrarConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer registrarConn.Close()
	registrarPort := registrarConn.LocalAddr().(*net.UDPAddr).Port

	h, err := New("127.0.0.1", nil, nil, nil, nil, nil, func() bool { return true })
	require.NoError(t, err)
	defer h.Close()
	go h.Run()

	go func() {
		buf := make([]byte, 8192)
		n, from, rerr := registrarConn.ReadFromUDP(buf)
		if rerr != nil {
			return
		}
		req, perr := sipmsg.Parse(buf[:n])
		if perr != nil {
			return
		}
		res := sip.NewResponseFromRequest(req.(*sip.Request), sip.StatusCode(403), "Forbidden", nil)
		res.AppendHeader(sip.NewHeader("Content-Length", "0"))
		registrarConn.WriteToUDP([]byte(res.String()), from)
	}()

	line := store.Line{Username: "1001", Password: "secret", ServerHost: "127.0.0.1", ServerPort: registrarPort}
	result, err := h.Register(line)
	require.NoError(t, err)
	require.False(t, result.Registered)
	require.Equal(t, "rejected", result.Status)
}

func TestRegisterTimesOutWhenRegistrarUnreachable(t *testing.T) {
	h, err := New("127.0.0.1", nil, nil, nil, nil, nil, func() bool { return true })
	require.NoError(t, err)
	defer h.Close()

	// An address nothing listens on within the private test range.
	line := store.Line{Username: "1001", Password: "secret", ServerHost: "127.0.0.1", ServerPort: 1}
	_, err = h.Register(line)
	require.Error(t, err)
}

func TestSendKeepaliveOnUnknownLineIsNoop(t *testing.T) {
	h, err := New("127.0.0.1", nil, nil, rtpengine.NewRegistry(), nil, nil, func() bool { return true })
	require.NoError(t, err)
	defer h.Close()

	require.NotPanics(t, func() { h.SendKeepalive(999) })
}
