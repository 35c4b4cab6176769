package sip

import (
	"fmt"
	"net"

	"github.com/emiago/sipgo/sip"

	"github.com/whispertalk/sipbridge/internal/codec"
	"github.com/whispertalk/sipbridge/internal/linemgr"
	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/sipauth"
	"github.com/whispertalk/sipbridge/internal/sipmsg"
	"github.com/whispertalk/sipbridge/internal/store"
)

// Register implements linemgr.Registrar: send an unauthenticated
// REGISTER, and if challenged, answer the digest challenge and resend
// with the same Call-ID and CSeq 2 (spec.md §4.2 steps 1-5).
func (h *Handler) Register(line store.Line) (linemgr.RegisterResult, error) {
	callID := sipmsg.RandomCallID()

	res, err := h.sendRegister(line, sipmsg.RegisterParams{
		Username:   line.Username,
		ServerHost: line.ServerHost,
		ServerPort: line.ServerPort,
		LocalIP:    h.localIP,
		LocalPort:  h.LocalPort(),
		CallID:     callID,
		CSeq:       1,
	})
	if err != nil {
		return linemgr.RegisterResult{}, err
	}

	switch res.StatusCode {
	case sip.StatusOK:
		return linemgr.RegisterResult{Registered: true, Status: "connected"}, nil
	case sip.StatusCode(401), sip.StatusCode(407):
		challenge := challengeHeaderValue(res)
		if challenge == "" {
			return linemgr.RegisterResult{Registered: false, Status: "error"}, fmt.Errorf("challenge response missing auth header")
		}

		registrarURI := sipmsg.RegistrarURIString(line.ServerHost)
		cred, err := sipauth.Answer(challenge, "REGISTER", registrarURI, line.Username, line.Password)
		if err != nil {
			return linemgr.RegisterResult{Registered: false, Status: "error"}, fmt.Errorf("answer challenge: %w", err)
		}

		res2, err := h.sendRegister(line, sipmsg.RegisterParams{
			Username:      line.Username,
			ServerHost:    line.ServerHost,
			ServerPort:    line.ServerPort,
			LocalIP:       h.localIP,
			LocalPort:     h.LocalPort(),
			CallID:        callID,
			CSeq:          2,
			Authorization: cred.Header,
		})
		if err != nil {
			return linemgr.RegisterResult{}, err
		}

		if res2.StatusCode == sip.StatusOK {
			return linemgr.RegisterResult{Registered: true, Status: "connected"}, nil
		}
		return linemgr.RegisterResult{Registered: false, Status: "rejected"}, nil
	default:
		return linemgr.RegisterResult{Registered: false, Status: "rejected"}, nil
	}
}

// sendRegister opens the REGISTER-response rendezvous before sending, so
// the listener can never deliver the response before we're waiting for
// it, then sends over a fresh SO_REUSEPORT socket bound to the same port
// as the listener (spec.md §4.2 step 1). The send socket is closed before
// waiting, so the response arriving on the shared port reaches the
// listener rather than an unread socket in the same reuse-port group.
func (h *Handler) sendRegister(line store.Line, p sipmsg.RegisterParams) (*sip.Response, error) {
	ch := h.rendez.register(p.CallID)

	conn, err := listenReusePort(h.localIP, h.LocalPort())
	if err != nil {
		h.rendez.unregister(p.CallID)
		return nil, fmt.Errorf("open register socket: %w", err)
	}

	req := sipmsg.BuildRegister(p)

	dest, err := registrarAddr(p.ServerHost, p.ServerPort)
	if err != nil {
		conn.Close()
		h.rendez.unregister(p.CallID)
		return nil, fmt.Errorf("resolve registrar: %w", err)
	}

	_, err = conn.WriteToUDP([]byte(req.String()), dest)
	conn.Close()
	if err != nil {
		h.rendez.unregister(p.CallID)
		return nil, fmt.Errorf("send register: %w", err)
	}

	return h.rendez.wait(p.CallID, ch)
}

// registrarAddr resolves the transport address for the REGISTER
// destination. Digest's uri= field uses sipmsg.RegistrarURIString instead,
// which omits the port (spec.md §8 scenario 1).
func registrarAddr(host string, port int) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, port))
}

// challengeHeaderValue extracts the WWW-Authenticate or Proxy-Authenticate
// header value from a REGISTER challenge response.
func challengeHeaderValue(res *sip.Response) string {
	if hdr := res.GetHeader("WWW-Authenticate"); hdr != nil {
		return hdr.Value()
	}
	if hdr := res.GetHeader("Proxy-Authenticate"); hdr != nil {
		return hdr.Value()
	}
	return ""
}

// silenceKeepaliveFrame is the payload sent for every keepalive tick
// (spec.md §4.8: "one silence RTP packet").
func silenceKeepaliveFrame() []byte {
	return codec.SilenceFrame()
}

// SendKeepalive implements linemgr.KeepaliveSender: one silence frame on
// the line's RTP socket, a no-op if no destination has been captured yet
// (spec.md §4.8).
func (h *Handler) SendKeepalive(lineID int) {
	ep, ok := h.rtp.Get(lineID)
	if !ok {
		return
	}
	_ = rtpengine.Send(ep, silenceKeepaliveFrame())
}
