package sipmsg

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/emiago/sipgo/sip"
)

// UserAgent is the User-Agent header value this engine advertises.
const UserAgent = "whisper-talk-sipbridge/1.0"

// AllowedMethods is the method list spec.md §4.1 requires on 200 OK to
// INVITE.
const AllowedMethods = "INVITE, ACK, CANCEL, BYE, NOTIFY, REFER, MESSAGE, OPTIONS, INFO, SUBSCRIBE"

// RandomTag generates the "tag-<rand>" To-header tag spec.md §4.1 names.
func RandomTag() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "tag-0"
	}
	return "tag-" + hex.EncodeToString(b)
}

// OKToInvite builds the 200 OK response to an INVITE: a To-tag, a Contact
// built from username/localIP/sipPort, Allow, Supported, User-Agent, and
// the given SDP body (spec.md §4.1).
func OKToInvite(req *sip.Request, username, localIP string, sipPort int, sdpBody []byte) (*sip.Response, error) {
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", sdpBody)

	if to := res.To(); to != nil && to.Params != nil {
		to.Params.Add("tag", RandomTag())
	}

	contactURI := sip.Uri{
		User: username,
		Host: localIP,
		Port: sipPort,
	}
	res.AppendHeader(&sip.ContactHeader{Address: contactURI})
	res.AppendHeader(sip.NewHeader("Allow", AllowedMethods))
	res.AppendHeader(sip.NewHeader("Supported", "replaces, timer"))
	res.AppendHeader(sip.NewHeader("User-Agent", UserAgent))
	res.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))

	return res, nil
}

// Ringing builds the 180 Ringing response sent before the 200 OK (spec.md
// §4.1: "Send 180 Ringing, wait 500ms, send 200 OK").
func Ringing(req *sip.Request) *sip.Response {
	res := sip.NewResponseFromRequest(req, sip.StatusRinging, "Ringing", nil)
	res.AppendHeader(sip.NewHeader("Content-Length", "0"))
	return res
}

// PlainOK builds a bodyless 200 OK with Content-Length: 0, used for BYE
// and NOTIFY (spec.md §4.1: "Non-200 responses have Content-Length: 0" —
// and these 200s carry no body either).
func PlainOK(req *sip.Request) *sip.Response {
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
	res.AppendHeader(sip.NewHeader("Content-Length", "0"))
	return res
}

// CSeqMethod returns the method token from a request/response's CSeq
// header, or "" if absent.
func CSeqMethod(msg sip.Message) string {
	switch m := msg.(type) {
	case *sip.Request:
		if c := m.CSeq(); c != nil {
			return c.MethodName
		}
	case *sip.Response:
		if c := m.CSeq(); c != nil {
			return c.MethodName
		}
	}
	return ""
}

// CallIDValue returns the Call-ID header value, or "" if absent.
func CallIDValue(msg sip.Message) string {
	switch m := msg.(type) {
	case *sip.Request:
		if c := m.CallID(); c != nil {
			return c.Value()
		}
	case *sip.Response:
		if c := m.CallID(); c != nil {
			return c.Value()
		}
	}
	return ""
}
