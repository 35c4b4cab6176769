package sipmsg

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// RandomBranch generates an RFC 3261-style magic-cookie branch parameter.
func RandomBranch() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "z9hG4bK0"
	}
	return "z9hG4bK" + hex.EncodeToString(b)
}

// RandomCallID generates a random hex Call-ID; callers use it as the whole
// Call-ID value, with no host part.
func RandomCallID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "0"
	}
	return hex.EncodeToString(b)
}

// RegisterParams carries everything needed to build an outbound REGISTER
// (spec.md §4.2).
type RegisterParams struct {
	Username      string
	ServerHost    string
	ServerPort    int
	LocalIP       string
	LocalPort     int
	CallID        string
	CSeq          uint32
	Authorization string // empty on the first, unauthenticated attempt
}

// BuildRegister constructs the REGISTER request for p (spec.md §4.2 steps
// 1 and 5: first send and authenticated resend, same Call-ID, CSeq 2).
func BuildRegister(p RegisterParams) *sip.Request {
	registrarURI := sip.Uri{Host: p.ServerHost, Port: p.ServerPort}
	req := sip.NewRequest(sip.REGISTER, registrarURI)

	via := &sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            p.LocalIP,
		Port:            p.LocalPort,
		Params:          sip.NewParams(),
	}
	via.Params.Add("branch", RandomBranch())
	req.AppendHeader(via)

	aorURI := sip.Uri{User: p.Username, Host: p.ServerHost, Port: p.ServerPort}

	fromHdr := &sip.FromHeader{Address: aorURI, Params: sip.NewParams()}
	fromHdr.Params.Add("tag", RandomTag())
	req.AppendHeader(fromHdr)

	req.AppendHeader(&sip.ToHeader{Address: aorURI})
	req.AppendHeader(&sip.CallIDHeader{Value: p.CallID})
	req.AppendHeader(&sip.CSeqHeader{SeqNo: p.CSeq, MethodName: sip.REGISTER})

	contactURI := sip.Uri{User: p.Username, Host: p.LocalIP, Port: p.LocalPort}
	req.AppendHeader(&sip.ContactHeader{Address: contactURI})

	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	req.AppendHeader(sip.NewHeader("User-Agent", UserAgent))
	req.AppendHeader(sip.NewHeader("Expires", "3600"))
	req.AppendHeader(sip.NewHeader("Content-Length", "0"))

	if p.Authorization != "" {
		req.AppendHeader(sip.NewHeader("Authorization", p.Authorization))
	}

	return req
}

// RegistrarURIString is the exact form spec.md §8 scenario 1 expects for
// digest's uri= field: "sip:<host>", no port, even though the server is
// addressed as host:port for transport.
func RegistrarURIString(host string) string {
	return fmt.Sprintf("sip:%s", host)
}
