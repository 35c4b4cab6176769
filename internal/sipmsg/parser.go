// Package sipmsg provides the SIP message representation for the engine:
// github.com/emiago/sipgo's sip subpackage as a pure message-model and
// parser library (sip.Request/sip.Response, header types, sip.NewParser),
// deliberately not its Server/UA/transaction/dialog layer. spec.md §4.1
// requires a hand-rolled single-socket listener with its own dispatch and
// a single-slot REGISTER rendezvous — a shape sipgo's transaction layer
// does not expose, so this package only borrows the wire-format model.
package sipmsg

import (
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// Parse decodes one UDP datagram into either a *sip.Request or a
// *sip.Response. The caller type-switches on the result to dispatch
// (spec.md §4.1: "dispatches on the first token of the message").
func Parse(data []byte) (sip.Message, error) {
	parser := sip.NewParser()
	msg, err := parser.ParseSIP(data)
	if err != nil {
		return nil, fmt.Errorf("parse sip message: %w", err)
	}
	return msg, nil
}
