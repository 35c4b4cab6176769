// Package sipauth computes RFC 2617 MD5 digest credentials for the
// outbound REGISTER flow (spec.md §4.2), wrapping github.com/icholy/digest —
// the same library flowpbx-flowpbx uses server-side to challenge inbound
// REGISTERs (internal/sip/auth.go in that repo). Here it runs the other
// direction: answering a PBX's challenge to our own REGISTER.
package sipauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/icholy/digest"
)

// Credentials is the computed Authorization header content for a single
// REGISTER retry, ready to be rendered verbatim (spec.md §4.2 step 5).
type Credentials struct {
	Header string
	HasQOP bool
}

// Answer parses a WWW-Authenticate/Proxy-Authenticate challenge header
// value and computes the matching Authorization header for method
// REGISTER against registrarURI (e.g. "sip:10.0.0.1", host only, no port,
// per spec.md §8 scenario 1).
func Answer(challengeHeader, method, registrarURI, username, password string) (*Credentials, error) {
	chal, err := digest.ParseChallenge(challengeHeader)
	if err != nil {
		return nil, fmt.Errorf("parse digest challenge: %w", err)
	}

	opts := digest.Options{
		Method:   method,
		URI:      registrarURI,
		Username: username,
		Password: password,
	}

	hasQOP := chal.QOP != ""
	if hasQOP {
		opts.Count = 1
		opts.Cnonce = generateCnonce()
	}

	cred, err := digest.Digest(chal, opts)
	if err != nil {
		return nil, fmt.Errorf("compute digest response: %w", err)
	}

	return &Credentials{
		Header: cred.String(),
		HasQOP: hasQOP,
	}, nil
}

// generateCnonce produces a random client nonce for qop=auth exchanges.
func generateCnonce() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0"
	}
	return hex.EncodeToString(b)
}
