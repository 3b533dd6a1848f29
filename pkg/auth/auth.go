// Package auth extracts authentication data from inbound requests and
// verifies command signatures against the raw request body.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/relaymesh/gateway/pkg/project"
)

// SignHeader carries the hex-encoded HMAC-SHA256 signature of the raw
// request body, keyed by the project secret.
const SignHeader = "X-API-Sign"

// ErrMissingSign is returned when a request carries no signature.
var ErrMissingSign = errors.New("missing signature")

// Info holds authentication data extracted from request metadata.
type Info struct {
	Sign string
}

// FromHeader extracts Info from HTTP headers. A missing or empty
// signature header is an authentication failure, reported before any
// project lookup happens.
func FromHeader(h http.Header) (*Info, error) {
	sign := h.Get(SignHeader)
	if sign == "" {
		return nil, ErrMissingSign
	}
	return &Info{Sign: sign}, nil
}

// Verifier checks a caller-supplied signature over the raw body bytes
// using the resolved project's key. Implementations may consult an
// external store, so verification takes a context. A (false, nil)
// return means the signature did not match; a non-nil error means the
// verifier itself failed.
type Verifier interface {
	Verify(ctx context.Context, p *project.Project, sign string, body []byte) (bool, error)
}

// HMACVerifier verifies hex-encoded HMAC-SHA256 signatures in constant
// time. Verification operates on the raw, still-encoded body so it is
// independent of any decoding step.
type HMACVerifier struct{}

// Verify reports whether sign matches the HMAC-SHA256 of body keyed by
// the project secret. Malformed signatures (bad hex) fail verification
// rather than erroring, since they are caller-controlled.
func (HMACVerifier) Verify(_ context.Context, p *project.Project, sign string, body []byte) (bool, error) {
	if p == nil || p.Secret == "" {
		return false, errors.New("auth: project secret is empty")
	}

	signBytes, err := hex.DecodeString(sign)
	if err != nil {
		return false, nil
	}

	mac := hmac.New(sha256.New, []byte(p.Secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, signBytes) == 1, nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body keyed by secret.
// Clients use it to sign API requests; tests use it to build valid
// requests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
