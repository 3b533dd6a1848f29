// Package api implements the inbound command pipeline: authentication,
// schema validation and dispatch of signed one-shot requests, plus the
// payload processing reused by persistent connections.
package api

import "encoding/json"

// Envelope is the decoded shape of an inbound command. UID is an
// optional opaque correlation identifier echoed back in the response;
// Method selects a command schema and processor route; Params is the
// method-specific payload.
type Envelope struct {
	UID    string          `json:"uid,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the single structured answer produced for a command.
// Exactly one of Body and Error is populated for a fully-processed
// command; both may be absent when rejection happened before UID and
// Method were known.
type Response struct {
	UID    string `json:"uid,omitempty"`
	Method string `json:"method,omitempty"`
	Body   any    `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
}
