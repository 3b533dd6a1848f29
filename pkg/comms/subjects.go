package comms

import (
	"fmt"
	"strings"
)

// Default NATS subjects.
const (
	// SubjectCommand is where the gateway listens for signed command
	// envelopes (request/reply).
	SubjectCommand = "gateway.api.command"
)

// BuildCommandSubject builds the subject on which a validated command
// is handed off to the messaging engine.
func BuildCommandSubject(projectID, method string) string {
	safe := strings.ReplaceAll(projectID, ".", "_")
	return fmt.Sprintf("gateway.cmd.%s.%s", safe, method)
}
