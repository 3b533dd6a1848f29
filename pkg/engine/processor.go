// Package engine defines the command processor entry point. The
// processor executes a validated method+params pair for a project and
// is the sole extension point for adding new gateway capabilities.
package engine

import (
	"context"
	"encoding/json"

	"github.com/relaymesh/gateway/pkg/project"
)

// Processor executes a validated command. On success it returns the
// result payload placed in the response body; a returned error is a
// domain error whose message is surfaced to the caller. Processing may
// involve network or storage access, hence the context.
type Processor interface {
	Process(ctx context.Context, p *project.Project, method string, params json.RawMessage) (any, error)
}

// Ack is the result body returned by processors that only hand a
// command off rather than computing anything.
type Ack struct {
	Status bool `json:"status"`
}

// NoOpProcessor accepts every command and acks it without side effects
// (for in-process usage without an engine).
type NoOpProcessor struct{}

// Process returns a positive ack.
func (NoOpProcessor) Process(_ context.Context, _ *project.Project, _ string, _ json.RawMessage) (any, error) {
	return Ack{Status: true}, nil
}

// CallbackProcessor calls a callback function (for testing).
type CallbackProcessor struct {
	callback func(ctx context.Context, p *project.Project, method string, params json.RawMessage) (any, error)
}

// NewCallbackProcessor creates a new CallbackProcessor.
func NewCallbackProcessor(cb func(ctx context.Context, p *project.Project, method string, params json.RawMessage) (any, error)) *CallbackProcessor {
	return &CallbackProcessor{callback: cb}
}

// Process calls the callback.
func (p *CallbackProcessor) Process(ctx context.Context, proj *project.Project, method string, params json.RawMessage) (any, error) {
	return p.callback(ctx, proj, method, params)
}
