package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/relaymesh/gateway/pkg/comms"
	"github.com/relaymesh/gateway/pkg/project"
)

const commsLogPrefix = "engine:comms_processor"

// CommsProcessor forwards validated commands onto per-project NATS
// subjects. Channel and presence semantics stay with whatever consumes
// those subjects; the gateway only validates and hands off.
type CommsProcessor struct {
	nc *nats.Conn
}

// NewCommsProcessor creates a CommsProcessor on the given connection.
func NewCommsProcessor(nc *nats.Conn) *CommsProcessor {
	return &CommsProcessor{nc: nc}
}

// engineCommand is the payload published to the engine subject.
type engineCommand struct {
	Project string          `json:"project"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Process publishes the command to gateway.cmd.<project>.<method> and
// acks. Publish errors surface as domain errors on the response.
func (c *CommsProcessor) Process(ctx context.Context, p *project.Project, method string, params json.RawMessage) (any, error) {
	data, err := json.Marshal(engineCommand{Project: p.ID, Method: method, Params: params})
	if err != nil {
		return nil, errors.New("internal error")
	}

	subject := comms.BuildCommandSubject(p.ID, method)
	if err := c.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - publish to %s failed: %v", commsLogPrefix, subject, err))
		return nil, errors.New("engine unavailable")
	}

	slog.Debug(fmt.Sprintf("%s - forwarded %s command for project %s", commsLogPrefix, method, p.ID))
	return Ack{Status: true}, nil
}
