package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relaymesh/gateway/pkg/auth"
)

const commsLogPrefix = "api:comms"

// CommandRequest is the JSON envelope for signed commands arriving over
// NATS request/reply. Data holds the raw, still-encoded command body;
// the signature is verified over those exact bytes.
type CommandRequest struct {
	Project string          `json:"project"`
	Sign    string          `json:"sign"`
	Data    json.RawMessage `json:"data"`
}

// CommandFault is the reply for transport-tier rejections over NATS,
// carrying the same stable codes the HTTP surface maps to statuses.
type CommandFault struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// CommandMsgHandler returns a NATS message handler running the full
// command pipeline per inbound request, in the subscription loop style
// of request/reply services.
func CommandMsgHandler(ctx context.Context, pipeline *Pipeline, timeout time.Duration) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req CommandRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode command request: %v", commsLogPrefix, err))
			respond(msg, CommandFault{Code: string(FaultMalformed), Error: "malformed request"})
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, fault := pipeline.Execute(reqCtx, req.Project, &auth.Info{Sign: req.Sign}, req.Data)
		if fault != nil {
			respond(msg, CommandFault{Code: string(fault.Code), Error: fault.Message})
			return
		}
		respond(msg, resp)
	}
}

func respond(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode reply: %v", commsLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to send reply: %v", commsLogPrefix, err))
	}
}
