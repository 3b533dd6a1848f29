package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/relaymesh/gateway/pkg/api"
	"github.com/relaymesh/gateway/pkg/project"
)

const agentLogPrefix = "conn:agent"

// Agent is the per-connection processing context. It is created when a
// connection opens with a valid session, owned exclusively by that
// connection, and destroyed on close. Inbound messages run stages 6-10
// of the command pipeline against the agent's bound project.
type Agent struct {
	id       string
	proj     *project.Project
	pipeline *api.Pipeline
	sess     Session
	limiter  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
}

// AgentParams holds dependencies for NewAgent.
type AgentParams struct {
	Pipeline *api.Pipeline
	Project  *project.Project
	Session  Session
	// Limiter bounds inbound message rate; nil disables limiting.
	Limiter *rate.Limiter
}

// NewAgent creates an Agent bound to the given session and project.
func NewAgent(params AgentParams) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		id:       uuid.New().String(),
		proj:     params.Project,
		pipeline: params.Pipeline,
		sess:     params.Session,
		limiter:  params.Limiter,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string {
	return a.id
}

// Handle decodes and dispatches one inbound message, then sends the
// response over the session. Messages arriving after shutdown, rate
// limited messages and undecodable payloads are dropped. Handle is
// called from the connection's single delivery path, so per-connection
// ordering is inherited from the caller.
func (a *Agent) Handle(raw []byte) {
	if a.ctx.Err() != nil {
		return
	}
	if a.limiter != nil && !a.limiter.Allow() {
		slog.Warn(fmt.Sprintf("%s - rate limit exceeded on session %s, message dropped", agentLogPrefix, a.sess.ID()))
		return
	}

	resp, fault := a.pipeline.ProcessPayload(a.ctx, a.proj, raw)
	if fault != nil {
		slog.Debug(fmt.Sprintf("%s - dropping message on session %s: %s", agentLogPrefix, a.sess.ID(), fault.Message))
		return
	}

	// Close may have begun while dispatch was in flight; a shut-down
	// agent delivers no further work.
	if a.ctx.Err() != nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - response encode failed on session %s: %v", agentLogPrefix, a.sess.ID(), err))
		return
	}
	if err := a.sess.Send(data); err != nil {
		slog.Debug(fmt.Sprintf("%s - send failed on session %s: %v", agentLogPrefix, a.sess.ID(), err))
	}
}

// Shutdown releases everything the agent holds and cancels in-flight
// work. Safe to call more than once.
func (a *Agent) Shutdown() {
	a.cancel()
}
