package conn

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relaymesh/gateway/pkg/api"
	"github.com/relaymesh/gateway/pkg/project"
)

const connLogPrefix = "conn:connection"

// State is the connection lifecycle state.
type State int

// Connection states. Closed is terminal; message handling is an action
// within Open, not a state.
const (
	StateClosed State = iota
	StateOpen
)

// DefaultHeartbeatInterval is used when no interval is configured.
const DefaultHeartbeatInterval = 25 * time.Second

// Connection is the lifecycle state machine for one persistent client
// connection. Transport callbacks drive it: Open on connection
// establishment, Message per inbound payload, Close on termination.
type Connection struct {
	mu    sync.Mutex
	state State
	sess  Session
	agent *Agent

	pipeline  *api.Pipeline
	proj      *project.Project
	heartbeat time.Duration
	msgRate   rate.Limit
	msgBurst  int
}

// ConnectionParams holds dependencies for NewConnection.
type ConnectionParams struct {
	Pipeline *api.Pipeline
	Project  *project.Project
	// Heartbeat is the keepalive interval used when the transport has
	// no native keepalive. Zero means DefaultHeartbeatInterval.
	Heartbeat time.Duration
	// MessageRate/MessageBurst bound inbound messages per connection.
	// A zero rate disables limiting.
	MessageRate  rate.Limit
	MessageBurst int
}

// NewConnection creates a Connection in the closed state.
func NewConnection(params ConnectionParams) *Connection {
	hb := params.Heartbeat
	if hb <= 0 {
		hb = DefaultHeartbeatInterval
	}
	return &Connection{
		pipeline:  params.Pipeline,
		proj:      params.Project,
		heartbeat: hb,
		msgRate:   params.MessageRate,
		msgBurst:  params.MessageBurst,
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open transitions the connection to open, binding a fresh agent to the
// session. An invalid or absent session is not an error to report
// upward: the connection goes straight to closed, no agent is created
// and no heartbeat starts.
func (c *Connection) Open(sess Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		return
	}

	if sess == nil || !sess.Valid() {
		if sess != nil {
			sess.Close()
		}
		c.state = StateClosed
		return
	}

	var limiter *rate.Limiter
	if c.msgRate > 0 {
		limiter = rate.NewLimiter(c.msgRate, c.msgBurst)
	}

	c.sess = sess
	c.agent = NewAgent(AgentParams{
		Pipeline: c.pipeline,
		Project:  c.proj,
		Session:  sess,
		Limiter:  limiter,
	})
	if !sess.NativeKeepalive() {
		sess.StartKeepalive(c.heartbeat)
	}
	c.state = StateOpen

	slog.Debug(fmt.Sprintf("%s - session %s open, agent %s bound", connLogPrefix, sess.ID(), c.agent.ID()))
}

// Message forwards one raw inbound message to the bound agent. The
// transport delivers messages from a single read loop, and Message
// processes synchronously, so per-connection order is preserved. A
// message arriving while the connection is not open is dropped, never
// queued.
func (c *Connection) Message(raw []byte) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	agent := c.agent
	c.mu.Unlock()

	agent.Handle(raw)
}

// Close shuts down the bound agent, releases the session and moves the
// connection to its terminal state. After Close the connection is
// inert: late messages are dropped and a second Close is a no-op.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		c.state = StateClosed
		return
	}

	slog.Debug(fmt.Sprintf("%s - session %s closing, agent %s discarded", connLogPrefix, c.sess.ID(), c.agent.ID()))

	c.agent.Shutdown()
	c.agent = nil
	c.sess.StopKeepalive()
	c.sess.Close()
	c.sess = nil
	c.state = StateClosed
}
