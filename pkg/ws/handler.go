package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/relaymesh/gateway/pkg/api"
	"github.com/relaymesh/gateway/pkg/conn"
	"github.com/relaymesh/gateway/pkg/project"
)

const logPrefix = "ws:handler"

// CheckOriginFn validates the origin of a websocket upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// AllOrigins returns a CheckOriginFn that accepts every origin.
func AllOrigins() CheckOriginFn {
	return func(_ *http.Request) bool { return true }
}

// Handler upgrades HTTP requests to websocket sessions and runs the
// connection lifecycle for each. Mount it under a prefix such as
// /connection/; the path segment after the prefix is the project
// identifier.
type Handler struct {
	upgrader  websocket.Upgrader
	pipeline  *api.Pipeline
	projects  project.Registry
	prefix    string
	heartbeat time.Duration
	msgRate   rate.Limit
	msgBurst  int
}

// HandlerParams holds dependencies for NewHandler.
type HandlerParams struct {
	Pipeline     *api.Pipeline
	Projects     project.Registry
	Prefix       string
	Heartbeat    time.Duration
	MessageRate  rate.Limit
	MessageBurst int
	CheckOrigin  CheckOriginFn
}

// NewHandler creates a websocket Handler.
func NewHandler(params HandlerParams) *Handler {
	checkOrigin := params.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = AllOrigins()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		pipeline:  params.Pipeline,
		projects:  params.Projects,
		prefix:    params.Prefix,
		heartbeat: params.Heartbeat,
		msgRate:   params.MessageRate,
		msgBurst:  params.MessageBurst,
	}
}

// ServeHTTP resolves the project, upgrades the request and drives the
// connection state machine from the read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimPrefix(r.URL.Path, h.prefix)
	if projectID == "" || strings.Contains(projectID, "/") {
		http.NotFound(w, r)
		return
	}

	proj, err := h.projects.GetProjectByID(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error(fmt.Sprintf("%s - project lookup for %q failed: %v", logPrefix, projectID, err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Debug(fmt.Sprintf("%s - upgrade failed: %v", logPrefix, err))
		return
	}

	sess := newSession(wsConn)
	c := conn.NewConnection(conn.ConnectionParams{
		Pipeline:     h.pipeline,
		Project:      proj,
		Heartbeat:    h.heartbeat,
		MessageRate:  h.msgRate,
		MessageBurst: h.msgBurst,
	})

	c.Open(sess)
	if c.State() != conn.StateOpen {
		// Invalid session: silently closed, nothing to report.
		return
	}

	h.readLoop(c, sess)
}

// readLoop delivers inbound frames to the connection in arrival order
// and closes it when the transport goes away.
func (h *Handler) readLoop(c *conn.Connection, s *session) {
	defer c.Close()

	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug(fmt.Sprintf("%s - session %s read error: %v", logPrefix, s.ID(), err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.Message(data)
	}
}
