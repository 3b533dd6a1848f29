package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaymesh/gateway/pkg/api"
	"github.com/relaymesh/gateway/pkg/engine"
	"github.com/relaymesh/gateway/pkg/project"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	pipeline, err := api.NewPipeline(api.PipelineParams{
		Projects: project.NewStaticRegistry([]project.Project{
			{ID: "p1", Name: "news", Secret: "topsecret"},
		}),
		Processor: engine.NoOpProcessor{},
	})
	if err != nil {
		t.Fatalf("ws:ws_test - NewPipeline failed: %v", err)
	}
	h := NewHandler(HandlerParams{
		Pipeline: pipeline,
		Projects: project.NewStaticRegistry([]project.Project{
			{ID: "p1", Name: "news", Secret: "topsecret"},
		}),
		Prefix:    "/connection/",
		Heartbeat: time.Second,
	})
	mux := http.NewServeMux()
	mux.Handle("/connection/", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, projectID string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http", "ws", 1) + "/connection/" + projectID
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws:ws_test - dial %s failed: %v", url, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHandler_CommandRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv, "p1")

	msg := `{"uid": "u-1", "method": "ping", "params": {}}`
	if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("ws:ws_test - write failed: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ws:ws_test - read failed: %v", err)
	}

	var resp api.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("ws:ws_test - decode response: %v", err)
	}
	if resp.UID != "u-1" || resp.Method != "ping" || resp.Error != "" {
		t.Errorf("ws:ws_test - response = %+v", resp)
	}
}

func TestHandler_UnknownMethodAnswered(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv, "p1")

	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"method": "warp", "params": {}}`)); err != nil {
		t.Fatalf("ws:ws_test - write failed: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ws:ws_test - read failed: %v", err)
	}

	var resp api.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("ws:ws_test - decode response: %v", err)
	}
	if resp.Error != "method not found" {
		t.Errorf("ws:ws_test - error = %q", resp.Error)
	}
}

func TestHandler_UnknownProject(t *testing.T) {
	srv := newTestServer(t)

	url := strings.Replace(srv.URL, "http", "ws", 1) + "/connection/ghost"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("ws:ws_test - expected dial to unknown project to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("ws:ws_test - expected 404 handshake response, got %+v", resp)
	}
}

func TestHandler_ServerPingsClient(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv, "p1")

	pings := make(chan struct{}, 1)
	c.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return c.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
	})

	// The ping handler only runs while reading; expect a ping within a
	// couple of heartbeat intervals.
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SetReadDeadline(time.Now().Add(4 * time.Second))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-done:
		t.Error("ws:ws_test - no ping received before read loop ended")
	}
}

func TestSession_ValidAndClose(t *testing.T) {
	// Exercise the session directly against a server-side upgrade.
	upgraded := make(chan *session, 1)
	mux := http.NewServeMux()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux.HandleFunc("/raw", func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- newSession(wsConn)
	})
	rawSrv := httptest.NewServer(mux)
	defer rawSrv.Close()

	url := strings.Replace(rawSrv.URL, "http", "ws", 1) + "/raw"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws:ws_test - dial failed: %v", err)
	}
	defer client.Close()

	s := <-upgraded
	if !s.Valid() {
		t.Error("ws:ws_test - fresh session should be valid")
	}
	if s.NativeKeepalive() {
		t.Error("ws:ws_test - raw websocket has no native keepalive")
	}

	if err := s.Close(); err != nil {
		t.Errorf("ws:ws_test - close failed: %v", err)
	}
	if s.Valid() {
		t.Error("ws:ws_test - closed session reported valid")
	}
	if err := s.Close(); err != nil {
		t.Errorf("ws:ws_test - second close should be a no-op: %v", err)
	}
	if err := s.Send([]byte("late")); err == nil {
		t.Error("ws:ws_test - send on closed session should fail")
	}
}
