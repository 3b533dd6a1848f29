// Package ws provides the websocket transport for persistent gateway
// connections: the session implementation handed to the connection
// state machine and the HTTP upgrade handler that drives it.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	sendBuffer   = 256
)

// session adapts a gorilla websocket connection to conn.Session.
// Outbound frames go through a buffered channel drained by a single
// write pump; keepalive pings use control frames, which gorilla allows
// concurrently with the pump.
type session struct {
	id   string
	conn *websocket.Conn

	sendCh chan []byte
	done   chan struct{}

	mu       sync.Mutex
	closed   bool
	stopPing chan struct{}
}

func newSession(conn *websocket.Conn) *session {
	s := &session{
		id:     uuid.New().String(),
		conn:   conn,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go s.writePump()
	return s
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.closed
}

// NativeKeepalive is false for raw websockets: the gateway manages
// ping/pong itself.
func (s *session) NativeKeepalive() bool {
	return false
}

func (s *session) Send(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	s.mu.Unlock()

	select {
	case s.sendCh <- data:
		return nil
	case <-s.done:
		return errors.New("session closed")
	default:
		return errors.New("send buffer full")
	}
}

func (s *session) StartKeepalive(interval time.Duration) {
	s.mu.Lock()
	if s.closed || s.stopPing != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stopPing = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(writeTimeout)
				if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-stop:
				return
			case <-s.done:
				return
			}
		}
	}()
}

func (s *session) StopKeepalive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopPing != nil {
		close(s.stopPing)
		s.stopPing = nil
	}
}

func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.stopPing != nil {
		close(s.stopPing)
		s.stopPing = nil
	}
	close(s.done)
	s.mu.Unlock()

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	s.conn.WriteControl(websocket.CloseMessage, message, deadline)
	return s.conn.Close()
}

// writePump pumps frames from the send channel to the websocket.
func (s *session) writePump() {
	for {
		select {
		case data := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
