package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"smsrelay/internal/dto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// Session is one connected viewer. All writes to the connection happen on the
// goroutine that runs writeLoop, so no write mutex is needed.
type Session struct {
	conn  *websocket.Conn
	queue chan dto.Event

	closed chan struct{}
	once   sync.Once
}

func newSession(conn *websocket.Conn, buffer int) *Session {
	return &Session{
		conn:   conn,
		queue:  make(chan dto.Event, buffer),
		closed: make(chan struct{}),
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

func (s *Session) writeEvent(ev dto.Event) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(ev)
}

// writeLoop drains the session queue until the session closes or a write
// fails. The initial sync has already been written by the time this runs, so
// queued live events can never overtake it.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case ev := <-s.queue:
			if err := s.writeEvent(ev); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

// readLoop exists to detect disconnects and answer pings; viewers send no
// application data.
func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxInboundSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.close()
			return
		}
	}
}
