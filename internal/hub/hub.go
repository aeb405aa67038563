// Package hub fans stored messages out to connected dashboard viewers.
//
// Durability lives entirely in the message store; the live channel is
// best-effort. A viewer that misses a broadcast recovers the full picture on
// its next connect, so per-session failures are swallowed here and never
// reach the ingestion path or other sessions.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"smsrelay/internal/dto"
	"smsrelay/internal/observability/metrics"
	"smsrelay/internal/store"
)

// History supplies the grouped snapshot sent to a session at connect time.
type History interface {
	GroupedByDevice(ctx context.Context) (map[string][]store.Message, error)
}

type Hub struct {
	history  History
	buffer   int
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

func New(history History, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		history: history,
		buffer:  buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[*Session]struct{}),
	}
}

// Handle upgrades the request and runs the session until it disconnects.
//
// The session is registered before the history snapshot is read: an append
// that lands after the snapshot began is queued on the session and delivered
// over the live path once the sync frame is out. At the snapshot boundary a
// message may therefore arrive both in the sync and as a live event, never
// neither.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := newSession(conn, h.buffer)
	h.register(sess)
	defer h.Unregister(sess)

	grouped, err := h.history.GroupedByDevice(r.Context())
	if err != nil {
		slog.Error("initial sync failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	syncEv := dto.Event{Type: dto.EventAllMessages, Payload: dto.GroupedFromStore(grouped)}
	if err := sess.writeEvent(syncEv); err != nil {
		slog.Debug("initial sync write failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	go sess.readLoop()
	sess.writeLoop()
}

// Broadcast enqueues the message for every connected session. Delivery is
// best-effort per session: a session whose queue is full is closed and will
// resync on reconnect rather than stall the rest.
func (h *Hub) Broadcast(msg store.Message) {
	ev := dto.Event{Type: dto.EventNewMessage, Payload: dto.FromStoreMessage(msg)}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.queue <- ev:
			metrics.WSFanoutTotal.WithLabelValues("enqueued").Inc()
		case <-s.closed:
			metrics.WSFanoutTotal.WithLabelValues("closed").Inc()
		default:
			metrics.WSFanoutTotal.WithLabelValues("dropped").Inc()
			slog.Warn("session queue full, dropping session", "queued", len(s.queue))
			s.close()
		}
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	metrics.WSSessionsActive.WithLabelValues().Inc()
	slog.Debug("viewer session connected")
}

// Unregister releases the session. Safe to call more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, present := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	if present {
		metrics.WSSessionsActive.WithLabelValues().Dec()
		slog.Debug("viewer session disconnected")
	}
	s.close()
}

// Sessions reports the number of currently connected viewers.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
