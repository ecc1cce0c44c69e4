package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/game"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a slow watcher can stall a broadcast.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is origin-agnostic (see withCORS); the feed carries no
	// secrets beyond what /api/interact already returns.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watchHub fans completed turns out to websocket watchers, keyed by
// userId. A watcher sees every turn reply for its player as it happens,
// which lets a front end render world events live without polling.
type watchHub struct {
	mu       sync.Mutex
	watchers map[string]map[*websocket.Conn]bool
	logger   *slog.Logger
}

func newWatchHub(logger *slog.Logger) *watchHub {
	return &watchHub{
		watchers: make(map[string]map[*websocket.Conn]bool),
		logger:   logger,
	}
}

func (h *watchHub) add(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[userID] == nil {
		h.watchers[userID] = make(map[*websocket.Conn]bool)
	}
	h.watchers[userID][conn] = true
}

func (h *watchHub) remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers[userID], conn)
	if len(h.watchers[userID]) == 0 {
		delete(h.watchers, userID)
	}
}

// Observe implements the game.TurnObserver contract: it pushes the
// turn reply to every watcher of that player. Dead connections are
// dropped; the turn itself never fails because of a watcher.
func (h *watchHub) Observe(ctx context.Context, rec game.TurnRecord) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.watchers[rec.UserID]))
	for c := range h.watchers[rec.UserID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(rec.Reply); err != nil {
			h.logger.Debug("dropping dead watcher", "user_id", rec.UserID, "error", err)
			h.remove(rec.UserID, c)
			c.Close()
		}
	}
}

// handleWatch upgrades the connection and streams turn replies for the
// requested player until the client goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId", s.logger)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s.hub.add(userID, conn)
	s.logger.Debug("watcher connected", "user_id", userID)

	// Read pump: we expect no inbound messages, but reading is how the
	// close handshake and connection loss are detected.
	go func() {
		defer func() {
			s.hub.remove(userID, conn)
			conn.Close()
			s.logger.Debug("watcher disconnected", "user_id", userID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
