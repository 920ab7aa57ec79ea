// Package watch streams party status changes over a WebSocket so clients
// hear about completion without polling. Polling the status endpoint
// remains available as the fallback channel.
package watch

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/moviematch/internal/app/system/completion"
	"github.com/dalemusser/moviematch/internal/app/system/httpjson"
	"github.com/dalemusser/moviematch/internal/app/system/notify"
	"github.com/dalemusser/moviematch/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Handler holds the dependencies for the watch endpoint.
type Handler struct {
	coordinator *completion.Coordinator
	hub         *notify.Hub
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// NewHandler constructs a watch Handler.
func NewHandler(coordinator *completion.Coordinator, hub *notify.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The party code is the credential; no origin restriction.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger,
	}
}

// statusMessage is what goes over the wire: the same shape for the
// initial snapshot and every subsequent change.
type statusMessage struct {
	Code     string `json:"code"`
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Serve handles GET /parties/{code}/watch. The current status is sent
// immediately after the upgrade, so a client that connects after
// completion still gets the terminal state.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.log, "watch party")
	info, err := h.coordinator.Status(ctx, code)
	cancel()
	if err != nil {
		// Resolve the party before upgrading so bad codes get a plain
		// HTTP error instead of a dead socket.
		httpjson.Error(w, http.StatusNotFound, "party not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			zap.String("party_code", code),
			zap.Error(err))
		return
	}

	events, unsubscribe := h.hub.Subscribe(info.Code)
	defer unsubscribe()

	snapshot := statusMessage{
		Code:     info.Code,
		Status:   info.Status,
		Ready:    info.Ready,
		Degraded: info.Degraded,
	}

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, snapshot, events, done)
}

// readLoop drains client frames so pongs are processed and closes done
// when the peer goes away.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, snapshot statusMessage, events <-chan notify.StatusEvent, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	for {
		select {
		case ev := <-events:
			// Re-read the party so ready/degraded reflect what was
			// actually persisted, not just the pushed status string.
			msg := statusMessage{Code: ev.Code, Status: ev.Status}
			ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
			if info, err := h.coordinator.Status(ctx, ev.Code); err == nil {
				msg.Status = info.Status
				msg.Ready = info.Ready
				msg.Degraded = info.Degraded
			}
			cancel()

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
