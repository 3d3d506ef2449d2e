package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knowreal/knowreal-backend/internal/middleware"
	"github.com/knowreal/knowreal-backend/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// DreamSubscriber is satisfied by services.RedisEventBus.
type DreamSubscriber interface {
	Subscribe(ctx context.Context, ownerID string) (<-chan services.DreamEvent, func() error, error)
}

// DreamEventsHandler pushes the caller's dream events over a WebSocket so
// open listings can refetch.
type DreamEventsHandler struct {
	events   DreamSubscriber
	upgrader websocket.Upgrader
}

// NewDreamEventsHandler only accepts upgrades from allowedOrigins. Requests
// without an Origin header (non-browser clients) are accepted.
func NewDreamEventsHandler(events DreamSubscriber, allowedOrigins []string) *DreamEventsHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &DreamEventsHandler{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Serve handles GET /ws/dreams. Mount behind middleware.RequireIdentity.
func (h *DreamEventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := h.events.Subscribe(ctx, identity.UserID)
	if err != nil {
		log.Printf("Error subscribing to dream events for %s: %v", identity.UserID, err)
		writeFailure(w, http.StatusServiceUnavailable, "Realtime updates are unavailable")
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader: only control frames are expected; any read error ends the session.
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
