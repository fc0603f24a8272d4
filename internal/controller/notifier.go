package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/selfcinema/server/internal/metrics"
	"github.com/selfcinema/server/internal/repository/connection"
)

// The notifier is a nudge channel, not a transport: clients that hold a
// connection get told to poll early after a room change. A lost nudge costs
// nothing because polling remains the authoritative path.
const (
	eventPlaybackChanged = "PLAYBACK_CHANGED"
	eventMessagePosted   = "MESSAGE_POSTED"
)

type notifierEvent struct {
	Type string `json:"type"`
}

func (c controller) ListenRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "ListenRoom", "upgrade err", err)
		return
	}

	conn := connection.NewConn(ws)
	if err := c.connRepo.Add(conn, roomID); err != nil {
		c.logger.InfoContext(r.Context(), "ListenRoom", "add conn err", err)
		conn.Close()
		return
	}

	metrics.NotifierConnections.Inc()

	// the client never sends data; the read loop only detects the close.
	go func() {
		defer c.dropConn(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (c controller) notifyRoom(ctx context.Context, roomID, event string) {
	for _, conn := range c.connRepo.GetConnsByRoomID(roomID) {
		if err := conn.WriteJSON(notifierEvent{Type: event}); err != nil {
			c.logger.DebugContext(ctx, "notifyRoom", "write err", err)
			c.dropConn(conn)
		}
	}
}

// dropConn removes a connection from the repo, adjusting the gauge only when
// this caller actually removed it. Both the read loop and a failed write race
// to remove the same connection; only one of them may count it.
func (c controller) dropConn(conn *connection.Conn) {
	if err := c.connRepo.RemoveByConn(conn); err == nil {
		metrics.NotifierConnections.Dec()
	}
}
