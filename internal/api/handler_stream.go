package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// streamMessage is one frame sent to a stream client.
type streamMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func newUpgrader(allowed []string) websocket.Upgrader {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || set["*"] || set[origin] {
				return true
			}
			// Same host is always allowed.
			return strings.HasSuffix(origin, "://"+r.Host)
		},
	}
}

// StreamSeats upgrades to a WebSocket and sends a snapshot frame for the
// current state and after every change. Frames are never older than the one
// before them.
func (h *Handler) StreamSeats(c *gin.Context) {
	eventID := c.Param("event_id")
	token := c.Query("token")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.hub.Subscribe(ctx, eventID)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("event", eventID)
	log.Debug("stream client connected")

	// The reader only handles control frames and notices disconnects.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Event: "snapshot", Data: newSnapshotView(snap, token)}); err != nil {
				log.WithError(err).Debug("stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			log.Debug("stream client disconnected")
			return
		}
	}
}
