package api

import (
	"net/http"
	"strconv"
	"time"

	"appdeck/internal/domain/model"
	"appdeck/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEventStream sends the retained events of an application, then
// forwards live ones until the client disconnects or falls behind.
func (s *Server) handleEventStream(c *gin.Context) {
	appID := c.Param("id")
	var after uint64
	if v := c.Query("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid after value")
			return
		}
		after = parsed
	}
	runID := c.Query("run_id")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Failed to upgrade event stream", "app_id", appID, "error", err)
		return
	}
	defer ws.Close()

	sub := s.deps.Events.Subscribe(appID)
	defer sub.Close()

	send := func(e model.Event) error {
		if e.Seq <= after || (runID != "" && e.RunID != runID) {
			return nil
		}
		after = e.Seq
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(e)
	}

	for _, e := range sub.History {
		if err := send(e); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"),
					time.Now().Add(writeWait))
				return
			}
			if err := send(e); err != nil {
				log.Debug("Event stream write failed", "app_id", appID, "error", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			log.Debug("Event stream client disconnected", "app_id", appID)
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
