package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/youming-ai/umuo-transcriber/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleEvents upgrades the connection and streams scheduler events as
// JSON frames. A `since` query parameter replays buffered events the
// subscriber missed before live delivery starts.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := observability.NewCorrelationID()
	s.logger.Debug().Str("conn_id", connID).Str("remote", r.RemoteAddr).Msg("event subscriber connected")
	defer s.logger.Debug().Str("conn_id", connID).Msg("event subscriber disconnected")

	events, unsubscribe := s.sched.Subscribe()
	defer unsubscribe()

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, _ = strconv.ParseInt(raw, 10, 64)
	}
	for _, ev := range s.sched.EventsSince(since) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	// drain client frames so close handshakes and pongs are processed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
