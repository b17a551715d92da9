package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
)

const (
	streamBuffer     = 64
	streamPingPeriod = 30 * time.Second
	streamWriteWait  = 10 * time.Second
	streamPongWait   = streamPingPeriod + 15*time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleStream upgrades to a websocket and forwards events-bus messages
// until the client goes away. ?event_id= limits the stream to one
// event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	filter := r.URL.Query().Get("event_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(streamBuffer)
	defer s.bus.Unsubscribe(ch)
	s.logger.Info("event stream opened", "remote", r.RemoteAddr, "event_id", filter)

	// The read loop only watches for close frames and pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("event stream read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			s.logger.Info("event stream closed", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !matches(e, filter) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("event stream write failed", "error", err)
				return
			}
		}
	}
}

func matches(e events.Event, eventID string) bool {
	if eventID == "" {
		return true
	}
	id, _ := e.Data["event_id"].(string)
	return id == eventID
}
