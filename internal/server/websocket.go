package server

import (
	"net/http"
	"time"

	"mcpdeck/pkg/logging"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds one message write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard UI is served from elsewhere; origin policy is the
	// deployment's concern.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades to WebSocket and bridges a broadcaster session onto
// the connection: snapshot first, then live events as JSON frames.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Server", "WebSocket upgrade failed: %v", err)
		return
	}

	sess := s.core.Subscribe()
	defer s.core.Unsubscribe(sess)
	defer conn.Close()
	logging.Debug("Server", "WebSocket session %s connected from %s", sess.ID, r.RemoteAddr)

	// Reader only consumes control frames and detects disconnect.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(1024)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(pingPeriod)
	defer pinger.Stop()

	for {
		select {
		case <-readerDone:
			return

		case event, open := <-sess.Events():
			if !open {
				// Evicted by the broadcaster or shutting down.
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "resubscribe"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				logging.Debug("Server", "WebSocket session %s write failed: %v", sess.ID, err)
				return
			}

		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
