package app

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portal/api/internal/store"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

type streamSnapshot struct {
	Kind          string               `json:"kind"`
	Notifications []store.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// handleNotificationStream pushes the client's notification changes over a
// WebSocket. The first frame is a snapshot; every later frame is a
// store.Change. The stream ends when the socket closes or the session is
// dropped.
func (s *HTTPServer) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	queue := session.Client.Notifications()

	changes, cancel := queue.Subscribe(32)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v)
	}

	if err := write(streamSnapshot{Kind: "snapshot", Notifications: queue.List(), Unread: queue.UnreadCount()}); err != nil {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := write(change); err != nil {
				s.logger.Debug("notification stream write failed", zap.String("client", session.JTI), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
