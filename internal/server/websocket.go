package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ashmit2704/taskboard/internal/board"
	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/logging"
	"github.com/ashmit2704/taskboard/internal/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// wsClient is one websocket connection with its event subscription. Identity
// arrives in a hello frame after the upgrade; everything before that is an
// anonymous connection.
type wsClient struct {
	connID string
	conn   *websocket.Conn
	sub    *events.Subscription
	svc    *board.Service
}

// wsFrame is the shape of client-to-server messages.
type wsFrame struct {
	Action   string `json:"action"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func newUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
}

// HandleWebSocket handles GET /ws.
func HandleWebSocket(svc *board.Service, bus *events.Bus, allowedOrigin string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigin)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("websocket upgrade failed", logging.Fields{"error": err.Error()})
			return
		}

		connID := uuid.NewString()
		client := &wsClient{
			connID: connID,
			conn:   conn,
			sub:    bus.Subscribe(connID),
			svc:    svc,
		}
		logging.Info("websocket client connected", logging.Fields{"connId": connID})

		// Tell the client its connection id so REST calls can carry it and be
		// excluded from their own broadcasts.
		client.sendConnected()

		go client.writePump()
		go client.readPump()
	}
}

func (c *wsClient) sendConnected() {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(map[string]interface{}{
		"type":         "connected",
		"connectionId": c.connID,
		"timestamp":    time.Now().Unix(),
	})
}

// readPump consumes client frames until the connection drops, then releases
// every lease the connection held and tears down the subscription.
func (c *wsClient) readPump() {
	participant := board.Actor{ConnID: c.connID}

	defer func() {
		released := c.svc.Locks().ReleaseAll(c.connID)
		c.sub.Close()
		c.conn.Close()
		logging.Info("websocket client disconnected", logging.Fields{
			"connId":        c.connID,
			"userId":        participant.ID,
			"releasedLocks": len(released),
		})
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket read error", logging.Fields{"connId": c.connID, "error": err.Error()})
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			logging.Warn("websocket invalid frame", logging.Fields{"connId": c.connID})
			continue
		}

		switch frame.Action {
		case "hello":
			participant.ID = frame.UserID
			participant.Name = frame.UserName
			logging.Info("websocket participant bound", logging.Fields{
				"connId": c.connID,
				"userId": frame.UserID,
			})
		case "ping":
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteJSON(map[string]interface{}{
				"action":    "pong",
				"timestamp": time.Now().Unix(),
			})
		}
	}
}

// writePump forwards bus events to the connection and keeps it alive with
// pings. Exits when the subscription channel closes.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
