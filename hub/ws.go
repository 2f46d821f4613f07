package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxControlSize bounds inbound control messages.
	maxControlSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlMessage is the inbound message format on the live channel.
type controlMessage struct {
	Action    string `json:"action"` // "subscribe", "unsubscribe" or "ping"
	EventType string `json:"event_type,omitempty"`
	Target    string `json:"target,omitempty"`
}

// ServeWS upgrades the request to a WebSocket and serves the live channel.
// Blocks until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := h.NewConn()
	go writePump(ws, c)
	readPump(ws, c) // blocks until connection closes
	c.Close()
}

// readPump processes control messages and detects disconnects.
func readPump(ws *websocket.Conn, c *Conn) {
	defer ws.Close()
	ws.SetReadLimit(maxControlSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("hub: bad control message: %v", err)
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.Subscribe(msg.EventType, normalizeTarget(msg.Target))
		case "unsubscribe":
			c.Unsubscribe(msg.EventType, normalizeTarget(msg.Target))
		case "ping":
			c.Send(Frame{Type: "pong", Timestamp: time.Now()})
		default:
			log.Printf("hub: unknown action %q", msg.Action)
		}
	}
}

func normalizeTarget(target string) string {
	if target == "" {
		return TargetAll
	}
	return target
}

// writePump drains the connection's frame queue to the socket and sends
// periodic pings.
func writePump(ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case f, ok := <-c.Frames():
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
