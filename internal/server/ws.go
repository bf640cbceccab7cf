package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local renderers
	},
}

// Client is one websocket connection subscribed to the hub.
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	types map[tracking.EventType]bool
	log   logrus.FieldLogger
}

// wants reports whether the client subscribed to events of type t. An
// empty filter subscribes to everything.
func (c *Client) wants(t tracking.EventType) bool {
	return len(c.types) == 0 || c.types[t]
}

// trySend queues payload without blocking. It reports false when the
// client's buffer is full.
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump drains incoming frames so control messages are processed, and
// unregisters the client when the connection closes.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}

// writePump writes queued events, one websocket message per event.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// EventsHandler upgrades /api/events requests and registers the client
// with the hub. ?types=position,lost limits the stream to those events.
type EventsHandler struct {
	hub *Hub
	log logrus.FieldLogger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *Hub, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{hub: hub, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes(r.URL.Query().Get("types"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id := uuid.New().String()
	c := &Client{
		id:    id,
		hub:   h.hub,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		types: types,
		log:   h.log.WithFields(logrus.Fields{"client": id, "remote": r.RemoteAddr}),
	}
	select {
	case h.hub.register <- c:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func parseTypes(v string) (map[tracking.EventType]bool, error) {
	if v == "" {
		return nil, nil
	}

	types := make(map[tracking.EventType]bool)
	for _, name := range strings.Split(v, ",") {
		t := tracking.EventType(strings.TrimSpace(name))
		switch t {
		case tracking.EventPosition, tracking.EventLost, tracking.EventCalibration, tracking.EventHand:
			types[t] = true
		default:
			return nil, fmt.Errorf("unknown event type %q", t)
		}
	}
	return types, nil
}
