package server

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

const broadcastBuffer = 256

type message struct {
	kind    tracking.EventType
	payload []byte
}

// Hub fans tracking events out to websocket clients. It implements
// tracking.Sink; Publish never blocks the tracking loop.
type Hub struct {
	log logrus.FieldLogger

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  []byte

	dropped uint64
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		log:        log.WithField("component", "hub"),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, broadcastBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run delivers events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			h.log.Info("websocket hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			latest := h.latest
			count := len(h.clients)
			h.mu.Unlock()

			// New clients render the held position right away.
			if latest != nil && c.wants(tracking.EventPosition) {
				c.trySend(latest)
			}
			h.log.WithFields(logrus.Fields{"client": c.id, "clients": count}).Info("client connected")

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			var dead []*Client
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(m.kind) {
					continue
				}
				if !c.trySend(m.payload) {
					dead = append(dead, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range dead {
				h.log.WithField("client", c.id).Warn("client too slow, disconnecting")
				h.remove(c)
			}
		}
	}
}

// Publish implements tracking.Sink.
func (h *Hub) Publish(_ context.Context, e tracking.Event) error {
	payload, err := tracking.MarshalEvent(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	switch e.(type) {
	case tracking.PositionEvent:
		h.latest = payload
	case tracking.LostEvent:
		h.latest = nil
	}
	h.mu.Unlock()

	select {
	case h.broadcast <- message{kind: e.Type(), payload: payload}:
	default:
		h.mu.Lock()
		h.dropped++
		dropped := h.dropped
		h.mu.Unlock()
		if dropped%100 == 1 {
			h.log.WithField("dropped", dropped).Warn("broadcast buffer full, dropping events")
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.WithFields(logrus.Fields{"client": c.id, "clients": len(h.clients)}).Info("client disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
