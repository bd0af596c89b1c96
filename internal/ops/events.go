package ops

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// Event is one session stage transition, as published to observers.
type Event struct {
	SessionID string    `json:"session_id"`
	ChatID    int64     `json:"chat_id"`
	Stage     string    `json:"stage"`
	At        time.Time `json:"at"`
}

// EventHub fans session events out to connected websocket observers.
// A slow observer drops events rather than stalling the publisher.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	log  *logrus.Entry
}

// NewEventHub returns an empty hub.
func NewEventHub(log *logrus.Entry) *EventHub {
	return &EventHub{
		subs: make(map[chan Event]struct{}),
		log:  log,
	}
}

// Publish delivers the event to every subscriber without blocking.
func (h *EventHub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *EventHub) subscribe() chan Event {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Serve streams events to one websocket connection until it closes.
func (h *EventHub) Serve(c *websocket.Conn) {
	defer c.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	h.log.Info("event observer connected")
	for e := range ch {
		if err := c.WriteJSON(e); err != nil {
			h.log.WithError(err).Debug("event observer dropped")
			return
		}
	}
}
