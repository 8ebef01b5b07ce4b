package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Ashy-21/TWINK/pkg/logger"
)

// Event is one broadcast as seen by a subscriber. Data is the JSON frame sent to
// sockets; Payload is the value it was encoded from, for in-process subscribers.
type Event struct {
	Topic   string
	Payload interface{}
	Data    []byte
}

func NewEvent(topic string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return Event{Topic: topic, Payload: payload, Data: data}, nil
}

// Subscriber receives events from the topics it has joined. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(ev Event) error
}

// Hub maps topic names to their subscribers. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[string]Subscriber),
	}
}

// Join adds sub to topic. Joining twice has no further effect.
func (h *Hub) Join(topic string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		h.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

// Leave removes sub from topic. It is a no-op when sub is not subscribed.
func (h *Hub) Leave(topic string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub.ID())
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Broadcast encodes payload once and delivers it to every current subscriber of
// topic. It returns how many deliveries succeeded; failed deliveries are logged.
func (h *Hub) Broadcast(topic string, payload interface{}) int {
	ev, err := NewEvent(topic, payload)
	if err != nil {
		logger.Error("Error marshaling broadcast: %v", err)
		return 0
	}
	return h.Publish(ev)
}

// Publish delivers an already encoded event.
func (h *Hub) Publish(ev Event) int {
	delivered := 0
	for _, sub := range h.snapshot(ev.Topic) {
		if err := sub.Deliver(ev); err != nil {
			logger.Debug("Dropped %s event for %s: %v", ev.Topic, sub.ID(), err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) snapshot(topic string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.topics[topic]
	out := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub)
	}
	return out
}

// Subscribers returns the number of subscribers of topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// IsSubscribed reports whether sub currently belongs to topic.
func (h *Hub) IsSubscribed(topic string, sub Subscriber) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.topics[topic][sub.ID()]
	return ok
}

// Topics returns the number of topics with at least one subscriber.
func (h *Hub) Topics() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
