// Package broadcast propagates committed balance and subscription changes to
// every other active context of the same user session. Receivers resolve
// conflicts last-write-wins by timestamp; there is no locking between tabs.
package broadcast

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	KeyBalance      = "credit_balance"
	KeySubscription = "subscription"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

// StateUpdate is one committed mutation broadcast to sibling contexts.
type StateUpdate struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
	dropped          atomic.Int64
}

type stream struct {
	mu     sync.Mutex
	buffer []StateUpdate
	subs   map[uint64]chan StateUpdate
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	userID string
	id     uint64
	ch     chan StateUpdate
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish fans an update out to all subscribers of the user's session.
// Slow subscribers are skipped rather than blocking the committing writer.
func (h *Hub) Publish(userID string, update StateUpdate) {
	if h == nil {
		return
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[id]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, update)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan StateUpdate, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- update:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a new context for the user's session and returns the
// recent update buffer so late joiners can catch up.
func (h *Hub) Subscribe(userID string) (*Subscription, []StateUpdate, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, nil, errors.New("invalid_user")
	}

	stream := h.ensureStream(id)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan StateUpdate)
	}
	subID := stream.nextID
	stream.nextID++
	ch := make(chan StateUpdate, h.subscriberBuffer)
	stream.subs[subID] = ch
	buffer := append([]StateUpdate(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:    h,
		userID: id,
		id:     subID,
		ch:     ch,
	}, buffer, nil
}

// Dropped reports how many updates were skipped for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) ensureStream(userID string) *stream {
	h.mu.RLock()
	current := h.streams[userID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[userID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan StateUpdate)}
		h.streams[userID] = current
	}
	return current
}

func (h *Hub) unsubscribe(userID string, id uint64) {
	if h == nil {
		return
	}
	h.mu.RLock()
	stream := h.streams[userID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[userID]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, userID)
	}
	h.mu.Unlock()
}

func (s *Subscription) Updates() <-chan StateUpdate {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.userID, s.id)
	})
}
