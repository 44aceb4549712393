package broadcast

import (
	"sync"
)

// DefaultBuffer is the per-subscriber buffer used when NewHub gets size <= 0.
const DefaultBuffer = 16

// Message is one published notification.
type Message struct {
	Channel string
	Kind    string
	Data    any
}

// Hub routes messages to subscribers of a named channel.
//
// Thread-safety: all methods are safe for concurrent use.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewHub creates a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription receives messages published on one channel until closed.
type Subscription struct {
	// C delivers messages. It is closed by Close.
	C <-chan Message

	c       chan Message
	hub     *Hub
	channel string
	once    sync.Once
}

// Subscribe registers a new subscriber on channel.
// Subscribing to a closed hub returns an already-closed subscription.
func (h *Hub) Subscribe(channel string) *Subscription {
	ch := make(chan Message, h.buffer)
	s := &Subscription{C: ch, c: ch, hub: h, channel: channel}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(ch) })
		return s
	}
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	set[s] = struct{}{}
	return s
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	if set, ok := s.hub.subs[s.channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.hub.subs, s.channel)
		}
	}
	s.hub.mu.Unlock()
	s.once.Do(func() { close(s.c) })
}

// Publish sends a message to every current subscriber of channel and returns
// how many received it. Full subscribers are skipped.
func (h *Hub) Publish(channel, kind string, data any) int {
	msg := Message{Channel: channel, Kind: kind, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}

	delivered := 0
	for s := range h.subs[channel] {
		select {
		case s.c <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Close closes every subscription. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.once.Do(func() { close(s.c) })
	}
}
