package hub

import (
	"log"
	"sync"
	"time"
)

// TargetAll is the wildcard subscription target. A connection subscribed to
// (event, "all") receives that event for every target.
const TargetAll = "all"

// Frame is the JSON envelope delivered to live subscribers.
type Frame struct {
	Type      string      `json:"type"`
	Target    string      `json:"target,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type subKey struct {
	event  string
	target string
}

// Hub fans events out to live connections. A slow connection never delays
// delivery to others: each connection has a bounded outbound queue, and on
// overflow the oldest queued frame is discarded and counted. Old frames lose
// value fast in a live stream, so dropping oldest keeps slow dashboards
// current instead of disconnecting them.
type Hub struct {
	mu        sync.RWMutex
	conns     map[*Conn]struct{}
	queueSize int
}

// New creates a Hub with the given per-connection queue depth.
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		conns:     make(map[*Conn]struct{}),
		queueSize: queueSize,
	}
}

// Conn is one live subscriber. Subscriptions are keyed by (event, target);
// all mutation goes through Subscribe/Unsubscribe/Close.
type Conn struct {
	hub *Hub

	mu      sync.Mutex
	subs    map[subKey]struct{}
	queue   chan Frame
	closed  bool
	dropped int
}

// NewConn registers a new connection with no subscriptions.
func (h *Hub) NewConn() *Conn {
	c := &Conn{
		hub:   h,
		subs:  make(map[subKey]struct{}),
		queue: make(chan Frame, h.queueSize),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish delivers a frame to every connection subscribed to (event, target)
// or (event, "all"). Publish never blocks on a slow connection.
func (h *Hub) Publish(event, target string, payload interface{}) {
	f := Frame{Type: event, Target: target, Payload: payload, Timestamp: time.Now()}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(event, target, f)
	}
}

// Close shuts down every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Subscribe adds (event, target) to the connection's subscription set.
// Re-subscribing to the same key is a no-op.
func (c *Conn) Subscribe(event, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.subs[subKey{event, target}] = struct{}{}
}

// Unsubscribe removes (event, target). Removing an absent key is a no-op.
func (c *Conn) Unsubscribe(event, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, subKey{event, target})
}

// Frames returns the outbound queue. The channel is closed when the
// connection closes.
func (c *Conn) Frames() <-chan Frame {
	return c.queue
}

// Dropped returns how many frames were discarded due to a full queue.
func (c *Conn) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Send enqueues a frame directly, bypassing subscription matching. Used for
// protocol replies like pong.
func (c *Conn) Send(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.enqueueLocked(f)
}

// Close deregisters the connection, drops all subscriptions, and closes the
// frame channel. Safe to call concurrently with Publish, and more than once.
func (c *Conn) Close() {
	c.hub.mu.Lock()
	delete(c.hub.conns, c)
	c.hub.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.subs = nil
	close(c.queue)
	if c.dropped > 0 {
		log.Printf("hub: connection closed, %d frames dropped", c.dropped)
	}
}

func (c *Conn) deliver(event, target string, f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.subs[subKey{event, target}]; !ok {
		if _, ok := c.subs[subKey{event, TargetAll}]; !ok {
			return
		}
	}
	c.enqueueLocked(f)
}

// enqueueLocked appends a frame, discarding the oldest queued frame when the
// queue is full. Caller holds c.mu, so nothing else sends on the channel
// concurrently.
func (c *Conn) enqueueLocked(f Frame) {
	for {
		select {
		case c.queue <- f:
			return
		default:
		}
		select {
		case <-c.queue:
			c.dropped++
		default:
		}
	}
}
