// Package hub tracks which users hold a live connection to which channel and
// fans newly created events out to every member of a channel.
//
// The hub is the only shared mutable structure in the fan-out path. Its lock
// guards the in-memory maps exclusively; it is never held across a network
// send. Broadcasts copy the recipient set under the lock, then deliver
// outside it.
package hub

import (
	"slices"
	"sync"
)

// Sender is the send side of one live connection. Send must not block:
// it either enqueues the payload or fails immediately. Close must be
// idempotent and safe to call concurrently with Send.
type Sender interface {
	Send(payload []byte) error
	Close()
}

// Hub maps channel ID -> user ID -> live connection. A (channel, user) pair
// holds at most one connection; registering a replacement closes the
// superseded one. A channel entry never outlives its last member.
type Hub struct {
	mu       sync.RWMutex
	channels map[int64]map[int64]Sender
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		channels: make(map[int64]map[int64]Sender),
	}
}

// Register binds the connection to the (channel, user) pair, replacing and
// closing any previously registered connection for the same pair.
func (h *Hub) Register(channelID, userID int64, s Sender) {
	h.mu.Lock()
	conns := h.channels[channelID]
	if conns == nil {
		conns = make(map[int64]Sender)
		h.channels[channelID] = conns
	}
	prev := conns[userID]
	conns[userID] = s
	h.mu.Unlock()

	// Closed outside the lock: Close may unblock a write pump.
	if prev != nil && prev != s {
		prev.Close()
	}
}

// Unregister removes the (channel, user) pair. It is a no-op if the pair is
// absent. The connection itself is not closed.
func (h *Hub) Unregister(channelID, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(channelID, userID)
}

// Release removes the pair only if s is still the registered connection, and
// reports whether it removed anything. A session whose connection was already
// replaced by a newer one must not evict its successor on the way out.
func (h *Hub) Release(channelID, userID int64, s Sender) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channelID][userID] != s {
		return false
	}
	h.remove(channelID, userID)
	return true
}

// remove deletes the pair and prunes the channel entry once empty.
// Callers must hold the write lock.
func (h *Hub) remove(channelID, userID int64) {
	conns, ok := h.channels[channelID]
	if !ok {
		return
	}
	delete(conns, userID)
	if len(conns) == 0 {
		delete(h.channels, channelID)
	}
}

// Snapshot returns a point-in-time copy of the channel's connections, used as
// the iteration basis for broadcasts so sends never run under the lock.
func (h *Hub) Snapshot(channelID int64) map[int64]Sender {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.channels[channelID]
	snapshot := make(map[int64]Sender, len(conns))
	for userID, s := range conns {
		snapshot[userID] = s
	}
	return snapshot
}

// Members returns the IDs of users currently connected to the channel,
// in ascending order.
func (h *Hub) Members(channelID int64) []int64 {
	h.mu.RLock()
	conns := h.channels[channelID]
	members := make([]int64, 0, len(conns))
	for userID := range conns {
		members = append(members, userID)
	}
	h.mu.RUnlock()

	slices.Sort(members)
	return members
}

// IsOnline reports whether the user currently holds a connection to the channel.
func (h *Hub) IsOnline(userID, channelID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.channels[channelID][userID]
	return ok
}
