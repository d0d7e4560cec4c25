package ws

import (
	"errors"
	"sync"
)

// ErrUserNotConnected reports a room operation for a user with no live session.
var ErrUserNotConnected = errors.New("user not connected")

// Registry maps each user id to their single live session. It is injected and
// lifecycle-scoped, never a package global, so instances and test runs do not
// share state. Entries are process-lifetime only and never persisted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*Client)}
}

// Register stores the client as the user's current session. The latest
// registration for a user id overwrites any prior one.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[client.UserID] = client
}

// Unregister removes the client's mapping only while it is still the one on
// record. A stale session disconnecting after being replaced must not evict
// its replacement. Calling it twice is a no-op.
func (r *Registry) Unregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[client.UserID]; ok && current == client {
		delete(r.sessions, client.UserID)
	}
}

// Lookup returns the user's live session, if any.
func (r *Registry) Lookup(userID int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.sessions[userID]
	return client, ok
}
