package state

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousUser is the userId every connection starts with until a CONNECT
// frame supplies a real one.
const AnonymousUser = "anonymous"

// Client is one live connection's record. Identity is issued by the relay on
// accept, never chosen by the caller.
type Client struct {
	ID           string
	UserID       string
	SessionID    string
	RoomCode     string // empty when not in a room
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Identified reports whether the client has supplied a userId via CONNECT.
func (c *Client) Identified() bool {
	return c.UserID != "" && c.UserID != AnonymousUser
}

// ClientRegistry owns the authoritative map of live clients, keyed by
// relay-assigned id.
type ClientRegistry struct {
	clients map[string]*Client
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

// Register allocates a new client with a fresh id and session token. It has
// no failure mode.
func (r *ClientRegistry) Register(now time.Time) *Client {
	c := &Client{
		ID:           uuid.NewString(),
		UserID:       AnonymousUser,
		SessionID:    uuid.NewString(),
		ConnectedAt:  now,
		LastActivity: now,
	}
	r.clients[c.ID] = c
	return c
}

// Get looks up a client by id.
func (r *ClientRegistry) Get(id string) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Touch refreshes a client's activity clock. Unknown ids are a no-op: the
// client may already have been evicted while its last frames were in flight.
func (r *ClientRegistry) Touch(id string, now time.Time) {
	if c, ok := r.clients[id]; ok {
		c.LastActivity = now
	}
}

// Remove deletes a client and returns its record, or nil if the id was
// already gone. Idempotent; room membership cleanup is the caller's job so
// leave notices can be broadcast with the removed client's identity.
func (r *ClientRegistry) Remove(id string) *Client {
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	delete(r.clients, id)
	return c
}

// All returns the current clients in no particular order.
func (r *ClientRegistry) All() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live clients.
func (r *ClientRegistry) Len() int {
	return len(r.clients)
}
