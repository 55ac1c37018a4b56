package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// PresenceObserver is told when a user goes online or offline. The fan-out
// to friend lists and similar lives behind it.
type PresenceObserver interface {
	PresenceChanged(userID string, online bool)
}

// PresenceFunc adapts a function to PresenceObserver.
type PresenceFunc func(userID string, online bool)

func (f PresenceFunc) PresenceChanged(userID string, online bool) { f(userID, online) }

// Presence maps user identities to their live connections.
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]map[ConnID]*Client
	byConn map[ConnID]*Client
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[string]map[ConnID]*Client),
		byConn: make(map[ConnID]*Client),
	}
}

// Register adds client and reports whether its user just came online.
func (p *Presence) Register(client *Client) bool {
	userID := client.UserID()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byConn[client.ID]; exists {
		return false
	}
	conns, ok := p.byUser[userID]
	if !ok {
		conns = make(map[ConnID]*Client)
		p.byUser[userID] = conns
	}
	conns[client.ID] = client
	p.byConn[client.ID] = client
	return len(conns) == 1
}

// Deregister removes a connection and reports whether its user went offline.
// Unknown connections are ignored.
func (p *Presence) Deregister(connID ConnID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, ok := p.byConn[connID]
	if !ok {
		return false
	}
	delete(p.byConn, connID)

	userID := client.UserID()
	conns := p.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.byUser, userID)
		return true
	}
	return false
}

// IsOnline reports whether userID has at least one live connection.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// ConnectionsFor returns the connection ids of userID.
func (p *Presence) ConnectionsFor(userID string) []ConnID {
	p.mu.RLock()
	ids := lo.Keys(p.byUser[userID])
	p.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clients returns the live clients of userID.
func (p *Presence) Clients(userID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Values(p.byUser[userID])
}

// Client looks up a registered connection.
func (p *Presence) Client(connID ConnID) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byConn[connID]
	return c, ok
}

// OnlineUsers returns every user with a live connection, sorted.
func (p *Presence) OnlineUsers() []string {
	p.mu.RLock()
	users := lo.Keys(p.byUser)
	p.mu.RUnlock()
	sort.Strings(users)
	return users
}

// Count returns the number of registered connections.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byConn)
}
