package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Rooms tracks which connections are members of which room.
//
// Lock order is Rooms.mu then Client.mu, so a room's member set and the
// client's joined set always change together.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[ConnID]*Client
}

// NewRooms creates an empty tracker.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[ConnID]*Client)}
}

// Join adds client to roomID and reports whether it was not a member yet.
func (r *Rooms) Join(client *Client, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[ConnID]*Client)
		r.rooms[roomID] = members
	}
	if _, exists := members[client.ID]; exists {
		return false
	}
	members[client.ID] = client

	client.mu.Lock()
	client.joined[roomID] = struct{}{}
	client.mu.Unlock()
	return true
}

// Leave removes client from roomID. Leaving a room that was never joined is a no-op.
func (r *Rooms) Leave(client *Client, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	client.mu.Lock()
	delete(client.joined, roomID)
	client.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[client.ID]; !exists {
		return false
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// MembersOf returns a snapshot of the connections in roomID.
func (r *Rooms) MembersOf(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.rooms[roomID])
}

// IsMember reports whether connID is in roomID.
func (r *Rooms) IsMember(connID ConnID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][connID]
	return ok
}

// UserInRoom reports whether any connection of userID is in roomID.
func (r *Rooms) UserInRoom(userID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.rooms[roomID] {
		if c.UserID() == userID {
			return true
		}
	}
	return false
}

// Rooms returns every non-empty room, sorted.
func (r *Rooms) Rooms() []string {
	r.mu.RLock()
	ids := lo.Keys(r.rooms)
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
