package chat

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

const directRoomPrefix = "dm:"

// Directory answers who the intended participants of a room are, so unread
// counters can be kept for participants that are not currently in it.
type Directory interface {
	// Participants returns the user ids of roomID, or nil when unknown.
	Participants(roomID string) []string
}

// DirectRoomID derives the room id of a conversation between two users.
// The result does not depend on argument order.
func DirectRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return directRoomPrefix + a + ":" + b
}

// ParseDirectRoom extracts both participants of a direct room id.
// User ids never contain ':' so the split is unambiguous.
func ParseDirectRoom(roomID string) (string, string, bool) {
	rest, ok := strings.CutPrefix(roomID, directRoomPrefix)
	if !ok {
		return "", "", false
	}
	a, b, ok := strings.Cut(rest, ":")
	if !ok || a == "" || b == "" || strings.Contains(b, ":") {
		return "", "", false
	}
	return a, b, true
}

// StaticDirectory keeps explicit participant lists for group rooms and
// derives the pair for direct rooms.
type StaticDirectory struct {
	mu     sync.RWMutex
	groups map[string][]string
}

// NewStaticDirectory creates an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{groups: make(map[string][]string)}
}

var _ Directory = (*StaticDirectory)(nil)

// SetParticipants replaces the participant list of a group room.
// An empty list removes the room.
func (d *StaticDirectory) SetParticipants(roomID string, userIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(userIDs) == 0 {
		delete(d.groups, roomID)
		return
	}
	d.groups[roomID] = lo.Uniq(userIDs)
}

func (d *StaticDirectory) Participants(roomID string) []string {
	d.mu.RLock()
	group, ok := d.groups[roomID]
	d.mu.RUnlock()
	if ok {
		return slices.Clone(group)
	}
	if a, b, ok := ParseDirectRoom(roomID); ok {
		return []string{a, b}
	}
	return nil
}

// mayJoin reports whether userID is allowed in a room with the given
// participants. Rooms without a known list are open.
func mayJoin(participants []string, userID string) bool {
	return participants == nil || slices.Contains(participants, userID)
}
