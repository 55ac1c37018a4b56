package chat

import (
	"context"
	"maps"
	"sync"
)

//go:generate go run go.uber.org/mock/mockgen -source=unread.go -destination=mocks/mock_unread.go -package=mocks

// UnreadStore holds per (recipient, sender) pending-message counters.
// Implementations must serialize updates to a recipient's counters.
type UnreadStore interface {
	// Increment adds one to recipient's counter for sender and returns the new value.
	Increment(ctx context.Context, recipientID, senderID string) (int, error)
	Count(ctx context.Context, recipientID, senderID string) (int, error)
	// Counts returns every non-zero counter of recipient keyed by sender.
	Counts(ctx context.Context, recipientID string) (map[string]int, error)
	Reset(ctx context.Context, recipientID, senderID string) error
}

// MemoryUnread is the in-process UnreadStore.
type MemoryUnread struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

// NewMemoryUnread creates an empty store.
func NewMemoryUnread() *MemoryUnread {
	return &MemoryUnread{counts: make(map[string]map[string]int)}
}

var _ UnreadStore = (*MemoryUnread)(nil)

func (m *MemoryUnread) Increment(_ context.Context, recipientID, senderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySender, ok := m.counts[recipientID]
	if !ok {
		bySender = make(map[string]int)
		m.counts[recipientID] = bySender
	}
	bySender[senderID]++
	return bySender[senderID], nil
}

func (m *MemoryUnread) Count(_ context.Context, recipientID, senderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[recipientID][senderID], nil
}

func (m *MemoryUnread) Counts(_ context.Context, recipientID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.counts[recipientID]))
	maps.Copy(out, m.counts[recipientID])
	return out, nil
}

func (m *MemoryUnread) Reset(_ context.Context, recipientID, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySender, ok := m.counts[recipientID]
	if !ok {
		return nil
	}
	delete(bySender, senderID)
	if len(bySender) == 0 {
		delete(m.counts, recipientID)
	}
	return nil
}
