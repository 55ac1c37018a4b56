package chat

import (
	"sync"
	"time"
)

// EventClass groups inbound events that share a rate-limit budget.
type EventClass int

const (
	ClassMessage EventClass = iota
	ClassRoomOp
	ClassTyping
)

// String returns the string representation of EventClass
func (c EventClass) String() string {
	switch c {
	case ClassMessage:
		return "message"
	case ClassRoomOp:
		return "room-operation"
	case ClassTyping:
		return "typing"
	default:
		return "unknown"
	}
}

// Budget is the fixed-window allowance of one event class.
type Budget struct {
	Points int
	Window time.Duration
	Block  time.Duration
}

// Budgets holds one budget per event class.
type Budgets map[EventClass]Budget

// DefaultBudgets tolerates typing bursts but not message floods.
func DefaultBudgets() Budgets {
	return Budgets{
		ClassMessage: {Points: 10, Window: time.Minute, Block: time.Minute},
		ClassRoomOp:  {Points: 5, Window: time.Minute, Block: 30 * time.Second},
		ClassTyping:  {Points: 20, Window: time.Minute, Block: 10 * time.Second},
	}
}

// Decision is the outcome of a single Consume call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type limitKey struct {
	userID string
	class  EventClass
}

type limitState struct {
	pointsRemaining int
	windowResetAt   time.Time
	blockedUntil    time.Time
}

// Limiter enforces a points-per-window budget per (user, event class).
type Limiter struct {
	budgets Budgets
	now     func() time.Time

	mu     sync.Mutex
	states map[limitKey]*limitState
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter. Classes missing from budgets use the defaults.
func NewLimiter(budgets Budgets, opts ...LimiterOption) *Limiter {
	merged := DefaultBudgets()
	for class, b := range budgets {
		merged[class] = b
	}
	l := &Limiter{
		budgets: merged,
		now:     time.Now,
		states:  make(map[limitKey]*limitState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Budget returns the configured budget of class.
func (l *Limiter) Budget(class EventClass) Budget {
	return l.budgets[class]
}

// Consume spends one point of userID's budget for class. A rejection is a
// regular result, never an error.
func (l *Limiter) Consume(userID string, class EventClass) Decision {
	budget := l.budgets[class]
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := limitKey{userID: userID, class: class}
	st, ok := l.states[key]
	if !ok {
		st = &limitState{pointsRemaining: budget.Points, windowResetAt: now.Add(budget.Window)}
		l.states[key] = st
	}

	// An active block wins over a window reset.
	if st.blockedUntil.After(now) {
		return Decision{RetryAfter: st.blockedUntil.Sub(now)}
	}

	// A served block replaces the rest of the window it was imposed in.
	if !now.Before(st.windowResetAt) || !st.blockedUntil.IsZero() {
		st.pointsRemaining = budget.Points
		st.windowResetAt = now.Add(budget.Window)
		st.blockedUntil = time.Time{}
	}

	if st.pointsRemaining > 0 {
		st.pointsRemaining--
		return Decision{Allowed: true, Remaining: st.pointsRemaining}
	}

	if budget.Block > 0 {
		st.blockedUntil = now.Add(budget.Block)
		return Decision{RetryAfter: budget.Block}
	}
	return Decision{RetryAfter: st.windowResetAt.Sub(now)}
}

// Reset forgets every budget of userID.
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.states {
		if key.userID == userID {
			delete(l.states, key)
		}
	}
}

// Prune drops states whose window and block have both passed and returns
// how many were removed.
func (l *Limiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, st := range l.states {
		if !now.Before(st.windowResetAt) && !st.blockedUntil.After(now) {
			delete(l.states, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked (user, class) states.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}
