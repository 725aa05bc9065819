package chat

import (
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing mark lives without renewal.
const DefaultTypingTTL = 2 * time.Second

// TypingExpiredFunc is invoked, outside the coordinator lock, when a
// mark times out on its own.
type TypingExpiredFunc func(conversationID, userID, username string)

type typingKey struct {
	conv string
	user string
}

type typingMark struct {
	username string
	timer    *time.Timer
}

// TypingCoordinator owns the ephemeral per-(conversation,user) typing
// marks. A mark is never persisted; absence means not typing. Each key
// has at most one timer: Start on an existing key cancels and replaces
// it, so rapid keystroke renewals can never stack timers.
type TypingCoordinator struct {
	mu       sync.Mutex
	ttl      time.Duration
	marks    map[typingKey]*typingMark
	onExpire TypingExpiredFunc
	closed   bool
}

func NewTypingCoordinator(ttl time.Duration, onExpire TypingExpiredFunc) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingCoordinator{
		ttl:      ttl,
		marks:    make(map[typingKey]*typingMark),
		onExpire: onExpire,
	}
}

// Start inserts or refreshes the mark and arms its expiry timer.
func (t *TypingCoordinator) Start(convID, userID, username string) {
	if convID == "" || userID == "" {
		return
	}
	key := typingKey{conv: convID, user: userID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if old := t.marks[key]; old != nil {
		old.timer.Stop()
	}
	mark := &typingMark{username: username}
	mark.timer = time.AfterFunc(t.ttl, func() { t.expire(key, mark) })
	t.marks[key] = mark
}

// Stop clears the mark immediately. It reports whether a mark was
// active; stopping a non-existent mark is a no-op.
func (t *TypingCoordinator) Stop(convID, userID string) bool {
	key := typingKey{conv: convID, user: userID}

	t.mu.Lock()
	defer t.mu.Unlock()
	mark := t.marks[key]
	if mark == nil {
		return false
	}
	mark.timer.Stop()
	delete(t.marks, key)
	return true
}

// IsTyping reports whether the mark is live.
func (t *TypingCoordinator) IsTyping(convID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marks[typingKey{conv: convID, user: userID}] != nil
}

// Close cancels every outstanding timer; no callbacks fire afterwards.
func (t *TypingCoordinator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, mark := range t.marks {
		mark.timer.Stop()
		delete(t.marks, key)
	}
}

func (t *TypingCoordinator) expire(key typingKey, mark *typingMark) {
	t.mu.Lock()
	// the mark may have been stopped or replaced between the timer
	// firing and this lock; only the current generation expires
	if t.closed || t.marks[key] != mark {
		t.mu.Unlock()
		return
	}
	delete(t.marks, key)
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb(key.conv, key.user, mark.username)
	}
}
