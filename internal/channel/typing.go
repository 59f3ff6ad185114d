package channel

import (
	"sort"
	"sync"
	"time"
)

const defaultTypingTTL = 3 * time.Second

// TypingTracker keeps the transient "who is typing" state for the
// active conversation. An author expires a fixed window after their
// last renewed signal.
type TypingTracker struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[string]*typingEntry
	onChange func()
}

type typingEntry struct {
	name  string
	timer *time.Timer
}

// NewTypingTracker creates a tracker; onChange (may be nil) fires on
// every appearance and expiry.
func NewTypingTracker(ttl time.Duration, onChange func()) *TypingTracker {
	if ttl <= 0 {
		ttl = defaultTypingTTL
	}
	return &TypingTracker{ttl: ttl, entries: make(map[string]*typingEntry), onChange: onChange}
}

// Touch records a typing signal, renewing the expiry window.
func (t *TypingTracker) Touch(authorID, name string) {
	t.mu.Lock()
	if e, ok := t.entries[authorID]; ok {
		e.name = name
		e.timer.Reset(t.ttl)
		t.mu.Unlock()
		return
	}
	t.entries[authorID] = &typingEntry{
		name: name,
		timer: time.AfterFunc(t.ttl, func() {
			t.expire(authorID)
		}),
	}
	t.mu.Unlock()
	t.notify()
}

func (t *TypingTracker) expire(authorID string) {
	t.mu.Lock()
	_, ok := t.entries[authorID]
	delete(t.entries, authorID)
	t.mu.Unlock()
	if ok {
		t.notify()
	}
}

// Active returns the display names of currently typing authors.
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	names := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		names = append(names, e.name)
	}
	t.mu.Unlock()
	sort.Strings(names)
	return names
}

// Reset drops all entries, stopping their timers. Called on
// conversation switch.
func (t *TypingTracker) Reset() {
	t.mu.Lock()
	for id, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, id)
	}
	t.mu.Unlock()
}

func (t *TypingTracker) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}
