package state

import (
	"sync"
	"time"
)

// Tracker remembers the arrival time of the newest message seen in one
// mailbox. It lives in memory only, so after a restart everything older
// than the start time counts as already seen.
type Tracker struct {
	mu     sync.Mutex
	latest time.Time
}

// NewTracker creates a tracker that treats mail up to start as seen.
func NewTracker(start time.Time) *Tracker {
	return &Tracker{latest: start}
}

// Latest returns the remembered arrival time.
func (t *Tracker) Latest() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// Advance records date if it is strictly after the remembered time and
// reports whether it did. The remembered time never moves backwards.
func (t *Tracker) Advance(date time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !date.After(t.latest) {
		return false
	}
	t.latest = date
	return true
}
