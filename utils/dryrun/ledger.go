// Package dryrun records the mutating actions a run would have performed.
package dryrun

import (
	"sync"
	"time"
)

// Entry describes one action that was recorded instead of executed.
type Entry struct {
	Phase    string    `json:"phase"`
	Action   string    `json:"action"`
	Detail   string    `json:"detail,omitempty"`
	Recorded time.Time `json:"recorded"`
}

// Ledger is an append-only list of Entry values. There is no removal API.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// New constructs an empty Ledger.
func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Record appends an entry. Detail may be empty.
func (l *Ledger) Record(phase, action, detail string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.entries = append(l.entries, Entry{
		Phase:    phase,
		Action:   action,
		Detail:   detail,
		Recorded: now(),
	})
}

// Entries returns a copy of every recorded entry in order.
func (l *Ledger) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of recorded entries.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
