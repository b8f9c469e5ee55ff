package events

import "sync"

// Log is the append-only, in-memory event log.
//
// The log index is dense: the event at position i is the (i+1)th event
// published. Appended events are never mutated or removed; subscribers
// read arbitrary prefixes concurrently with appends.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{events: make([]Event, 0, 64)}
}

// Append adds an event to the end of the log.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// At returns the event at position i.
// ok is false when i is out of range.
func (l *Log) At(i int) (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.events) {
		return Event{}, false
	}
	return l.events[i], true
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Snapshot returns a copy of the log's current contents.
func (l *Log) Snapshot() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
