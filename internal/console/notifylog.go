package console

import (
	"sync"
	"time"
)

// Origin records who produced a log entry.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginServer Origin = "server"
)

// Entry is one project status line. Phase is an opaque label; the log does
// not validate it.
type Entry struct {
	Time    time.Time
	Phase   string
	Message string
	Origin  Origin
}

// NotificationLog is an append-only record, newest first. Entries are never
// merged, even when a local entry and a later server entry describe the same
// request: the protocol carries no correlation id.
type NotificationLog struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int
	subs    map[int]func(Entry)
}

// NewNotificationLog returns an empty log.
func NewNotificationLog() *NotificationLog {
	return &NotificationLog{subs: make(map[int]func(Entry))}
}

// Append inserts e at the head and notifies subscribers.
func (l *NotificationLog) Append(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e
	subs := make([]func(Entry), 0, len(l.subs))
	for i := 0; i < l.nextID; i++ {
		if fn, ok := l.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	l.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// Snapshot returns a copy of every entry, newest first.
func (l *NotificationLog) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *NotificationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe registers fn for every append and returns its cancel function.
func (l *NotificationLog) Subscribe(fn func(Entry)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}
