package webserver

import (
	"log/slog"
	"sync"
)

// rooms groups operator connections by user so hub events reach every
// console the user has open.
type rooms struct {
	mu      sync.Mutex
	members map[string]map[*client]struct{}
	logger  *slog.Logger
}

func newRooms(logger *slog.Logger) *rooms {
	return &rooms{members: make(map[string]map[*client]struct{}), logger: logger}
}

func (r *rooms) join(user string, c *client) {
	r.mu.Lock()
	m := r.members[user]
	if m == nil {
		m = make(map[*client]struct{})
		r.members[user] = m
	}
	m[c] = struct{}{}
	count := len(m)
	r.mu.Unlock()
	r.logger.Debug("webserver: room joined", "user", user, "client", c.id, "members", count)
}

func (r *rooms) leave(user string, c *client) {
	r.mu.Lock()
	if m := r.members[user]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(r.members, user)
		}
	}
	r.mu.Unlock()
}

func (r *rooms) size(user string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[user])
}

// broadcast queues event for every member of user's room. Slow members drop
// the frame rather than stall the sender.
func (r *rooms) broadcast(user, event string, payload any) {
	r.mu.Lock()
	targets := make([]*client, 0, len(r.members[user]))
	for c := range r.members[user] {
		targets = append(targets, c)
	}
	r.mu.Unlock()
	for _, c := range targets {
		if !c.emit(event, payload) {
			r.logger.Warn("webserver: dropped frame", "user", user, "client", c.id, "event", event)
		}
	}
}
