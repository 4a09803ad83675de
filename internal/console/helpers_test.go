package console_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type emitted struct {
	event   string
	payload any
}

// captureChannel records every emit. err, when set, is returned instead.
type captureChannel struct {
	mu   sync.Mutex
	sent []emitted
	err  error
}

func (c *captureChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, emitted{event: event, payload: payload})
	return nil
}

func (c *captureChannel) events() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]emitted, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *captureChannel) count(event string) int {
	n := 0
	for _, e := range c.events() {
		if e.event == event {
			n++
		}
	}
	return n
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
