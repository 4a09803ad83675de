package console

import (
	"fmt"
	"log/slog"

	"github.com/zsprackett/agent-console/internal/events"
)

// Channel is the outbound half of the duplex channel. The session credential
// travels with the channel itself; callers never attach it to events.
type Channel interface {
	Emit(event string, payload any) error
}

// Binder joins the operator's room each time the channel connects.
type Binder struct {
	ch      Channel
	logger  *slog.Logger
	onError func(error)
}

// NewBinder returns a Binder that emits through ch. onError may be nil.
func NewBinder(ch Channel, logger *slog.Logger, onError func(error)) *Binder {
	return &Binder{ch: ch, logger: logger, onError: onError}
}

// Attach subscribes the binder to lc and returns the cancel function.
func (b *Binder) Attach(lc *Lifecycle) func() {
	return lc.Subscribe(b.Handle)
}

// Handle emits join_user_room when t lands in StateConnected. A failed emit
// is reported once and not retried: the channel claimed to be open.
func (b *Binder) Handle(t Transition) {
	if t.To != StateConnected {
		return
	}
	if err := b.ch.Emit(events.JoinUserRoom, nil); err != nil {
		err = fmt.Errorf("join user room: %w", err)
		b.logger.Error("binder: join failed", "err", err)
		if b.onError != nil {
			b.onError(err)
		}
		return
	}
	b.logger.Debug("binder: join requested")
}
