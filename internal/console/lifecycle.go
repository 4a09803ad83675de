package console

import "log/slog"

// ConnState is the state of the duplex channel as seen by the session.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Transition is published for every lifecycle signal, including ones that
// leave the state unchanged. Detail carries the close reason or failure cause.
type Transition struct {
	From   ConnState
	To     ConnState
	Detail string
}

// canonical reports whether from->to is part of the ordered lifecycle:
// disconnected->connecting->connected, connected->disconnected or error,
// error->connecting.
func canonical(from, to ConnState) bool {
	switch from {
	case StateDisconnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected
	case StateConnected:
		return to == StateDisconnected || to == StateError
	case StateError:
		return to == StateConnecting
	}
	return false
}

// Lifecycle folds raw channel signals into a single ConnState. The state
// starts as connecting: nothing has opened yet.
type Lifecycle struct {
	state  *Value[ConnState]
	trans  *Value[Transition]
	logger *slog.Logger
}

// NewLifecycle returns a Lifecycle in the connecting state.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		state:  NewValue(StateConnecting),
		trans:  NewValue(Transition{From: StateConnecting, To: StateConnecting}),
		logger: logger,
	}
}

// State returns the current connection state.
func (l *Lifecycle) State() ConnState {
	return l.state.Get()
}

// StateValue exposes the state cell for read-and-subscribe consumers.
func (l *Lifecycle) StateValue() *Value[ConnState] {
	return l.state
}

// Subscribe registers fn for every transition.
func (l *Lifecycle) Subscribe(fn func(Transition)) func() {
	return l.trans.Subscribe(fn)
}

// Opened records that the channel is open.
func (l *Lifecycle) Opened() {
	l.move(StateConnected, "")
}

// Closed records that the channel closed, with an optional reason.
func (l *Lifecycle) Closed(reason string) {
	l.move(StateDisconnected, reason)
}

// Failed records a channel failure, with an optional cause.
func (l *Lifecycle) Failed(cause string) {
	l.move(StateError, cause)
}

// Retrying records that the transport is dialing again.
func (l *Lifecycle) Retrying() {
	l.move(StateConnecting, "")
}

func (l *Lifecycle) move(to ConnState, detail string) {
	from := l.state.Get()
	if from != to && !canonical(from, to) {
		l.logger.Warn("lifecycle: out of order transition",
			"from", from.String(),
			"to", to.String(),
		)
	}
	l.state.Set(to)
	l.logger.Debug("lifecycle: transition", "from", from.String(), "to", to.String(), "detail", detail)
	l.trans.Set(Transition{From: from, To: to, Detail: detail})
}
