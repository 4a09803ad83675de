package console

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/zsprackett/agent-console/internal/events"
)

// ErrSessionClosed is returned by Submit once Run has exited.
var ErrSessionClosed = errors.New("session closed")

type inboundKind int

const (
	inOpened inboundKind = iota
	inClosed
	inFailed
	inRetrying
	inFrame
	inSubmit
)

type inbound struct {
	kind   inboundKind
	detail string
	name   string
	data   json.RawMessage
	req    [3]string
	reply  chan error
}

// Session is one operator's view of the hub. Every input (lifecycle
// signals, hub events, form submissions) goes through one queue drained by
// Run, so the state below is only ever mutated from that goroutine.
type Session struct {
	lifecycle *Lifecycle
	binder    *Binder
	projector *Projector
	log       *NotificationLog
	submitter *Submitter
	lastErr   *Value[error]

	inbound chan inbound
	done    chan struct{}
	now     func() time.Time
	logger  *slog.Logger
}

// NewSession wires the core components around ch. The projector subscribes
// before the binder, so a reconnect updates the status before joining.
func NewSession(ch Channel, logger *slog.Logger) *Session {
	s := &Session{
		lifecycle: NewLifecycle(logger),
		projector: NewProjector(),
		log:       NewNotificationLog(),
		lastErr:   NewValue[error](nil),
		inbound:   make(chan inbound, 64),
		done:      make(chan struct{}),
		now:       time.Now,
		logger:    logger,
	}
	s.binder = NewBinder(ch, logger, s.lastErr.Set)
	s.submitter = NewSubmitter(ch, s.log, logger)
	s.projector.Attach(s.lifecycle)
	s.binder.Attach(s.lifecycle)
	return s
}

// SetNow replaces the clock used for log timestamps. Used in tests only.
func (s *Session) SetNow(fn func() time.Time) {
	s.now = fn
	s.submitter.SetNow(fn)
}

// Connection exposes the connection state.
func (s *Session) Connection() *Value[ConnState] { return s.lifecycle.StateValue() }

// AgentStatus exposes the projected agent status.
func (s *Session) AgentStatus() *Value[AgentStatus] { return s.projector.Status() }

// Log exposes the notification log.
func (s *Session) Log() *NotificationLog { return s.log }

// LastError holds the most recent reported wiring error, if any.
func (s *Session) LastError() *Value[error] { return s.lastErr }

// Run drains the queue until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-s.inbound:
			s.dispatch(in)
		}
	}
}

func (s *Session) dispatch(in inbound) {
	switch in.kind {
	case inOpened:
		s.lifecycle.Opened()
	case inClosed:
		s.lifecycle.Closed(in.detail)
	case inFailed:
		s.lifecycle.Failed(in.detail)
	case inRetrying:
		s.lifecycle.Retrying()
	case inFrame:
		s.handleFrame(in.name, in.data)
	case inSubmit:
		in.reply <- s.submitter.Submit(in.req[0], in.req[1], in.req[2])
	}
}

func (s *Session) handleFrame(name string, data json.RawMessage) {
	switch name {
	case events.AgentStatus:
		var msg events.StatusPayload
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("session: malformed agent status", "err", err)
			msg = events.StatusPayload{Status: string(AgentUnknown), Message: "Unknown status"}
		}
		s.projector.OnAgentStatus(msg)
	case events.ProjectStatus:
		var msg events.StatusPayload
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("session: malformed project status", "err", err)
			msg = events.StatusPayload{Status: "unknown", Message: string(data)}
		}
		s.log.Append(Entry{
			Time:    s.now(),
			Phase:   msg.Status,
			Message: msg.Message,
			Origin:  OriginServer,
		})
	default:
		s.logger.Debug("session: ignoring event", "event", name)
	}
}

func (s *Session) enqueue(in inbound) bool {
	select {
	case s.inbound <- in:
		return true
	case <-s.done:
		return false
	}
}

// OnOpen implements the transport handler.
func (s *Session) OnOpen() { s.enqueue(inbound{kind: inOpened}) }

// OnClose implements the transport handler.
func (s *Session) OnClose(reason string) { s.enqueue(inbound{kind: inClosed, detail: reason}) }

// OnError implements the transport handler.
func (s *Session) OnError(cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	s.enqueue(inbound{kind: inFailed, detail: detail})
}

// OnRetry implements the transport handler.
func (s *Session) OnRetry() { s.enqueue(inbound{kind: inRetrying}) }

// OnEvent implements the transport handler.
func (s *Session) OnEvent(name string, data json.RawMessage) {
	s.enqueue(inbound{kind: inFrame, name: name, data: data})
}

// Submit queues a form submission and waits for its synchronous outcome:
// nil, a *ValidationError, or a dispatch error. Feedback from the hub
// arrives later through Log.
func (s *Session) Submit(ctx context.Context, projectName, projectType, basePath string) error {
	reply := make(chan error, 1)
	in := inbound{kind: inSubmit, req: [3]string{projectName, projectType, basePath}, reply: reply}
	select {
	case s.inbound <- in:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
