package console

import (
	"strings"

	"github.com/zsprackett/agent-console/internal/events"
)

// AgentKind classifies the agent as displayed to the operator.
type AgentKind string

const (
	AgentConnected    AgentKind = "connected"
	AgentConnecting   AgentKind = "connecting"
	AgentDisconnected AgentKind = "disconnected"
	AgentError        AgentKind = "error"
	AgentUnknown      AgentKind = "unknown"
)

// ParseAgentKind maps a hub status label onto an AgentKind. Unrecognised
// labels become AgentUnknown.
func ParseAgentKind(status string) AgentKind {
	switch AgentKind(strings.ToLower(strings.TrimSpace(status))) {
	case AgentConnected:
		return AgentConnected
	case AgentConnecting:
		return AgentConnecting
	case AgentDisconnected:
		return AgentDisconnected
	case AgentError:
		return AgentError
	default:
		return AgentUnknown
	}
}

// AgentStatus is the single displayed status of the remote agent.
type AgentStatus struct {
	Kind    AgentKind
	Message string
}

// Label is the text shown in the status indicator.
func (s AgentStatus) Label() string {
	return "Agent Status: " + s.Message
}

// Projector keeps the last-write-wins AgentStatus. It does no I/O.
type Projector struct {
	status *Value[AgentStatus]
}

// NewProjector returns a Projector showing the connecting status.
func NewProjector() *Projector {
	return &Projector{status: NewValue(AgentStatus{Kind: AgentConnecting, Message: "Checking..."})}
}

// Status exposes the status cell.
func (p *Projector) Status() *Value[AgentStatus] {
	return p.status
}

// Attach subscribes the projector to lc.
func (p *Projector) Attach(lc *Lifecycle) func() {
	return lc.Subscribe(p.OnTransition)
}

// OnTransition projects a connection transition. An open channel says
// nothing about the agent yet, so connected shows the checking status
// until the hub reports.
func (p *Projector) OnTransition(t Transition) {
	switch t.To {
	case StateConnecting, StateConnected:
		p.status.Set(AgentStatus{Kind: AgentConnecting, Message: "Checking..."})
	case StateDisconnected:
		p.status.Set(AgentStatus{Kind: AgentDisconnected, Message: "Server Disconnected"})
	case StateError:
		p.status.Set(AgentStatus{Kind: AgentError, Message: "Connection Error"})
	}
}

// OnAgentStatus trusts the hub's classification verbatim.
func (p *Projector) OnAgentStatus(msg events.StatusPayload) {
	p.status.Set(AgentStatus{Kind: ParseAgentKind(msg.Status), Message: msg.Message})
}
