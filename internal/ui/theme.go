package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/agent-console/internal/console"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// Status icons
const (
	IconConnected = "●"
	IconPending   = "◐"
	IconIdle      = "○"
	IconSuccess   = "✓"
	IconError     = "✗"
)

// PhaseIcon styles a project status phase. Phases are an open set; anything
// unrecognised is drawn muted.
func PhaseIcon(phase string) (string, tcell.Color) {
	switch phase {
	case "success":
		return IconSuccess, ColorSuccess
	case "error":
		return IconError, ColorError
	case "pending":
		return IconPending, ColorWarning
	default:
		return IconIdle, ColorTextMuted
	}
}

// AgentIcon styles the agent status indicator.
func AgentIcon(kind console.AgentKind) (string, tcell.Color) {
	switch kind {
	case console.AgentConnected:
		return IconConnected, ColorSuccess
	case console.AgentConnecting:
		return "⟳", ColorAccent
	case console.AgentDisconnected:
		return IconIdle, ColorWarning
	case console.AgentError:
		return IconError, ColorError
	default:
		return IconIdle, ColorTextMuted
	}
}

// ConnColor colors the hub connection state shown beside the agent status.
func ConnColor(state console.ConnState) tcell.Color {
	switch state {
	case console.StateConnected:
		return ColorSuccess
	case console.StateConnecting:
		return ColorAccent
	case console.StateError:
		return ColorError
	default:
		return ColorWarning
	}
}

// tag returns a tview color tag for c.
func tag(c tcell.Color) string {
	return "[" + c.CSS() + "]"
}
