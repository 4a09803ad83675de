package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Home is the main screen: agent status bar, project status log and a key
// hint footer.
type Home struct {
	*tview.Flex
	status *tview.TextView
	log    *tview.TextView
	footer *tview.TextView

	onNew  func()
	onQuit func()
}

func NewHome() *Home {
	h := &Home{}

	h.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.status.SetBackgroundColor(ColorBackgroundPanel)

	h.log = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	h.log.SetBorder(true).
		SetTitle(" Project Status ").
		SetTitleAlign(tview.AlignLeft).
		SetBorderColor(ColorBorder)
	h.log.SetBackgroundColor(ColorBackground)

	h.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.footer.SetBackgroundColor(ColorBackgroundPanel)
	h.footer.SetText(
		"[green]n[-] new project  [green]↑↓[-] scroll  [green]g[-] newest  [green]?[-] help  [green]q[-] quit")

	h.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.status, 1, 0, false).
		AddItem(h.log, 0, 1, true).
		AddItem(h.footer, 1, 0, false)

	h.setupInput()
	return h
}

func (h *Home) SetCallbacks(onNew func(), onQuit func()) {
	h.onNew = onNew
	h.onQuit = onQuit
}

// StatusView is the status bar surface.
func (h *Home) StatusView() *tview.TextView { return h.status }

// LogView is the project status surface.
func (h *Home) LogView() *tview.TextView { return h.log }

func (h *Home) setupInput() {
	h.log.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'n':
			if h.onNew != nil {
				h.onNew()
			}
			return nil
		case 'q':
			if h.onQuit != nil {
				h.onQuit()
			}
			return nil
		case 'g':
			h.log.ScrollToBeginning()
			return nil
		case 'j':
			return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
		case 'k':
			return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
		}
		return event
	})
}
