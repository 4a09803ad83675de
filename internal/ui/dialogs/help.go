package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Console Keys[-]

  [green]n[-]        New project
  [green]↑/k[-]      Scroll log up
  [green]↓/j[-]      Scroll log down
  [green]g[-]        Jump to newest
  [green]?[-]        This help
  [green]q[-]        Quit

[yellow]New Project Form[-]

  [green]Tab[-]      Next field
  [green]Enter[-]    Activate button
  [green]Escape[-]   Cancel

The status bar shows the agent status reported by the hub
and the state of the hub connection. Requests you send are
marked [gray](sent)[-]; results arrive from the agent.

Press [green]Escape[-] or [green]?[-] to close.`

func HelpDialog(onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(helpText)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
