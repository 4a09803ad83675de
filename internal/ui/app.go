package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/agent-console/internal/console"
	"github.com/zsprackett/agent-console/internal/ui/dialogs"
)

// Options configures the console app.
type Options struct {
	ProjectTypes []string
	DefaultBase  string
}

type App struct {
	tapp   *tview.Application
	pages  *tview.Pages
	home   *Home
	sess   *console.Session
	render *Renderer
	opts   Options
	logger *slog.Logger

	ctx context.Context
}

func NewApp(sess *console.Session, opts Options, logger *slog.Logger) *App {
	a := &App{
		sess:   sess,
		opts:   opts,
		logger: logger,
		ctx:    context.Background(),
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.home = NewHome()
	a.render = NewRenderer(func(f func()) { a.tapp.QueueUpdateDraw(f) }, logger)

	a.pages.AddPage("home", a.home, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' && !a.pages.HasPage("new-project") {
			a.showHelp()
			return nil
		}
		return event
	})

	a.home.SetCallbacks(a.onNew, func() { a.tapp.Stop() })
	return a
}

// Run shows the console until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx

	defer a.render.BindStatus(a.home.StatusView(), a.sess.AgentStatus(), a.sess.Connection())()
	defer a.render.BindLog(a.home.LogView(), a.sess.Log())()
	defer a.sess.LastError().Subscribe(func(err error) {
		if err == nil {
			return
		}
		a.tapp.QueueUpdateDraw(func() {
			a.showError(fmt.Sprintf("Could not join your room on the hub:\n%v", err))
		})
	})()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				a.tapp.Stop()
				return
			case <-ticker.C:
				a.render.RefreshLogTitle(a.home.LogView(), a.sess.Log())
			}
		}
	}()

	return a.tapp.Run()
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	front, item := a.pages.GetFrontPage()
	switch {
	case front == "home":
		a.tapp.SetFocus(a.home.LogView())
	case item != nil:
		a.tapp.SetFocus(item)
	}
}

func (a *App) showHelp() {
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 64, 24)
}

func (a *App) onNew() {
	form := dialogs.NewProjectDialog(a.opts.ProjectTypes, a.opts.DefaultBase,
		func(form *tview.Form) {
			// Submit waits on the session loop, which may be mid-write to the
			// hub, so only the captured values leave the draw goroutine.
			err := a.render.SubmitFormAsync(a.ctx, form, a.sess.Submit, func(err error) {
				a.tapp.QueueUpdateDraw(func() { a.afterSubmit(err) })
			})
			if err != nil {
				a.afterSubmit(err)
			}
		},
		func() { a.closeDialog("new-project") },
	)
	a.showDialog("new-project", form, 60, 13)
}

func (a *App) afterSubmit(err error) {
	switch {
	case err == nil:
		a.closeDialog("new-project")
	case errors.Is(err, console.ErrValidation):
		a.showError("Please fill in all fields.")
	case errors.Is(err, ErrSurfaceMissing):
		a.closeDialog("new-project")
		a.showError("The project form is unavailable.")
	default:
		a.logger.Warn("ui: submit failed", "err", err)
		a.closeDialog("new-project")
		a.showError(fmt.Sprintf("Request not sent:\n%v", err))
	}
}

func (a *App) showError(msg string) {
	modal := dialogs.AlertDialog(msg, func() {
		a.closeDialog("error")
	})
	a.pages.AddPage("error", modal, true, true)
	a.tapp.SetFocus(modal)
}
