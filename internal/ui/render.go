package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/zsprackett/agent-console/internal/console"
	"github.com/zsprackett/agent-console/internal/ui/dialogs"
)

// ErrSurfaceMissing is returned when a widget the console renders into was
// never provided.
var ErrSurfaceMissing = errors.New("ui surface missing")

// Renderer pushes session state into tview widgets. All widget writes go
// through queue, which in the running app is Application.QueueUpdateDraw.
type Renderer struct {
	queue  func(func())
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	reported map[string]bool
}

func NewRenderer(queue func(func()), logger *slog.Logger) *Renderer {
	return &Renderer{
		queue:    queue,
		logger:   logger,
		now:      time.Now,
		reported: make(map[string]bool),
	}
}

// SetNow replaces the clock used for relative ages. Used in tests only.
func (r *Renderer) SetNow(fn func() time.Time) { r.now = fn }

// missing logs a missing surface the first time it is seen.
func (r *Renderer) missing(surface string) {
	r.mu.Lock()
	seen := r.reported[surface]
	r.reported[surface] = true
	r.mu.Unlock()
	if !seen {
		r.logger.Error("ui: surface missing, component disabled", "surface", surface)
	}
}

// StatusText renders the agent status line.
func StatusText(st console.AgentStatus, conn console.ConnState) string {
	icon, color := AgentIcon(st.Kind)
	return fmt.Sprintf(" %s%s %s[-]   %shub: %s[-]",
		tag(color), icon, tview.Escape(st.Label()), tag(ConnColor(conn)), conn)
}

// EntryLine renders one log entry as "[15:04:05] phase: message".
func EntryLine(e console.Entry) string {
	icon, color := PhaseIcon(e.Phase)
	line := fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), e.Phase, e.Message)
	suffix := ""
	if e.Origin == console.OriginLocal {
		suffix = tag(ColorTextMuted) + " (sent)[-]"
	}
	return fmt.Sprintf("%s%s %s[-]%s", tag(color), icon, tview.Escape(line), suffix)
}

// LogTitle summarises the log for the panel border.
func LogTitle(entries []console.Entry, now time.Time) string {
	if len(entries) == 0 {
		return " Project Status "
	}
	return fmt.Sprintf(" Project Status · %d · updated %s ",
		len(entries), humanize.RelTime(entries[0].Time, now, "ago", "from now"))
}

// BindStatus keeps tv showing the agent status and connection state. A nil
// tv is reported once and nothing is rendered.
func (r *Renderer) BindStatus(tv *tview.TextView, status *console.Value[console.AgentStatus], conn *console.Value[console.ConnState]) func() {
	if tv == nil {
		r.missing("status")
		return func() {}
	}
	draw := func() {
		text := StatusText(status.Get(), conn.Get())
		r.queue(func() { tv.SetText(text) })
	}
	cancelStatus := status.Subscribe(func(console.AgentStatus) { draw() })
	cancelConn := conn.Subscribe(func(console.ConnState) { draw() })
	draw()
	return func() {
		cancelStatus()
		cancelConn()
	}
}

// BindLog keeps tv showing the notification log, newest first. A nil tv is
// reported once and the log is not rendered.
func (r *Renderer) BindLog(tv *tview.TextView, log *console.NotificationLog) func() {
	if tv == nil {
		r.missing("log")
		return func() {}
	}
	draw := func() {
		entries := log.Snapshot()
		lines := make([]string, len(entries))
		for i, e := range entries {
			lines[i] = EntryLine(e)
		}
		text := strings.Join(lines, "\n")
		title := LogTitle(entries, r.now())
		r.queue(func() {
			tv.SetText(text)
			tv.SetTitle(title)
			tv.ScrollToBeginning()
		})
	}
	cancel := log.Subscribe(func(console.Entry) { draw() })
	draw()
	return cancel
}

// RefreshLogTitle redraws only the relative age in the log title.
func (r *Renderer) RefreshLogTitle(tv *tview.TextView, log *console.NotificationLog) {
	if tv == nil {
		return
	}
	title := LogTitle(log.Snapshot(), r.now())
	r.queue(func() { tv.SetTitle(title) })
}

// FormValues reads the project form. The free-text type is used when the
// dropdown is set to "other...".
func FormValues(form *tview.Form) (name, typ, base string, err error) {
	if form == nil {
		return "", "", "", ErrSurfaceMissing
	}
	nameField, ok1 := form.GetFormItemByLabel(dialogs.LabelProjectName).(*tview.InputField)
	typeDD, ok2 := form.GetFormItemByLabel(dialogs.LabelProjectType).(*tview.DropDown)
	baseField, ok3 := form.GetFormItemByLabel(dialogs.LabelBasePath).(*tview.InputField)
	if !ok1 || !ok2 || !ok3 {
		return "", "", "", fmt.Errorf("%w: project form fields", ErrSurfaceMissing)
	}
	_, typ = typeDD.GetCurrentOption()
	if typ == dialogs.OtherType {
		typ = ""
		if other, ok := form.GetFormItemByLabel(dialogs.LabelOtherType).(*tview.InputField); ok {
			typ = other.GetText()
		}
	}
	return nameField.GetText(), typ, baseField.GetText(), nil
}

// SubmitFunc sends one project request.
type SubmitFunc func(ctx context.Context, name, typ, base string) error

// ReadForm captures the project form's values. A missing form is reported
// once and every later read is refused.
func (r *Renderer) ReadForm(form *tview.Form) (name, typ, base string, err error) {
	name, typ, base, err = FormValues(form)
	if err != nil {
		r.missing("form")
	}
	return name, typ, base, err
}

// SubmitForm reads form and passes the values to submit.
func (r *Renderer) SubmitForm(ctx context.Context, form *tview.Form, submit SubmitFunc) error {
	name, typ, base, err := r.ReadForm(form)
	if err != nil {
		return err
	}
	return submit(ctx, name, typ, base)
}

// SubmitFormAsync reads form on the calling goroutine, which must be the one
// that owns the widgets, then runs submit with the captured values on a new
// goroutine and hands its result to done. A read error is returned directly
// and submit never runs.
func (r *Renderer) SubmitFormAsync(ctx context.Context, form *tview.Form, submit SubmitFunc, done func(error)) error {
	name, typ, base, err := r.ReadForm(form)
	if err != nil {
		return err
	}
	go func() {
		done(submit(ctx, name, typ, base))
	}()
	return nil
}
