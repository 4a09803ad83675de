package agent_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zsprackett/agent-console/internal/agent"
	"github.com/zsprackett/agent-console/internal/events"
	"github.com/zsprackett/agent-console/internal/git"
	"github.com/zsprackett/agent-console/internal/tmux"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type emitted struct {
	event   string
	payload any
}

type captureEmitter struct {
	mu   sync.Mutex
	sent []emitted
}

func (c *captureEmitter) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, emitted{event, payload})
	return nil
}

func (c *captureEmitter) last(t *testing.T) emitted {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("nothing emitted")
	}
	return c.sent[len(c.sent)-1]
}

func newAgent(t *testing.T, gitInit bool) (*agent.Agent, *captureEmitter) {
	t.Helper()
	ch := &captureEmitter{}
	a, err := agent.New(agent.Config{
		UserID:     "alice",
		AgentToken: "tok",
		BaseDir:    t.TempDir(),
		GitInit:    gitInit,
	}, ch, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return a, ch
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := agent.New(agent.Config{BaseDir: t.TempDir()}, &captureEmitter{}, discardLogger())
	if err == nil {
		t.Error("expected error without user id and token")
	}
}

func TestNewCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "dev")
	_, err := agent.New(agent.Config{UserID: "alice", AgentToken: "tok", BaseDir: base}, &captureEmitter{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if st, err := os.Stat(base); err != nil || !st.IsDir() {
		t.Errorf("base dir not created: %v", err)
	}
}

func TestTypes(t *testing.T) {
	got := agent.Types()
	if len(got) != 2 || got[0] != "node-simple" || got[1] != "python-basic" {
		t.Errorf("got %v", got)
	}
}

func TestCreateProject_PythonBasic(t *testing.T) {
	a, _ := newAgent(t, false)
	dir, err := a.CreateProject("demo", "python-basic", a.BaseDir())
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if dir != filepath.Join(a.BaseDir(), "demo") {
		t.Errorf("dir: got %q", dir)
	}
	if got := readFile(t, filepath.Join(dir, "main.py")); got != "# Basic Python Project\n\nprint('Hello, World!')\n" {
		t.Errorf("main.py: %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "requirements.txt")); !strings.HasPrefix(got, "# Add Python dependencies") {
		t.Errorf("requirements.txt: %q", got)
	}
}

func TestCreateProject_NodeSimple(t *testing.T) {
	a, _ := newAgent(t, false)
	dir, err := a.CreateProject("web-app", "node-simple", a.BaseDir())
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	var pkg map[string]string
	if err := json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "package.json"))), &pkg); err != nil {
		t.Fatalf("package.json is not valid JSON: %v", err)
	}
	if pkg["name"] != "web-app" || pkg["main"] != "index.js" {
		t.Errorf("package.json: %v", pkg)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.js")); err != nil {
		t.Error("expected index.js")
	}
}

func TestCreateProject_UnknownTypeCreatesDirectoryOnly(t *testing.T) {
	a, _ := newAgent(t, false)
	dir, err := a.CreateProject("plain", "rust-cli", a.BaseDir())
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty directory, got %d entries", len(entries))
	}
}

func TestCreateProject_Subdirectory(t *testing.T) {
	a, _ := newAgent(t, false)
	sub := filepath.Join(a.BaseDir(), "clients", "acme")
	dir, err := a.CreateProject("demo", "python-basic", sub)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if dir != filepath.Join(sub, "demo") {
		t.Errorf("dir: got %q", dir)
	}
}

func TestCreateProject_OutsideBase(t *testing.T) {
	a, _ := newAgent(t, false)
	for _, base := range []string{t.TempDir(), filepath.Join(a.BaseDir(), ".."), "/"} {
		_, err := a.CreateProject("demo", "python-basic", base)
		if !errors.Is(err, agent.ErrOutsideBase) {
			t.Errorf("%s: expected ErrOutsideBase, got %v", base, err)
		}
	}
}

func TestCreateProject_SymlinkEscape(t *testing.T) {
	a, _ := newAgent(t, false)
	outside := t.TempDir()
	link := filepath.Join(a.BaseDir(), "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink: %v", err)
	}
	_, err := a.CreateProject("demo", "python-basic", link)
	if !errors.Is(err, agent.ErrOutsideBase) {
		t.Errorf("expected ErrOutsideBase, got %v", err)
	}
}

func TestCreateProject_Exists(t *testing.T) {
	a, _ := newAgent(t, false)
	os.Mkdir(filepath.Join(a.BaseDir(), "demo"), 0755)
	_, err := a.CreateProject("demo", "python-basic", a.BaseDir())
	if !errors.Is(err, agent.ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestCreateProject_InvalidInput(t *testing.T) {
	a, _ := newAgent(t, false)
	cases := []struct {
		name, typ, base string
		want            error
	}{
		{"", "python-basic", a.BaseDir(), agent.ErrMissingParams},
		{"demo", "", a.BaseDir(), agent.ErrMissingParams},
		{"demo", "python-basic", "", agent.ErrMissingParams},
		{"../escape", "python-basic", a.BaseDir(), agent.ErrInvalidName},
		{"..", "python-basic", a.BaseDir(), agent.ErrInvalidName},
		{"a/b", "python-basic", a.BaseDir(), agent.ErrInvalidName},
		{".hidden", "python-basic", a.BaseDir(), agent.ErrInvalidName},
		{" padded ", "python-basic", a.BaseDir(), agent.ErrInvalidName},
	}
	for _, c := range cases {
		_, err := a.CreateProject(c.name, c.typ, c.base)
		if !errors.Is(err, c.want) {
			t.Errorf("%q/%q/%q: got %v want %v", c.name, c.typ, c.base, err, c.want)
		}
	}
}

func TestCreateProject_DotsInsideName(t *testing.T) {
	a, _ := newAgent(t, false)
	dir, err := a.CreateProject("v1..2", "python-basic", a.BaseDir())
	if err != nil {
		t.Fatalf("name with inner dots should be accepted: %v", err)
	}
	if filepath.Dir(dir) != a.BaseDir() || filepath.Base(dir) != "v1..2" {
		t.Errorf("got %s", dir)
	}
}

func TestCreateProject_GitInit(t *testing.T) {
	if !git.Available() {
		t.Skip("git not installed")
	}
	a, _ := newAgent(t, true)
	dir, err := a.CreateProject("demo", "python-basic", a.BaseDir())
	if err != nil {
		t.Fatal(err)
	}
	if !git.IsGitRepo(dir) {
		t.Error("expected the project to be a git repository")
	}
}

func TestCreateProject_TmuxSessionFailureIsNotFatal(t *testing.T) {
	ch := &captureEmitter{}
	a, err := agent.New(agent.Config{
		UserID:      "alice",
		AgentToken:  "tok",
		BaseDir:     t.TempDir(),
		TmuxSession: true,
	}, ch, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	name := "tmux-" + strings.ToLower(filepath.Base(t.TempDir()))
	t.Cleanup(func() { tmux.KillSession(tmux.SessionName(name)) })

	dir, err := a.CreateProject(name, "node-simple", a.BaseDir())
	if err != nil {
		t.Fatalf("project creation must succeed whether or not tmux is usable: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		t.Error(err)
	}
}

func TestExecute_Messages(t *testing.T) {
	a, _ := newAgent(t, false)
	os.Mkdir(filepath.Join(a.BaseDir(), "taken"), 0755)

	cases := []struct {
		cmd        events.CommandPayload
		wantStatus string
		wantPrefix string
	}{
		{
			events.CommandPayload{Command: "create_project", Payload: events.ProjectPayload{ProjectName: "ok", ProjectType: "python-basic", BasePath: a.BaseDir()}},
			"success", "Project ok created successfully at " + filepath.Join(a.BaseDir(), "ok"),
		},
		{
			events.CommandPayload{Command: "create_project", Payload: events.ProjectPayload{ProjectName: "x", ProjectType: "python-basic", BasePath: "/"}},
			"error", "Security Error: Requested path '/' is outside the allowed base directory",
		},
		{
			events.CommandPayload{Command: "create_project", Payload: events.ProjectPayload{ProjectName: "x"}},
			"error", "Input Error: Missing required parameters in payload.",
		},
		{
			events.CommandPayload{Command: "create_project", Payload: events.ProjectPayload{ProjectName: "taken", ProjectType: "python-basic", BasePath: a.BaseDir()}},
			"error", "Failed to create project: directory already exists",
		},
		{
			events.CommandPayload{Command: "rm -rf"},
			"error", "Unknown command: rm -rf",
		},
	}
	for _, c := range cases {
		got := a.Execute(c.cmd)
		if got.Status != c.wantStatus || !strings.HasPrefix(got.Message, c.wantPrefix) {
			t.Errorf("%+v: got %+v", c.cmd, got)
		}
	}
}

func TestOnOpenAuthenticates(t *testing.T) {
	a, ch := newAgent(t, false)
	a.OnOpen()
	got := ch.last(t)
	if got.event != events.AuthenticateAgent {
		t.Fatalf("event: got %q", got.event)
	}
	p := got.payload.(events.AuthenticateAgentPayload)
	if p.Token != "tok" || p.UserID != "alice" {
		t.Errorf("payload: %+v", p)
	}
}

func TestOnEventRespondsToCommand(t *testing.T) {
	a, ch := newAgent(t, false)
	data, _ := json.Marshal(events.CommandPayload{
		Command: "create_project",
		Payload: events.ProjectPayload{ProjectName: "demo", ProjectType: "node-simple", BasePath: a.BaseDir()},
	})
	a.OnEvent(events.ExecuteCommand, data)

	got := ch.last(t)
	if got.event != events.AgentResponse {
		t.Fatalf("event: got %q", got.event)
	}
	if st := got.payload.(events.StatusPayload); st.Status != events.StatusSuccess {
		t.Errorf("status: %+v", st)
	}
}

func TestOnEventIgnoresStatus(t *testing.T) {
	a, ch := newAgent(t, false)
	a.OnEvent(events.AgentStatus, json.RawMessage(`{"status":"error","message":"Agent authentication failed."}`))
	if len(ch.sent) != 0 {
		t.Errorf("expected no reply, got %v", ch.sent)
	}
}
