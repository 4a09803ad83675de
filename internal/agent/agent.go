// Package agent is the local automation agent: it holds an authenticated
// channel to the hub and scaffolds projects on this machine when asked.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zsprackett/agent-console/internal/events"
	"github.com/zsprackett/agent-console/internal/git"
	"github.com/zsprackett/agent-console/internal/tmux"
)

// Emitter sends one named event to the hub.
type Emitter interface {
	Emit(event string, payload any) error
}

type Config struct {
	UserID     string
	AgentToken string
	BaseDir    string
	GitInit    bool
	// TmuxSession opens a detached tmux session in each new project.
	TmuxSession bool
}

// Agent implements wsclient.Handler.
type Agent struct {
	cfg    Config
	base   string
	ch     Emitter
	logger *slog.Logger
}

// New resolves and creates the base directory. Every project the agent
// creates must live under it.
func New(cfg Config, ch Emitter, logger *slog.Logger) (*Agent, error) {
	if cfg.UserID == "" || cfg.AgentToken == "" {
		return nil, errors.New("agent: user id and agent token are required")
	}
	if cfg.BaseDir == "" {
		return nil, errors.New("agent: base directory is required")
	}
	base := expandHome(cfg.BaseDir)
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("agent: create base dir: %w", err)
	}
	base, err := resolvePath(base)
	if err != nil {
		return nil, fmt.Errorf("agent: resolve base dir: %w", err)
	}
	if home, err := os.UserHomeDir(); err == nil {
		if resolvedHome, err := resolvePath(home); err == nil && !within(resolvedHome, base) {
			logger.Warn("agent: base dir is outside the home directory", "base", base)
		}
	}
	logger.Info("agent: using base dir", "base", base)
	return &Agent{cfg: cfg, base: base, ch: ch, logger: logger}, nil
}

// BaseDir returns the resolved base directory.
func (a *Agent) BaseDir() string { return a.base }

func (a *Agent) OnOpen() {
	a.logger.Info("agent: connected, authenticating", "user", a.cfg.UserID)
	err := a.ch.Emit(events.AuthenticateAgent, events.AuthenticateAgentPayload{
		Token:  a.cfg.AgentToken,
		UserID: a.cfg.UserID,
	})
	if err != nil {
		a.logger.Error("agent: send authentication", "err", err)
	}
}

func (a *Agent) OnClose(reason string) {
	a.logger.Info("agent: disconnected", "reason", reason)
}

func (a *Agent) OnError(cause error) {
	a.logger.Warn("agent: connection failed", "err", cause)
}

func (a *Agent) OnRetry() {
	a.logger.Info("agent: reconnecting")
}

func (a *Agent) OnEvent(name string, data json.RawMessage) {
	switch name {
	case events.ExecuteCommand:
		var cmd events.CommandPayload
		if err := json.Unmarshal(data, &cmd); err != nil {
			a.respond(events.StatusPayload{Status: events.StatusError, Message: fmt.Sprintf("Input Error: %v", err)})
			return
		}
		a.respond(a.Execute(cmd))
	case events.AgentStatus:
		var st events.StatusPayload
		json.Unmarshal(data, &st)
		if st.Status == events.StatusError {
			a.logger.Error("agent: hub rejected agent", "message", st.Message)
			return
		}
		a.logger.Info("agent: hub status", "status", st.Status, "message", st.Message)
	default:
		a.logger.Debug("agent: ignoring event", "event", name)
	}
}

func (a *Agent) respond(st events.StatusPayload) {
	if err := a.ch.Emit(events.AgentResponse, st); err != nil {
		a.logger.Error("agent: send response", "status", st.Status, "err", err)
	}
}

// Execute runs one command and returns the response to send to the hub.
func (a *Agent) Execute(cmd events.CommandPayload) events.StatusPayload {
	a.logger.Info("agent: received command", "command", cmd.Command)
	if cmd.Command != events.CommandCreateProject {
		a.logger.Warn("agent: unknown command", "command", cmd.Command)
		return events.StatusPayload{Status: events.StatusError, Message: fmt.Sprintf("Unknown command: %s", cmd.Command)}
	}

	p := cmd.Payload
	dir, err := a.CreateProject(p.ProjectName, p.ProjectType, p.BasePath)
	if err != nil {
		a.logger.Error("agent: create project failed", "project", p.ProjectName, "err", err)
		return events.StatusPayload{Status: events.StatusError, Message: describe(err)}
	}
	return events.StatusPayload{
		Status:  events.StatusSuccess,
		Message: fmt.Sprintf("Project %s created successfully at %s", p.ProjectName, dir),
	}
}

// CreateProject scaffolds name under basePath and returns its directory.
func (a *Agent) CreateProject(name, typ, basePath string) (string, error) {
	dir, err := a.projectDir(name, typ, basePath)
	if err != nil {
		return "", err
	}
	a.logger.Info("agent: creating project", "project", name, "type", typ, "dir", dir)

	templated, err := scaffold(dir, typ, filepath.Base(dir))
	if err != nil {
		return "", err
	}
	if !templated {
		a.logger.Warn("agent: unknown project type, created directory only", "type", typ)
	}
	if a.cfg.GitInit {
		if err := git.Init(dir, "Initial commit"); err != nil {
			a.logger.Warn("agent: git init failed", "dir", dir, "err", err)
		}
	}
	if a.cfg.TmuxSession {
		a.openSession(name, dir)
	}
	return dir, nil
}

func (a *Agent) openSession(name, dir string) {
	session := tmux.SessionName(name)
	if tmux.HasSession(session) {
		a.logger.Info("agent: tmux session already exists", "session", session)
		return
	}
	err := tmux.CreateSession(tmux.CreateOptions{
		Name: session,
		Cwd:  dir,
		Env:  map[string]string{"AGENT_CONSOLE_PROJECT": name},
	})
	if err != nil {
		a.logger.Warn("agent: tmux session failed", "session", session, "err", err)
		return
	}
	a.logger.Info("agent: tmux session started", "session", session, "dir", dir)
}

// describe prefixes err with the category the operator sees.
func describe(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrOutsideBase):
		return "Security Error: " + capitalize(msg) + "."
	case errors.Is(err, ErrMissingParams), errors.Is(err, ErrInvalidName):
		return "Input Error: " + capitalize(msg) + "."
	default:
		return "Failed to create project: " + msg
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
