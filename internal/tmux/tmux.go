package tmux

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const SessionPrefix = "acp_"

var ErrNotInstalled = errors.New("tmux not installed")

func IsAvailable() bool {
	return exec.Command("tmux", "-V").Run() == nil
}

// SessionName derives a tmux-safe session name from a project name.
func SessionName(project string) string {
	safe := strings.ToLower(project)
	safe = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, safe)
	safe = strings.Trim(safe, "-")
	if len(safe) > 32 {
		safe = safe[:32]
	}
	if safe == "" {
		safe = "project"
	}
	return SessionPrefix + safe
}

type CreateOptions struct {
	Name string
	Cwd  string
	Env  map[string]string
}

// CreateSession starts a detached session rooted at opts.Cwd.
func CreateSession(opts CreateOptions) error {
	if !IsAvailable() {
		return ErrNotInstalled
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = os.Getenv("HOME")
	}

	args := []string{"new-session", "-d", "-s", opts.Name, "-c", cwd}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	if out, err := exec.Command("tmux", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("create session %s: %w: %s", opts.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func HasSession(name string) bool {
	return exec.Command("tmux", "has-session", "-t", "="+name).Run() == nil
}

func KillSession(name string) error {
	return exec.Command("tmux", "kill-session", "-t", "="+name).Run()
}
