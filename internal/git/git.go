package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotInstalled is returned when no git binary is on PATH.
var ErrNotInstalled = errors.New("git not installed")

// Available reports whether a git binary can be found.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func IsGitRepo(dir string) bool {
	return exec.Command("git", "-C", dir, "rev-parse", "--git-dir").Run() == nil
}

func GetCurrentBranch(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Init creates a repository in dir and commits everything already in it.
// The commit identity is fixed so it works on hosts without git config.
func Init(dir, message string) error {
	if !Available() {
		return ErrNotInstalled
	}
	steps := [][]string{
		{"init", "--quiet"},
		{"add", "-A"},
		{"-c", "user.name=agent-console", "-c", "user.email=agent-console@localhost",
			"commit", "--quiet", "--allow-empty", "-m", message},
	}
	for _, args := range steps {
		full := append([]string{"-C", dir}, args...)
		if out, err := exec.Command("git", full...).CombinedOutput(); err != nil {
			return fmt.Errorf("git %s: %s", args[len(args)-1], strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// IsWorktreeDirty reports whether a git worktree at path has uncommitted changes.
func IsWorktreeDirty(path string) (bool, error) {
	out, err := exec.Command("git", "-C", path, "status", "--porcelain").Output()
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return len(strings.TrimSpace(string(out))) > 0, nil
}
