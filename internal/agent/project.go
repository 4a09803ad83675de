package agent

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates
var templateFS embed.FS

var (
	// ErrMissingParams is returned when a create request lacks a field.
	ErrMissingParams = errors.New("missing required parameters in payload")
	// ErrInvalidName is returned for project names that are not a single
	// plain directory name.
	ErrInvalidName = errors.New("invalid project name")
	// ErrOutsideBase is returned when the requested path escapes the base dir.
	ErrOutsideBase = errors.New("outside the allowed base directory")
	// ErrExists is returned when the project directory is already present.
	ErrExists = errors.New("directory already exists")
)

// Types lists the project types that have a template.
func Types() []string {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

func validateName(name string) error {
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: leading or trailing spaces", ErrInvalidName)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: cannot be '%s'", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: cannot start with '.'", ErrInvalidName)
	}
	for _, ch := range []string{"/", "\\", "\"", "\x00", "\n", "\t"} {
		if strings.Contains(name, ch) {
			return fmt.Errorf("%w: cannot contain %q", ErrInvalidName, ch)
		}
	}
	return nil
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// resolvePath makes p absolute and follows symlinks as far as the path
// exists, so a link inside the base dir cannot point outside it.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(expandHome(p))
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	// Resolve the deepest existing ancestor and re-append the rest.
	dir, rest := abs, ""
	for {
		parent := filepath.Dir(dir)
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if parent == filepath.Dir(parent) {
			return abs, nil
		}
	}
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// projectDir validates a request and returns the directory to create.
func (a *Agent) projectDir(name, typ, basePath string) (string, error) {
	if name == "" || typ == "" || basePath == "" {
		return "", ErrMissingParams
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	requested, err := resolvePath(basePath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", basePath, err)
	}
	if !within(a.base, requested) {
		return "", fmt.Errorf("requested path '%s' is %w '%s'", requested, ErrOutsideBase, a.base)
	}
	return filepath.Join(requested, name), nil
}

// scaffold creates dir and renders the templates for typ into it. Types
// without a template get an empty directory.
func scaffold(dir, typ, name string) (templated bool, err error) {
	if _, err := os.Stat(dir); err == nil {
		return false, fmt.Errorf("%w: %s", ErrExists, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, err
	}

	root := path.Join("templates", typ)
	if _, err := fs.Stat(templateFS, root); err != nil {
		return false, nil
	}

	data := struct{ Name string }{Name: name}
	err = fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		tmpl, err := template.ParseFS(templateFS, p)
		if err != nil {
			return err
		}
		rel := strings.TrimSuffix(strings.TrimPrefix(p, root+"/"), ".tmpl")
		out := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		return tmpl.Execute(f, data)
	})
	return err == nil, err
}
