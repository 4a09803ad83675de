package console

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zsprackett/agent-console/internal/events"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError lists the form fields that were empty after trimming.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Please fill in all fields. missing: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Request is a validated project creation request.
type Request struct {
	ProjectName string
	ProjectType string
	BasePath    string
}

// Validate trims the name and base path and requires all three fields.
func Validate(projectName, projectType, basePath string) (Request, error) {
	req := Request{
		ProjectName: strings.TrimSpace(projectName),
		ProjectType: projectType,
		BasePath:    strings.TrimSpace(basePath),
	}
	var missing []string
	if req.ProjectName == "" {
		missing = append(missing, "projectName")
	}
	if strings.TrimSpace(req.ProjectType) == "" {
		missing = append(missing, "projectType")
	}
	if req.BasePath == "" {
		missing = append(missing, "basePath")
	}
	if len(missing) > 0 {
		return Request{}, &ValidationError{Missing: missing}
	}
	return req, nil
}

// Submitter sends one create_project_request per valid submission and puts
// an optimistic pending entry in the log first.
type Submitter struct {
	ch     Channel
	log    *NotificationLog
	now    func() time.Time
	logger *slog.Logger
}

// NewSubmitter returns a Submitter writing to log and emitting through ch.
func NewSubmitter(ch Channel, log *NotificationLog, logger *slog.Logger) *Submitter {
	return &Submitter{ch: ch, log: log, now: time.Now, logger: logger}
}

// SetNow replaces the clock. Used in tests only.
func (s *Submitter) SetNow(fn func() time.Time) {
	s.now = fn
}

// Submit validates and dispatches. Validation failures return a
// *ValidationError with no side effects. Once validated the pending entry
// stays in the log whatever happens to the emit; nothing waits for a reply.
func (s *Submitter) Submit(projectName, projectType, basePath string) error {
	req, err := Validate(projectName, projectType, basePath)
	if err != nil {
		return err
	}
	s.log.Append(Entry{
		Time:    s.now(),
		Phase:   events.StatusPending,
		Message: fmt.Sprintf("Sending request for '%s'...", req.ProjectName),
		Origin:  OriginLocal,
	})
	s.logger.Info("submitter: requesting project creation",
		"project", req.ProjectName,
		"type", req.ProjectType,
		"base", req.BasePath,
	)
	if err := s.ch.Emit(events.CreateProjectRequest, events.CreateProjectPayload{
		ProjectName: req.ProjectName,
		BasePath:    req.BasePath,
		ProjectType: req.ProjectType,
	}); err != nil {
		s.logger.Error("submitter: dispatch failed", "project", req.ProjectName, "err", err)
		return fmt.Errorf("dispatch create project request: %w", err)
	}
	return nil
}
