// Package errdefs defines the error kinds shared by the forks packages.
// Callers wrap these sentinels with github.com/pkg/errors and inspect them
// with errors.Is / errors.As.
package errdefs

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEmptySource is returned when an operation needs a source and got a blank string.
	ErrEmptySource = errors.New("source is empty")
	// ErrSourceNotFound is returned when a local source path is missing or not a directory.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceMissing is returned by staleness checks when a previously cached
	// local source has vanished. Refresh prunes such sources.
	ErrSourceMissing = errors.New("source missing")
	// ErrUnknownAgent is returned for an agent name or CLI id absent from the catalog.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrSkillNotFound is returned when the target skill is not installed.
	ErrSkillNotFound = errors.New("skill not found")
	// ErrCancelled marks an operation stopped on request.
	ErrCancelled = errors.New("operation cancelled")
	// ErrNoSkillsFound is returned when browsing a source yields no skills.
	ErrNoSkillsFound = errors.New("no skills found")
	// ErrCacheNotFound is returned when a remote source has no cache directory.
	ErrCacheNotFound = errors.New("cache directory not found")
	// ErrProjectExists is returned when a project path is already tracked.
	ErrProjectExists = errors.New("project already added")
	// ErrProjectNotFound is returned for an unknown project id or path.
	ErrProjectNotFound = errors.New("project not found")
)

// SubprocessError reports a command that exited non-zero.
type SubprocessError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *SubprocessError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, out)
}

// IsCancelled reports whether err stems from a requested cancellation,
// including a cancelled context.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Output returns the captured subprocess output carried by err, if any.
func Output(err error) (string, bool) {
	var subErr *SubprocessError
	if errors.As(err, &subErr) {
		return subErr.Output, true
	}
	return "", false
}
