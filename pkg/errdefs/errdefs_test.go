package errdefs

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSubprocessError(t *testing.T) {
	err := &SubprocessError{Command: "git pull", ExitCode: 1, Output: "fatal: not a git repository\n"}
	assert.Equal(t, "git pull exited with code 1: fatal: not a git repository", err.Error())

	bare := &SubprocessError{Command: "npx skills add", ExitCode: 2}
	assert.Equal(t, "npx skills add exited with code 2", bare.Error())
}

func TestOutput(t *testing.T) {
	wrapped := errors.Wrap(&SubprocessError{Command: "git", ExitCode: 128, Output: "denied"}, "failed to clone")

	out, ok := Output(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "denied", out)

	_, ok = Output(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(ErrCancelled))
	assert.True(t, IsCancelled(errors.Wrap(ErrCancelled, "git fetch")))
	assert.True(t, IsCancelled(errors.Wrap(context.Canceled, "install")))
	assert.False(t, IsCancelled(context.DeadlineExceeded))
	assert.False(t, IsCancelled(nil))
	assert.False(t, IsCancelled(&SubprocessError{Command: "git", ExitCode: 1}))
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := errors.Wrapf(ErrSourceMissing, "source %s", "/tmp/gone")
	assert.True(t, errors.Is(err, ErrSourceMissing))
	assert.False(t, errors.Is(err, ErrSourceNotFound))
}
