//go:build unix

package runner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxding/forks/pkg/errdefs"
)

func TestCommandString(t *testing.T) {
	assert.Equal(t, "git -C /tmp/x pull", Command{Name: "git", Args: []string{"-C", "/tmp/x", "pull"}}.String())
	assert.Equal(t, "git", Command{Name: "git"}.String())
}

func TestExecRunner_CombinedOutput(t *testing.T) {
	r := New()
	out, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")
}

func TestExecRunner_NonInteractiveEnv(t *testing.T) {
	t.Setenv("CI", "false")
	r := New(WithEnv("FORKS_EXTRA=1"))

	out, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `echo "$CI $npm_config_yes $GIT_TERMINAL_PROMPT $FORKS_EXTRA $PER_CALL"`},
		Env:  []string{"PER_CALL=x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "true true 0 1 x\n", out)
}

func TestExecRunner_ClosedStdin(t *testing.T) {
	out, err := New().Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "cat; echo done"}})
	require.NoError(t, err)
	assert.Equal(t, "done\n", out)
}

func TestExecRunner_Dir(t *testing.T) {
	dir := t.TempDir()
	out, err := New().Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "pwd -P"}, Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, out, dir[len(dir)-10:])
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	out, err := New().Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom; exit 3"}})
	require.Error(t, err)
	assert.Equal(t, "boom\n", out)

	var subErr *errdefs.SubprocessError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, 3, subErr.ExitCode)
	assert.Equal(t, "boom\n", subErr.Output)
	assert.False(t, errdefs.IsCancelled(err))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := New().Run(context.Background(), Command{Name: "forks-no-such-binary"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run forks-no-such-binary")
}

func TestExecRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := New().Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrCancelled))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunner_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo never"}})
	assert.True(t, errdefs.IsCancelled(err))
}

func TestExecRunner_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := New().Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30"}})
	require.Error(t, err)
	assert.False(t, errdefs.IsCancelled(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecRunner_Stream(t *testing.T) {
	var streamed bytes.Buffer
	out, err := New(WithStream(&streamed)).Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo progress"}})
	require.NoError(t, err)
	assert.Equal(t, out, streamed.String())
}

func TestFunc(t *testing.T) {
	var got Command
	r := Func(func(_ context.Context, c Command) (string, error) {
		got = c
		return "ok", nil
	})

	out, err := r.Run(context.Background(), Command{Name: "git", Args: []string{"status"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "git", got.Name)
}
