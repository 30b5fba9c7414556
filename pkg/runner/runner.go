// Package runner executes external commands (git and the skill install
// command) non-interactively and reports their combined output.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/osutil"
)

// NonInteractiveEnv is applied to every command so that nothing waits on a
// prompt: git never asks for credentials and npm/npx never asks to confirm.
var NonInteractiveEnv = []string{
	"CI=true",
	"npm_config_yes=true",
	"GIT_TERMINAL_PROMPT=0",
}

// Command is one invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env holds KEY=VALUE overrides on top of the runner's environment.
	Env []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner runs a command and returns its combined stdout and stderr.
//
// A non-zero exit yields *errdefs.SubprocessError. A cancelled context yields
// an error matching errdefs.ErrCancelled.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, cmd Command) (string, error)

func (f Func) Run(ctx context.Context, cmd Command) (string, error) { return f(ctx, cmd) }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	env    []string
	stream io.Writer
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithEnv adds KEY=VALUE overrides to every command.
func WithEnv(kv ...string) Option {
	return func(r *ExecRunner) { r.env = append(r.env, kv...) }
}

// WithStream copies output to w while the command runs.
func WithStream(w io.Writer) Option {
	return func(r *ExecRunner) { r.stream = w }
}

// New creates an ExecRunner.
func New(opts ...Option) *ExecRunner {
	r := &ExecRunner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", cancelled(c, err)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = nil

	overrides := append(append(append([]string{}, NonInteractiveEnv...), r.env...), c.Env...)
	cmd.Env = osutil.EnvWith(os.Environ(), overrides...)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if r.stream != nil {
		out = io.MultiWriter(&buf, r.stream)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	osutil.SetProcessGroup(cmd)
	osutil.SetProcessGroupKill(cmd)

	logger.G(ctx).WithField("command", c.String()).WithField("dir", c.Dir).Debug("running command")

	err := cmd.Run()
	output := buf.String()
	if err == nil {
		return output, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return output, cancelled(c, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, &errdefs.SubprocessError{
			Command:  c.String(),
			ExitCode: exitErr.ExitCode(),
			Output:   output,
		}
	}
	return output, errors.Wrapf(err, "failed to run %s", c.Name)
}

func cancelled(c Command, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return errors.Wrapf(cause, "%s timed out", c.Name)
	}
	return errors.Wrapf(errdefs.ErrCancelled, "%s", c.String())
}
