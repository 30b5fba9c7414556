// Package installer drives the external skill install command
// (`npx skills` by default), which does the actual copying or linking of
// skills into agent directories.
package installer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/runner"
	"github.com/fxding/forks/pkg/telemetry"
)

const (
	DefaultCommand = "npx"
	// DefaultPath covers the usual Node install locations on macOS and Linux.
	DefaultPath = "/usr/local/bin:/opt/homebrew/bin:/usr/bin:/bin:/usr/sbin:/sbin"
)

// DefaultArgs precede every subcommand.
var DefaultArgs = []string{"skills"}

// AddRequest describes one install.
type AddRequest struct {
	// SourcePath is the materialized source directory.
	SourcePath string
	Skills     []string
	// Agents are catalog CLI ids.
	Agents []string
	// Global installs into the agents' global directories. Otherwise skills
	// are copied into ProjectDir.
	Global     bool
	ProjectDir string
}

// Installer runs the install command.
type Installer struct {
	runner  runner.Runner
	command string
	args    []string
	path    string
}

// Option configures an Installer.
type Option func(*Installer)

// WithCommand replaces the command and its leading arguments.
func WithCommand(command string, args ...string) Option {
	return func(i *Installer) {
		if command != "" {
			i.command = command
			i.args = args
		}
	}
}

// WithPath sets PATH for the command. The command itself is resolved
// against it too.
func WithPath(path string) Option {
	return func(i *Installer) { i.path = path }
}

// WithRunner sets the command runner.
func WithRunner(r runner.Runner) Option {
	return func(i *Installer) {
		if r != nil {
			i.runner = r
		}
	}
}

// New creates an Installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		runner:  runner.New(),
		command: DefaultCommand,
		args:    DefaultArgs,
		path:    DefaultPath,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AddArgs builds the argument list for req, without the command itself.
func (i *Installer) AddArgs(req AddRequest) []string {
	args := append(append([]string{}, i.args...), "add", req.SourcePath)
	for _, s := range req.Skills {
		args = append(args, "--skill", s)
	}
	for _, a := range req.Agents {
		args = append(args, "--agent", a)
	}
	if req.Global {
		args = append(args, "--global")
	} else {
		args = append(args, "--mode", "copy")
	}
	return append(args, "--yes")
}

// RemoveArgs builds the argument list removing name from agent's global
// directory.
func (i *Installer) RemoveArgs(name, agent string) []string {
	return append(append([]string{}, i.args...), "remove", name, "--agent", agent, "--global", "--yes")
}

// Add installs skills from req.SourcePath and returns the command output.
func (i *Installer) Add(ctx context.Context, req AddRequest) (string, error) {
	if req.SourcePath == "" {
		return "", errdefs.ErrEmptySource
	}
	if len(req.Agents) == 0 {
		return "", errors.New("at least one agent is required")
	}
	if !req.Global && req.ProjectDir == "" {
		return "", errors.New("project directory is required for a project install")
	}

	cmd := i.buildCommand(i.AddArgs(req))
	if !req.Global {
		cmd.Dir = req.ProjectDir
	}

	return telemetry.WithSpanResult(ctx, "installer.add", func(ctx context.Context) (string, error) {
		logger.G(ctx).WithField("skills", req.Skills).WithField("agents", req.Agents).Info("installing skills")
		return i.runner.Run(ctx, cmd)
	}, telemetry.SourceKey.String(req.SourcePath))
}

// Remove uninstalls name from agent's global directory.
func (i *Installer) Remove(ctx context.Context, name, agent string) (string, error) {
	if name == "" || agent == "" {
		return "", errors.New("skill name and agent are required")
	}
	return telemetry.WithSpanResult(ctx, "installer.remove", func(ctx context.Context) (string, error) {
		logger.G(ctx).WithField("skill", name).WithField("agent", agent).Info("removing skill")
		return i.runner.Run(ctx, i.buildCommand(i.RemoveArgs(name, agent)))
	}, telemetry.SkillKey.String(name), telemetry.AgentKey.String(agent))
}

func (i *Installer) buildCommand(args []string) runner.Command {
	cmd := runner.Command{Name: i.command, Args: args}
	if i.path != "" {
		cmd.Name = lookPath(i.command, i.path)
		cmd.Env = []string{"PATH=" + i.path}
	}
	return cmd
}

// lookPath finds command in the directories of path, returning command
// unchanged when it is already a path or cannot be found.
func lookPath(command, path string) string {
	if filepath.Base(command) != command {
		return command
	}
	for _, dir := range filepath.SplitList(path) {
		candidate := filepath.Join(dir, command)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate
		}
	}
	return command
}
