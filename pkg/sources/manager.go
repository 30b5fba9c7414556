package sources

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/runner"
	"github.com/fxding/forks/pkg/telemetry"
)

const tmpDir = "tmp"

// Materialized describes a source ready to be read from disk.
type Materialized struct {
	Source       string `json:"source"`
	Path         string `json:"path"`
	RelativePath string `json:"relativePath"`
	Kind         Kind   `json:"kind"`
}

// Manager owns the repos cache below a registry root.
type Manager struct {
	root   string
	git    string
	host   string
	runner runner.Runner
}

// Option configures a Manager.
type Option func(*Manager)

// WithGitBinary sets the git executable.
func WithGitBinary(bin string) Option {
	return func(m *Manager) {
		if bin != "" {
			m.git = bin
		}
	}
}

// WithHost sets the host owner/repo shorthands expand against.
func WithHost(host string) Option {
	return func(m *Manager) {
		if host != "" {
			m.host = host
		}
	}
}

// WithRunner sets the command runner.
func WithRunner(r runner.Runner) Option {
	return func(m *Manager) {
		if r != nil {
			m.runner = r
		}
	}
}

// NewManager creates a Manager rooted at root.
func NewManager(root string, opts ...Option) *Manager {
	m := &Manager{
		root:   root,
		git:    "git",
		host:   DefaultHost,
		runner: runner.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the registry root.
func (m *Manager) Root() string { return m.root }

// CachePath returns where source lives on disk: the repos cache for remote
// sources, the absolute source path for local ones.
func (m *Manager) CachePath(source string) string {
	if IsRemote(source) {
		return filepath.Join(m.root, ReposDir, CacheName(source))
	}
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return source
}

// ResolveRelative joins a registry relative path, falling back to the
// source itself when rel is empty.
func (m *Manager) ResolveRelative(source, rel string) string {
	if rel == "" {
		return m.CachePath(source)
	}
	return filepath.Join(m.root, filepath.FromSlash(rel))
}

// Classify is sources.Classify; it lets the manager satisfy view interfaces.
func (m *Manager) Classify(source string) Kind { return Classify(source) }

// Materialize makes source available on disk. Remote caches are pulled when
// present and cloned with full history otherwise. Calling it repeatedly is
// safe and returns the same path.
func (m *Manager) Materialize(ctx context.Context, source string) (Materialized, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Materialized{}, errdefs.ErrEmptySource
	}

	return telemetry.WithSpanResult(ctx, "sources.materialize", func(ctx context.Context) (Materialized, error) {
		if !IsRemote(source) {
			return m.materializeLocal(source)
		}
		return m.materializeRemote(ctx, source)
	}, telemetry.SourceKey.String(source))
}

func (m *Manager) materializeLocal(source string) (Materialized, error) {
	path := m.CachePath(source)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Materialized{}, errors.Wrapf(errdefs.ErrSourceNotFound, "%s", source)
	}
	return Materialized{Source: source, Path: path, Kind: KindLocal}, nil
}

func (m *Manager) materializeRemote(ctx context.Context, source string) (Materialized, error) {
	path := m.CachePath(source)
	result := Materialized{
		Source:       source,
		Path:         path,
		RelativePath: RelativeCachePath(source),
		Kind:         KindGit,
	}

	if err := os.MkdirAll(filepath.Join(m.root, ReposDir), 0o755); err != nil {
		return result, errors.Wrap(err, "failed to create repos directory")
	}

	if fswalk.IsDir(filepath.Join(path, ".git")) {
		if _, err := m.Pull(ctx, path); err != nil {
			return result, err
		}
		return result, nil
	}

	if fswalk.IsDir(path) {
		logger.G(ctx).WithField("path", path).Warn("removing incomplete cache before cloning")
		if err := os.RemoveAll(path); err != nil {
			return result, errors.Wrap(err, "failed to remove incomplete cache")
		}
	}

	if err := m.clone(ctx, GitURL(source, m.host), path, 0); err != nil {
		return result, err
	}
	return result, nil
}

// Browse makes source readable without tracking it. Remote sources get a
// shallow clone in a scratch directory that cleanup removes; local sources
// are returned as is.
func (m *Manager) Browse(ctx context.Context, source string) (string, func(), error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", func() {}, errdefs.ErrEmptySource
	}
	if !IsRemote(source) {
		res, err := m.materializeLocal(source)
		return res.Path, func() {}, err
	}

	scratch := filepath.Join(m.root, tmpDir, uuid.NewString())
	if err := os.MkdirAll(filepath.Dir(scratch), 0o755); err != nil {
		return "", func() {}, errors.Wrap(err, "failed to create scratch directory")
	}
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.G(ctx).WithError(err).WithField("path", scratch).Warn("failed to remove scratch clone")
		}
	}

	err := telemetry.WithSpan(ctx, "sources.browse", func(ctx context.Context) error {
		return m.clone(ctx, GitURL(source, m.host), scratch, 1)
	}, telemetry.SourceKey.String(source))
	if err != nil {
		cleanup()
		return "", func() {}, err
	}
	return scratch, cleanup, nil
}

func (m *Manager) clone(ctx context.Context, url, dest string, depth int) error {
	args := []string{"clone"}
	if depth > 0 {
		args = append(args, "--depth", "1")
	}
	args = append(args, url, dest)

	if _, err := m.runner.Run(ctx, runner.Command{Name: m.git, Args: args}); err != nil {
		_ = os.RemoveAll(dest)
		return errors.Wrapf(err, "failed to clone %s", url)
	}
	return nil
}

// Pull updates the clone at path.
func (m *Manager) Pull(ctx context.Context, path string) (string, error) {
	out, err := m.runGit(ctx, path, "pull")
	return out, errors.Wrapf(err, "failed to pull %s", path)
}

// Fetch downloads upstream refs for the clone at path.
func (m *Manager) Fetch(ctx context.Context, path string) (string, error) {
	out, err := m.runGit(ctx, path, "fetch")
	return out, errors.Wrapf(err, "failed to fetch %s", path)
}

// Status reports how the clone at path compares with its upstream,
// ignoring untracked files.
func (m *Manager) Status(ctx context.Context, path string) (string, error) {
	out, err := m.runGit(ctx, path, "status", "-uno")
	return out, errors.Wrapf(err, "failed to get status of %s", path)
}

func (m *Manager) runGit(ctx context.Context, path string, args ...string) (string, error) {
	return m.runner.Run(ctx, runner.Command{Name: m.git, Args: append([]string{"-C", path}, args...)})
}

// RemoveCache deletes the cache directory of a remote source.
func (m *Manager) RemoveCache(source string) error {
	if !IsRemote(source) {
		return nil
	}
	path := m.CachePath(source)
	if !fswalk.IsDir(path) {
		return errors.Wrapf(errdefs.ErrCacheNotFound, "%s", path)
	}
	return errors.Wrapf(os.RemoveAll(path), "failed to remove %s", path)
}
