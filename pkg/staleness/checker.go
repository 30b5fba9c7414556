// Package staleness decides whether a source has changed since it was
// cached and keeps the registry's update flags current.
package staleness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/sources"
	"github.com/fxding/forks/pkg/telemetry"
)

// behindMarker is what `git status -uno` prints when upstream is ahead.
const behindMarker = "Your branch is behind"

// Result is the outcome of one check.
type Result struct {
	UpdateAvailable bool
	CheckedAt       time.Time
}

// Repo is the part of the source cache the checker needs.
type Repo interface {
	ResolveRelative(source, rel string) string
	Fetch(ctx context.Context, path string) (string, error)
	Status(ctx context.Context, path string) (string, error)
}

// Checker runs staleness checks against a source cache.
type Checker struct {
	repo Repo
	now  func() time.Time
}

// NewChecker creates a Checker backed by repo.
func NewChecker(repo Repo) *Checker {
	return &Checker{repo: repo, now: time.Now}
}

// Check reports whether origin has content its cache has not seen.
//
// Caches under repos/ are fetched and compared with their upstream branch.
// Anything else is treated as a local folder: a vanished folder yields
// errdefs.ErrSourceMissing, otherwise the modification time of its
// manifest (or of the folder) is returned and UpdateAvailable stays false.
func (c *Checker) Check(ctx context.Context, origin, rel string) (Result, error) {
	return telemetry.WithSpanResult(ctx, "staleness.check", func(ctx context.Context) (Result, error) {
		if sources.IsCacheRelative(rel) {
			return c.checkRemote(ctx, origin, rel)
		}
		return c.checkLocal(ctx, origin)
	}, telemetry.SourceKey.String(origin))
}

func (c *Checker) checkRemote(ctx context.Context, origin, rel string) (Result, error) {
	path := c.repo.ResolveRelative(origin, rel)

	if _, err := c.repo.Fetch(ctx, path); err != nil {
		return Result{}, errors.Wrapf(err, "failed to fetch %s", origin)
	}
	status, err := c.repo.Status(ctx, path)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to read status of %s", origin)
	}

	res := Result{
		UpdateAvailable: strings.Contains(status, behindMarker),
		CheckedAt:       c.now(),
	}
	logger.G(ctx).WithField("source", origin).WithField("update_available", res.UpdateAvailable).Debug("checked remote source")
	return res, nil
}

func (c *Checker) checkLocal(ctx context.Context, origin string) (Result, error) {
	info, err := os.Stat(origin)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errors.Wrapf(errdefs.ErrSourceMissing, "%s", origin)
		}
		return Result{}, errors.Wrapf(err, "failed to stat %s", origin)
	}

	modified := info.ModTime()
	if manifest, err := os.Stat(filepath.Join(origin, skills.ManifestFileName)); err == nil {
		modified = manifest.ModTime()
	}

	logger.G(ctx).WithField("source", origin).WithField("modified", modified).Debug("checked local source")
	return Result{UpdateAvailable: false, CheckedAt: modified}, nil
}
