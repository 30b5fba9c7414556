package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/sources"
	"github.com/fxding/forks/pkg/staleness"
)

// Browse lists the skills in source without tracking it. Remote sources are
// shallow-cloned into a scratch directory removed before returning, so the
// Directory of each returned skill is informational only.
func (s *Service) Browse(ctx context.Context, source string) ([]skills.Skill, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errdefs.ErrEmptySource
	}

	ctx, done := s.begin(ctx)
	defer done()

	path, cleanup, err := s.cache.Browse(ctx, source)
	if err != nil {
		return nil, s.finish(ctx, "browse", err)
	}
	defer cleanup()

	found, err := s.discovery.Discover(ctx, path)
	if err != nil {
		return nil, s.finish(ctx, "browse", err)
	}
	if len(found) == 0 {
		return nil, errors.Wrapf(errdefs.ErrNoSkillsFound, "%s", source)
	}
	return found, nil
}

// SourceSkills lists the skills in the cache of a known source. A source
// that has not been materialized yet has no skills.
func (s *Service) SourceSkills(ctx context.Context, source string) ([]skills.Skill, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errdefs.ErrEmptySource
	}
	path := s.cache.CachePath(source)
	if !fswalk.IsDir(path) {
		return []skills.Skill{}, nil
	}
	return s.discovery.Discover(ctx, path)
}

// AddSource materializes source and tracks it.
func (s *Service) AddSource(ctx context.Context, source string) (*Snapshot, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errdefs.ErrEmptySource
	}

	opCtx, done := s.begin(ctx)
	defer done()

	if _, err := s.cache.Materialize(opCtx, source); err != nil {
		return nil, s.finish(ctx, "add source", err)
	}
	if err := s.store.Track(ctx, source); err != nil {
		return nil, err
	}
	logger.G(ctx).WithField("source", source).Info("source added")
	return s.Refresh(ctx)
}

// RemoveSource stops tracking source. Records and caches stay.
func (s *Service) RemoveSource(ctx context.Context, source string) (*Snapshot, error) {
	if err := s.store.Untrack(ctx, source); err != nil {
		return nil, err
	}
	return s.Refresh(ctx)
}

// DeleteSource forgets source and every record installed from it. Remote
// sources also lose their cache directory; local folders are never touched.
// A missing cache is reported after the registry has been updated.
func (s *Service) DeleteSource(ctx context.Context, source string) (*Snapshot, []string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil, errdefs.ErrEmptySource
	}

	var removed []string
	remote := false
	err := s.store.Mutate(ctx, func(st *registry.State) error {
		names := st.RecordsFrom(source)
		for _, name := range names {
			if sources.IsCacheRelative(st.Records[name].RelativeForkPath) {
				remote = true
			}
		}
		if len(names) == 0 {
			remote = sources.IsRemote(source)
		}
		removed = st.RemoveSource(source)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var cacheErr error
	if remote {
		cacheErr = s.cache.RemoveCache(source)
	}

	snap, err := s.Refresh(ctx)
	if err != nil {
		return nil, removed, err
	}
	logger.G(ctx).WithField("source", source).WithField("skills", removed).Info("source deleted")
	return snap, removed, cacheErr
}

// RefreshRegistry runs a bulk staleness check and rebuilds the snapshot.
func (s *Service) RefreshRegistry(ctx context.Context, force bool) (staleness.Report, *Snapshot, error) {
	opCtx, done := s.begin(ctx)
	defer done()

	report, err := s.refresher.RefreshAll(opCtx, staleness.RefreshOptions{Force: force})
	if err != nil {
		return report, nil, s.finish(ctx, "registry refresh", err)
	}
	snap, err := s.Refresh(ctx)
	return report, snap, err
}

// Sweeper returns a background sweeper over the registry. After every sweep
// the snapshot is rebuilt, then onSweep, when set, sees the report and the
// new snapshot.
func (s *Service) Sweeper(interval time.Duration, onSweep func(ctx context.Context, report staleness.Report, snap *Snapshot)) *staleness.Sweeper {
	sweeper := staleness.NewSweeper(s.refresher, interval)
	sweeper.OnRefresh = func(ctx context.Context, report staleness.Report) {
		snap, err := s.Refresh(ctx)
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to rebuild snapshot after sweep")
			return
		}
		if onSweep != nil {
			onSweep(ctx, report, snap)
		}
	}
	return sweeper
}
