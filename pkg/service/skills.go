package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/installed"
	"github.com/fxding/forks/pkg/installer"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/sources"
)

// InstallRequest describes an install from one source.
type InstallRequest struct {
	Source string
	Skills []string
	// Agents are CLI ids or display names.
	Agents []string
	// ProjectDir copies the skills into a project instead of the agents'
	// global directories.
	ProjectDir string
}

// Result is returned by commands that run the install command.
type Result struct {
	Output   string
	Snapshot *Snapshot
}

// Install materializes the source, records provenance for each skill and
// runs the install command.
func (s *Service) Install(ctx context.Context, req InstallRequest) (Result, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return Result{}, errdefs.ErrEmptySource
	}
	if len(req.Skills) == 0 {
		return Result{}, errors.New("no skills selected")
	}
	agentIDs, err := s.resolveAgents(req.Agents)
	if err != nil {
		return Result{}, err
	}
	if len(agentIDs) == 0 {
		return Result{}, errors.New("no agents selected")
	}

	opCtx, done := s.begin(ctx)
	defer done()

	m, err := s.cache.Materialize(opCtx, source)
	if err != nil {
		return Result{}, s.finish(ctx, "install", err)
	}

	now := s.now()
	err = s.store.PutRecords(ctx, req.Skills, registry.Record{
		OriginalSource:   source,
		RelativeForkPath: m.RelativePath,
		InstalledDate:    now,
		LastChecked:      &now,
	})
	if err != nil {
		return Result{}, err
	}

	out, err := s.installer.Add(opCtx, installer.AddRequest{
		SourcePath: m.Path,
		Skills:     req.Skills,
		Agents:     agentIDs,
		Global:     req.ProjectDir == "",
		ProjectDir: req.ProjectDir,
	})
	if err != nil {
		return Result{Output: out}, s.finish(ctx, "install", err)
	}

	snap, err := s.Refresh(ctx)
	return Result{Output: out, Snapshot: snap}, err
}

// Uninstall removes name from one agent. The registry record goes once no
// agent hosts the skill any more.
func (s *Service) Uninstall(ctx context.Context, name, agent string) (Result, error) {
	def, err := s.catalog.Lookup(agent)
	if err != nil {
		return Result{}, err
	}
	skill, err := s.installedSkill(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if !skill.HasAgent(def.CLIName) {
		return Result{}, errors.Wrapf(errdefs.ErrSkillNotFound, "%s is not installed for %s", name, def.Name)
	}

	opCtx, done := s.begin(ctx)
	defer done()

	out, err := s.installer.Remove(opCtx, name, def.CLIName)
	if err != nil {
		return Result{Output: out}, s.finish(ctx, "uninstall", err)
	}

	snap, err := s.Refresh(ctx)
	if err != nil {
		return Result{Output: out}, err
	}
	if _, still := installed.Find(snap.Installed, name); !still {
		if err := s.store.RemoveRecord(ctx, name); err != nil {
			return Result{Output: out}, err
		}
		snap, err = s.Refresh(ctx)
	}
	return Result{Output: out, Snapshot: snap}, err
}

// UpdateSkill brings the source of name up to date and reinstalls it for
// one agent.
func (s *Service) UpdateSkill(ctx context.Context, name, agent string) (Result, error) {
	def, err := s.catalog.Lookup(agent)
	if err != nil {
		return Result{}, err
	}
	rec, ok, err := s.store.Record(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, errors.Wrapf(errdefs.ErrSkillNotFound, "%s has no registry record", name)
	}

	opCtx, done := s.begin(ctx)
	defer done()

	out, err := s.reinstall(opCtx, name, def.CLIName, rec, true)
	if err != nil {
		return Result{Output: out}, s.finish(ctx, "update", err)
	}
	snap, err := s.Refresh(ctx)
	return Result{Output: out, Snapshot: snap}, err
}

// UpdateAllInSource pulls source once, clears the update flag of every
// record from it, and reinstalls each installed skill from it for every
// agent hosting it. A failed pull is logged and the reinstall proceeds with
// the cache as it is.
func (s *Service) UpdateAllInSource(ctx context.Context, source string) (Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Result{}, errdefs.ErrEmptySource
	}

	st, err := s.store.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	names := st.RecordsFrom(source)
	remote := sources.HasRemoteSyntax(source)
	for _, name := range names {
		if sources.IsCacheRelative(st.Records[name].RelativeForkPath) {
			remote = true
		}
	}

	current, err := s.Refresh(ctx)
	if err != nil {
		return Result{}, err
	}

	opCtx, done := s.begin(ctx)
	defer done()

	if remote {
		if _, err := s.cache.Pull(opCtx, s.cache.CachePath(source)); err != nil {
			if errdefs.IsCancelled(err) || s.cancelled.Load() {
				return Result{}, s.finish(ctx, "update source", err)
			}
			logger.G(ctx).WithError(err).WithField("source", source).Warn("failed to pull source, reinstalling from cache")
		}
	}

	now := s.now()
	err = s.store.Mutate(ctx, func(st *registry.State) error {
		for _, name := range st.RecordsFrom(source) {
			rec := st.Records[name]
			rec.UpdateAvailable = false
			rec.LastChecked = &now
			st.Records[name] = rec
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	var outputs []string
	for _, name := range names {
		skill, ok := installed.Find(current.Installed, name)
		if !ok {
			continue
		}
		for _, cli := range skill.Agents {
			logger.G(ctx).WithField("skill", name).WithField("agent", cli).Info("updating skill")
			out, err := s.reinstall(opCtx, name, cli, st.Records[name], false)
			outputs = append(outputs, out)
			if err != nil {
				return Result{Output: strings.Join(outputs, "\n")}, s.finish(ctx, "update source", err)
			}
		}
	}

	snap, err := s.Refresh(ctx)
	return Result{Output: strings.Join(outputs, "\n"), Snapshot: snap}, err
}

// reinstall replaces the installed copy of name for agent with the cached
// one, pulling or verifying the source first when pull is set.
func (s *Service) reinstall(ctx context.Context, name, agent string, rec registry.Record, pull bool) (string, error) {
	path := s.cache.ResolveRelative(rec.OriginalSource, rec.RelativeForkPath)

	if pull {
		if sources.IsCacheRelative(rec.RelativeForkPath) {
			if _, err := s.cache.Pull(ctx, path); err != nil {
				return "", err
			}
		} else if !fswalk.IsDir(path) {
			return "", errors.Wrapf(errdefs.ErrSourceNotFound, "%s", rec.OriginalSource)
		}
	}

	removeOut, err := s.installer.Remove(ctx, name, agent)
	if err != nil {
		return removeOut, err
	}
	addOut, err := s.installer.Add(ctx, installer.AddRequest{
		SourcePath: path,
		Skills:     []string{name},
		Agents:     []string{agent},
		Global:     true,
	})
	out := strings.TrimSpace(removeOut + "\n" + addOut)
	if err != nil {
		return out, err
	}

	now := s.now()
	err = s.store.UpdateRecord(ctx, name, func(r *registry.Record) {
		r.UpdateAvailable = false
		r.LastChecked = &now
	})
	return out, err
}

// CheckSkill runs a staleness check for the source of name and stores the
// result.
func (s *Service) CheckSkill(ctx context.Context, name string) (bool, error) {
	rec, ok, err := s.store.Record(ctx, name)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.Wrapf(errdefs.ErrSkillNotFound, "%s has no registry record", name)
	}

	opCtx, done := s.begin(ctx)
	defer done()

	res, err := s.checker.Check(opCtx, rec.OriginalSource, rec.RelativeForkPath)
	if err != nil {
		return false, s.finish(ctx, "check", err)
	}
	err = s.store.UpdateRecord(ctx, name, func(r *registry.Record) {
		r.UpdateAvailable = res.UpdateAvailable
		checked := res.CheckedAt
		r.LastChecked = &checked
	})
	if err != nil {
		return false, err
	}
	if _, err := s.Refresh(ctx); err != nil {
		return false, err
	}
	return res.UpdateAvailable, nil
}

// SkillMarkdownPath locates the SKILL.md of name: the copy in its source
// cache first, then any agent's installed copy.
func (s *Service) SkillMarkdownPath(ctx context.Context, name string) (string, error) {
	if path, ok, err := s.cachedManifest(ctx, name); err != nil || ok {
		return path, err
	}

	skill, err := s.installedSkill(ctx, name)
	if err != nil {
		return "", err
	}
	for _, cli := range skill.Agents {
		path := filepath.Join(skill.Locations[cli], skills.ManifestFileName)
		if fswalk.IsFile(path) {
			return path, nil
		}
	}
	return "", errors.Wrapf(errdefs.ErrSkillNotFound, "%s", name)
}

// DiffSkill compares the cached SKILL.md of name with the copy installed
// for agent, returning a unified diff. An empty diff means they match.
func (s *Service) DiffSkill(ctx context.Context, name, agent string) (string, error) {
	def, err := s.catalog.Lookup(agent)
	if err != nil {
		return "", err
	}
	cached, ok, err := s.cachedManifest(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(errdefs.ErrSkillNotFound, "%s is not in any source cache", name)
	}
	skill, err := s.installedSkill(ctx, name)
	if err != nil {
		return "", err
	}
	dir, ok := skill.Locations[def.CLIName]
	if !ok {
		return "", errors.Wrapf(errdefs.ErrSkillNotFound, "%s is not installed for %s", name, def.Name)
	}

	source, err := os.ReadFile(cached)
	if err != nil {
		return "", errors.Wrap(err, "failed to read cached manifest")
	}
	target, err := os.ReadFile(filepath.Join(dir, skills.ManifestFileName))
	if err != nil {
		return "", errors.Wrap(err, "failed to read installed manifest")
	}

	return udiff.Unified("source/"+skills.ManifestFileName, def.CLIName+"/"+skills.ManifestFileName, string(source), string(target)), nil
}

func (s *Service) cachedManifest(ctx context.Context, name string) (string, bool, error) {
	rec, ok, err := s.store.Record(ctx, name)
	if err != nil || !ok {
		return "", false, err
	}
	root := s.cache.ResolveRelative(rec.OriginalSource, rec.RelativeForkPath)
	if !fswalk.IsDir(root) {
		return "", false, nil
	}
	found, ok, err := s.discovery.Find(ctx, root, name)
	if err != nil || !ok {
		return "", false, err
	}
	return found.ManifestPath(), true, nil
}

func (s *Service) installedSkill(ctx context.Context, name string) (installed.Skill, error) {
	snap, err := s.Refresh(ctx)
	if err != nil {
		return installed.Skill{}, err
	}
	skill, ok := installed.Find(snap.Installed, name)
	if !ok {
		return installed.Skill{}, errors.Wrapf(errdefs.ErrSkillNotFound, "%s", name)
	}
	return skill, nil
}
