// Package installed builds the view of skills currently installed in the
// agents' global directories, joined with their registry provenance.
package installed

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/manifest"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/telemetry"
)

const scanConcurrency = 8

// Skill is one installed skill name across every agent hosting it.
type Skill struct {
	Name            string     `json:"name" yaml:"name"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
	Agents          []string   `json:"agents" yaml:"agents"`
	Source          string     `json:"source,omitempty" yaml:"source,omitempty"`
	InstalledDate   *time.Time `json:"installedDate,omitempty" yaml:"installedDate,omitempty"`
	LastChecked     *time.Time `json:"lastChecked,omitempty" yaml:"lastChecked,omitempty"`
	UpdateAvailable bool       `json:"updateAvailable" yaml:"updateAvailable"`
	// Locations maps agent CLI id to the installed skill directory.
	Locations map[string]string `json:"locations" yaml:"locations"`
}

// HasAgent reports whether the skill is installed for the agent CLI id.
func (s Skill) HasAgent(cli string) bool {
	_, ok := s.Locations[cli]
	return ok
}

// Find returns the skill called name.
func Find(list []Skill, name string) (Skill, bool) {
	for _, s := range list {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// Aggregator scans agent install directories.
type Aggregator struct {
	catalog *agents.Catalog
	home    string
}

// NewAggregator creates an Aggregator resolving global paths against home.
func NewAggregator(catalog *agents.Catalog, home string) *Aggregator {
	return &Aggregator{catalog: catalog, home: home}
}

// Aggregate scans every agent's global directory and folds the results by
// skill name, sorted. Agent membership is unioned in catalog order; the
// description and provenance come from the first agent the skill was seen
// under.
func (a *Aggregator) Aggregate(ctx context.Context, records map[string]registry.Record) ([]Skill, error) {
	return telemetry.WithSpanResult(ctx, "installed.aggregate", func(ctx context.Context) ([]Skill, error) {
		defs := a.catalog.All()
		perAgent := make([][]skills.Skill, len(defs))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(scanConcurrency)
		for i, def := range defs {
			g.Go(func() error {
				found, err := ScanDir(gctx, def.GlobalDir(a.home))
				if err != nil {
					return err
				}
				perAgent[i] = found
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		byName := map[string]*Skill{}
		for i, def := range defs {
			for _, found := range perAgent[i] {
				fold(byName, def.CLIName, found, records)
			}
		}

		out := make([]Skill, 0, len(byName))
		for _, s := range byName {
			out = append(out, *s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		telemetry.SetAttributes(ctx, telemetry.CountKey.Int(len(out)))
		return out, nil
	})
}

func fold(byName map[string]*Skill, cli string, found skills.Skill, records map[string]registry.Record) {
	existing, ok := byName[found.Name]
	if !ok {
		s := &Skill{
			Name:        found.Name,
			Description: found.Description,
			Agents:      []string{cli},
			Locations:   map[string]string{cli: found.Directory},
		}
		if rec, ok := records[found.Name]; ok {
			s.Source = rec.OriginalSource
			installed := rec.InstalledDate
			s.InstalledDate = &installed
			s.LastChecked = rec.LastChecked
			s.UpdateAvailable = rec.UpdateAvailable
		}
		byName[found.Name] = s
		return
	}
	if existing.HasAgent(cli) {
		return
	}
	existing.Agents = append(existing.Agents, cli)
	existing.Locations[cli] = found.Directory
}

// ScanDir parses SKILL.md in every immediate subdirectory of dir. A missing
// dir yields nothing; unreadable entries are logged and skipped. The only
// error returned is a cancelled ctx.
func ScanDir(ctx context.Context, dir string) ([]skills.Skill, error) {
	subdirs, err := fswalk.Subdirs(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.G(ctx).WithError(err).WithField("dir", dir).Warn("failed to read skills directory")
		}
		return nil, nil
	}

	var out []skills.Skill
	for _, sub := range subdirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(sub, skills.ManifestFileName)
		if !fswalk.IsFile(path) {
			continue
		}
		m, err := manifest.ParseFile(path)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("path", path).Debug("skipping unparsable manifest")
			continue
		}
		out = append(out, skills.Skill{
			Name:        m.Name,
			Description: m.Description,
			Directory:   sub,
			Metadata:    m.Metadata,
		})
	}
	return out, nil
}
