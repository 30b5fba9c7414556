package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/manifest"
)

// InternalSkillsEnv opts into skills whose metadata marks them internal.
const InternalSkillsEnv = "INSTALL_INTERNAL_SKILLS"

// DefaultIgnoreDirs are never entered by the fallback walk.
var DefaultIgnoreDirs = []string{"node_modules", ".git", "dist", "build", "__pycache__", "DerivedData"}

var prioritySubdirs = []string{
	"skills",
	"skills/.curated",
	"skills/.experimental",
	"skills/.system",
}

// Discovery locates skills under a root directory.
//
// The search runs in three stages: a SKILL.md at the root, the immediate
// children of a fixed list of priority directories, and only when both found
// nothing, a recursive walk of the whole tree.
type Discovery struct {
	catalog         *agents.Catalog
	includeInternal bool
	ignoreDirs      []string
	maxDepth        int
}

// Option configures a Discovery.
type Option func(*Discovery) error

// WithCatalog sets the agent catalog used for priority paths and agent tags.
func WithCatalog(c *agents.Catalog) Option {
	return func(d *Discovery) error {
		if c == nil {
			return errors.New("agent catalog is nil")
		}
		d.catalog = c
		return nil
	}
}

// WithIncludeInternal overrides the INSTALL_INTERNAL_SKILLS toggle.
func WithIncludeInternal(include bool) Option {
	return func(d *Discovery) error {
		d.includeInternal = include
		return nil
	}
}

// WithIgnoreDirs replaces the directory names skipped by the fallback walk.
// Entries may be doublestar patterns.
func WithIgnoreDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.ignoreDirs = dirs
		return nil
	}
}

// WithMaxDepth bounds the fallback walk.
func WithMaxDepth(depth int) Option {
	return func(d *Discovery) error {
		if depth <= 0 {
			return errors.Errorf("max depth must be positive, got %d", depth)
		}
		d.maxDepth = depth
		return nil
	}
}

// NewDiscovery creates a Discovery with the default catalog and ignore list.
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{
		catalog:         agents.Default(),
		includeInternal: InternalEnabled(),
		ignoreDirs:      DefaultIgnoreDirs,
		maxDepth:        fswalk.DefaultMaxDepth,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// InternalEnabled reports whether INSTALL_INTERNAL_SKILLS is "1" or "true".
func InternalEnabled() bool {
	v := os.Getenv(InternalSkillsEnv)
	return v == "1" || v == "true"
}

type pass struct {
	root   string
	skills []Skill
	index  map[string]int
}

// Discover returns the skills under root sorted by name. Unreadable
// directories and invalid manifests are logged and skipped; the only error
// is a done context.
func (d *Discovery) Discover(ctx context.Context, root string) ([]Skill, error) {
	p := &pass{root: root, index: map[string]int{}}
	log := logger.G(ctx).WithField("root", root)

	d.tryManifest(ctx, p, filepath.Join(root, ManifestFileName))

	for _, dir := range d.priorityDirs(root) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		subdirs, err := fswalk.Subdirs(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WithField("dir", dir).Warn("skipping unreadable skills directory")
			}
			continue
		}
		for _, sub := range subdirs {
			d.tryManifest(ctx, p, filepath.Join(sub, ManifestFileName))
		}
	}

	if len(p.skills) == 0 {
		err := fswalk.Walk(ctx, root, fswalk.Options{
			MaxDepth:  d.maxDepth,
			Descend:   fswalk.All(fswalk.NotHidden, fswalk.NotMatching(d.ignoreDirs...)),
			Candidate: fswalk.NamedExactly(ManifestFileName),
			OnError: func(path string, err error) {
				log.WithError(err).WithField("dir", path).Warn("skipping unreadable directory")
			},
		}, func(e fswalk.Entry) error {
			d.tryManifest(ctx, p, e.Path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(p.skills, func(i, j int) bool { return p.skills[i].Name < p.skills[j].Name })
	log.WithField("count", len(p.skills)).Debug("discovered skills")
	return p.skills, nil
}

// Find returns the skill called name under root.
func (d *Discovery) Find(ctx context.Context, root, name string) (Skill, bool, error) {
	found, err := d.Discover(ctx, root)
	if err != nil {
		return Skill{}, false, err
	}
	for _, s := range found {
		if s.Name == name {
			return s, true, nil
		}
	}
	return Skill{}, false, nil
}

func (d *Discovery) priorityDirs(root string) []string {
	seen := map[string]struct{}{}
	var dirs []string
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	add(root)
	for _, sub := range prioritySubdirs {
		add(filepath.Join(root, filepath.FromSlash(sub)))
	}
	for _, a := range d.catalog.All() {
		add(a.ProjectDir(root))
	}
	return dirs
}

func (d *Discovery) tryManifest(ctx context.Context, p *pass, path string) {
	if !fswalk.IsFile(path) {
		return
	}
	m, err := manifest.ParseFile(path)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("path", path).Debug("skipping invalid skill manifest")
		return
	}
	if m.Metadata.IsInternal() && !d.includeInternal {
		logger.G(ctx).WithField("skill", m.Name).Debug("skipping internal skill")
		return
	}

	agent := InferAgent(d.catalog, relativeTo(p.root, path))
	if i, ok := p.index[m.Name]; ok {
		p.skills[i].addAgent(agent)
		return
	}

	s := Skill{
		Name:        m.Name,
		Description: m.Description,
		Directory:   filepath.Dir(path),
		Metadata:    m.Metadata,
	}
	s.addAgent(agent)
	p.index[m.Name] = len(p.skills)
	p.skills = append(p.skills, s)
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// InferAgent tags a manifest path, relative to the discovery root, with the
// CLI id of the agent whose layout it sits in. Project paths are tried longest
// first so that ".cursor/skills" beats the bare "skills" layout; equal lengths
// keep catalog order. After that "/<cli id>/", "/<name-with-hyphens>/" and
// "/<name_with_underscores>/" are tried. It returns "" when nothing matches.
func InferAgent(c *agents.Catalog, relPath string) string {
	path := strings.ToLower("/" + strings.TrimPrefix(filepath.ToSlash(relPath), "/"))
	all := c.All()

	byFragment := make([]agents.Definition, len(all))
	copy(byFragment, all)
	sort.SliceStable(byFragment, func(i, j int) bool {
		return len(fragment(byFragment[i])) > len(fragment(byFragment[j]))
	})
	for _, a := range byFragment {
		if f := fragment(a); f != "" && strings.Contains(path, f) {
			return a.CLIName
		}
	}

	for _, a := range all {
		name := strings.ToLower(a.Name)
		candidates := []string{
			"/" + strings.ToLower(a.CLIName) + "/",
			"/" + strings.ReplaceAll(name, " ", "-") + "/",
			"/" + strings.ReplaceAll(name, " ", "_") + "/",
		}
		for _, c := range candidates {
			if strings.Contains(path, c) {
				return a.CLIName
			}
		}
	}
	return ""
}

func fragment(a agents.Definition) string {
	return strings.ToLower(strings.Trim(a.ProjectPath, "/ "))
}
