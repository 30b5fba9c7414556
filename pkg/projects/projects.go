// Package projects tracks project directories whose agent skill folders
// forks manages alongside the global ones.
package projects

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/installed"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/skills"
)

// FileName is the projects file below the registry root.
const FileName = "projects.json"

// Project is a tracked project directory.
type Project struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	AddedDate time.Time `json:"addedDate" yaml:"addedDate"`
}

// AgentSkills lists the skills one agent has in a project.
type AgentSkills struct {
	Agent  string         `json:"agent" yaml:"agent"`
	Skills []skills.Skill `json:"skills" yaml:"skills"`
}

// Store persists projects in projects.json.
type Store struct {
	path    string
	catalog *agents.Catalog
	mu      sync.Mutex
	now     func() time.Time
}

// NewStore creates a Store under the registry root.
func NewStore(root string, catalog *agents.Catalog) *Store {
	return &Store{
		path:    filepath.Join(root, FileName),
		catalog: catalog,
		now:     time.Now,
	}
}

func (s *Store) load(ctx context.Context) []Project {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.G(ctx).WithError(err).WithField("path", s.path).Warn("failed to read projects file")
		}
		return []Project{}
	}
	var list []Project
	if err := json.Unmarshal(data, &list); err != nil {
		logger.G(ctx).WithError(err).WithField("path", s.path).Warn("projects file is corrupt, treating as empty")
		return []Project{}
	}
	return list
}

func (s *Store) save(list []Project) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create registry directory")
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal projects")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write projects file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to replace projects file")
	}
	return nil
}

// List returns the tracked projects sorted by name. Projects whose
// directory has disappeared are dropped from the file.
func (s *Store) List(ctx context.Context) ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load(ctx)
	kept := list[:0]
	for _, p := range list {
		if fswalk.IsDir(p.Path) {
			kept = append(kept, p)
			continue
		}
		logger.G(ctx).WithField("path", p.Path).Info("project directory is gone, removing it")
	}
	if len(kept) != len(list) {
		if err := s.save(kept); err != nil {
			return nil, err
		}
	}

	out := append([]Project{}, kept...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Add tracks the directory at path, named after its base name.
func (s *Store) Add(ctx context.Context, path string) (Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Project{}, errors.Wrapf(err, "failed to resolve %s", path)
	}
	if !fswalk.IsDir(abs) {
		return Project{}, errors.Wrapf(errdefs.ErrProjectNotFound, "directory %s does not exist", abs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load(ctx)
	for _, p := range list {
		if p.Path == abs {
			return Project{}, errors.Wrapf(errdefs.ErrProjectExists, "%s", abs)
		}
	}

	p := Project{
		ID:        uuid.NewString(),
		Name:      filepath.Base(abs),
		Path:      abs,
		AddedDate: s.now().UTC(),
	}
	if err := s.save(append(list, p)); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Get finds a project by id or path.
func (s *Store) Get(ctx context.Context, idOrPath string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.load(ctx) {
		if matches(p, idOrPath) {
			return p, nil
		}
	}
	return Project{}, errors.Wrapf(errdefs.ErrProjectNotFound, "%s", idOrPath)
}

// Remove stops tracking a project. Its files are untouched.
func (s *Store) Remove(ctx context.Context, idOrPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load(ctx)
	for i, p := range list {
		if matches(p, idOrPath) {
			return s.save(append(list[:i], list[i+1:]...))
		}
	}
	return errors.Wrapf(errdefs.ErrProjectNotFound, "%s", idOrPath)
}

func matches(p Project, idOrPath string) bool {
	if p.ID == idOrPath || p.Path == idOrPath {
		return true
	}
	abs, err := filepath.Abs(idOrPath)
	return err == nil && p.Path == abs
}

// Agents returns the agents with a skills directory in the project.
func (s *Store) Agents(p Project) []agents.Definition {
	return s.catalog.InProject(p.Path)
}

// Skills lists the skills of every agent present in the project.
func (s *Store) Skills(ctx context.Context, p Project) ([]AgentSkills, error) {
	var out []AgentSkills
	for _, def := range s.Agents(p) {
		found, err := installed.ScanDir(ctx, def.ProjectDir(p.Path))
		if err != nil {
			return nil, err
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
		out = append(out, AgentSkills{Agent: def.CLIName, Skills: found})
	}
	return out, nil
}

// UninstallSkill deletes the directory of the skill called name from the
// agent's project skills folder.
func (s *Store) UninstallSkill(ctx context.Context, p Project, agent, name string) error {
	def, err := s.catalog.Lookup(agent)
	if err != nil {
		return err
	}
	found, err := installed.ScanDir(ctx, def.ProjectDir(p.Path))
	if err != nil {
		return err
	}
	for _, sk := range found {
		if sk.Name == name {
			logger.G(ctx).WithField("dir", sk.Directory).Info("removing project skill")
			return errors.Wrapf(os.RemoveAll(sk.Directory), "failed to remove %s", sk.Directory)
		}
	}
	return errors.Wrapf(errdefs.ErrSkillNotFound, "%s in %s for %s", name, p.Name, def.Name)
}
