// Package skills finds skill bundles inside a directory tree. A skill is a
// directory holding a SKILL.md whose front matter names it.
package skills

import (
	"path/filepath"
	"sort"

	"github.com/fxding/forks/pkg/manifest"
)

// ManifestFileName is the file that marks a skill directory.
const ManifestFileName = "SKILL.md"

// Skill is a skill found by discovery.
type Skill struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Directory   string            `json:"directory" yaml:"directory"`
	Agents      []string          `json:"agents,omitempty" yaml:"agents,omitempty"`
	Metadata    manifest.Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ManifestPath returns the path of the skill's SKILL.md.
func (s Skill) ManifestPath() string {
	return filepath.Join(s.Directory, ManifestFileName)
}

func (s *Skill) addAgent(agent string) {
	if agent == "" {
		return
	}
	for _, a := range s.Agents {
		if a == agent {
			return
		}
	}
	s.Agents = append(s.Agents, agent)
}

// Names returns the sorted skill names.
func Names(skills []Skill) []string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
