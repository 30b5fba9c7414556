// Package agents holds the catalog of agent tools forks knows how to serve,
// with the project relative and global directories each one reads skills
// from. Paths are templates; a leading "~" stands for the home directory.
package agents

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
)

// HomePlaceholder is substituted with the user's home directory.
const HomePlaceholder = "~"

// Definition describes where one agent tool looks for skills.
type Definition struct {
	Name        string `json:"name" yaml:"name"`
	CLIName     string `json:"cliName" yaml:"cliName"`
	ProjectPath string `json:"projectPath" yaml:"projectPath"`
	GlobalPath  string `json:"globalPath" yaml:"globalPath"`
	ConfigPath  string `json:"configPath" yaml:"configPath"`
}

// GlobalDir resolves the global skills directory against home.
func (d Definition) GlobalDir(home string) string {
	return Expand(d.GlobalPath, home)
}

// ConfigDir resolves the agent's config directory against home.
func (d Definition) ConfigDir(home string) string {
	return Expand(d.ConfigPath, home)
}

// ProjectDir resolves the project skills directory under root.
func (d Definition) ProjectDir(root string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(d.ProjectPath, "/")))
}

// Expand replaces a leading HomePlaceholder in template with home.
func Expand(template, home string) string {
	switch {
	case template == HomePlaceholder:
		return filepath.Clean(home)
	case strings.HasPrefix(template, HomePlaceholder+"/"):
		return filepath.Join(home, filepath.FromSlash(strings.TrimPrefix(template, HomePlaceholder+"/")))
	default:
		return filepath.Clean(filepath.FromSlash(template))
	}
}

// Catalog is an immutable, ordered set of agent definitions indexed by CLI id.
type Catalog struct {
	defs  []Definition
	byCLI map[string]int
}

// New builds a catalog, rejecting duplicate names or CLI ids.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]Definition, len(defs)),
		byCLI: make(map[string]int, len(defs)),
	}
	names := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		if d.Name == "" || d.CLIName == "" {
			return nil, errors.Errorf("agent definition %d is missing a name or CLI id", i)
		}
		if _, dup := c.byCLI[d.CLIName]; dup {
			return nil, errors.Errorf("duplicate agent CLI id %q", d.CLIName)
		}
		key := strings.ToLower(d.Name)
		if _, dup := names[key]; dup {
			return nil, errors.Errorf("duplicate agent name %q", d.Name)
		}
		names[key] = struct{}{}
		c.byCLI[d.CLIName] = i
		c.defs[i] = d
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of agents.
func (c *Catalog) Len() int { return len(c.defs) }

// Get returns the definition for a CLI id.
func (c *Catalog) Get(cliName string) (Definition, bool) {
	i, ok := c.byCLI[cliName]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Lookup resolves a CLI id, or failing that a case-insensitive display name.
func (c *Catalog) Lookup(idOrName string) (Definition, error) {
	if d, ok := c.Get(idOrName); ok {
		return d, nil
	}
	for _, d := range c.defs {
		if strings.EqualFold(d.Name, idOrName) {
			return d, nil
		}
	}
	return Definition{}, errors.Wrapf(errdefs.ErrUnknownAgent, "%q", idOrName)
}

// DisplayName maps a CLI id to its display name, returning the id itself
// when it is not in the catalog.
func (c *Catalog) DisplayName(cliName string) string {
	if d, ok := c.Get(cliName); ok {
		return d.Name
	}
	return cliName
}

// Detected returns agents whose config directory exists under home.
func (c *Catalog) Detected(home string) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if d.ConfigPath == "" {
			continue
		}
		if info, err := os.Stat(d.ConfigDir(home)); err == nil && info.IsDir() {
			out = append(out, d)
		}
	}
	return out
}

// InProject returns agents whose project skills directory exists under root.
func (c *Catalog) InProject(root string) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if info, err := os.Stat(d.ProjectDir(root)); err == nil && info.IsDir() {
			out = append(out, d)
		}
	}
	return out
}
