package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxding/forks/pkg/errdefs"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 33, c.Len())

	all := c.All()
	assert.Equal(t, "amp", all[0].CLIName)
	assert.Equal(t, "zencoder", all[len(all)-1].CLIName)

	all[0].Name = "mutated"
	assert.Equal(t, "Amp", c.All()[0].Name)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]Definition{
		{Name: "One", CLIName: "one"},
		{Name: "Two", CLIName: "one"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent CLI id")

	_, err = New([]Definition{
		{Name: "Same", CLIName: "a"},
		{Name: "same", CLIName: "b"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent name")

	_, err = New([]Definition{{Name: "", CLIName: "x"}})
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	c := Default()

	d, err := c.Lookup("claude-code")
	require.NoError(t, err)
	assert.Equal(t, "Claude Code", d.Name)

	d, err = c.Lookup("roo code")
	require.NoError(t, err)
	assert.Equal(t, "roo", d.CLIName)

	_, err = c.Lookup("emacs")
	assert.True(t, errors.Is(err, errdefs.ErrUnknownAgent))
}

func TestDisplayName(t *testing.T) {
	c := Default()
	assert.Equal(t, "Kilo Code", c.DisplayName("kilo"))
	assert.Equal(t, "unknown-id", c.DisplayName("unknown-id"))
}

func TestExpand(t *testing.T) {
	home := filepath.FromSlash("/home/dev")

	assert.Equal(t, filepath.FromSlash("/home/dev/.claude/skills"), Expand("~/.claude/skills/", home))
	assert.Equal(t, home, Expand("~", home))
	assert.Equal(t, filepath.FromSlash("/opt/skills"), Expand("/opt/skills/", home))
	assert.Equal(t, filepath.FromSlash("~user/skills"), Expand("~user/skills", home))
}

func TestDefinitionDirs(t *testing.T) {
	d, ok := Default().Get("windsurf")
	require.True(t, ok)

	assert.Equal(t, filepath.FromSlash("/h/.codeium/windsurf/skills"), d.GlobalDir(filepath.FromSlash("/h")))
	assert.Equal(t, filepath.FromSlash("/h/.codeium/windsurf"), d.ConfigDir(filepath.FromSlash("/h")))
	assert.Equal(t, filepath.FromSlash("/repo/.windsurf/skills"), d.ProjectDir(filepath.FromSlash("/repo")))
}

func TestDetected(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "opencode"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cursor"), []byte("not a dir"), 0o644))

	var ids []string
	for _, d := range Default().Detected(home) {
		ids = append(ids, d.CLIName)
	}
	assert.Equal(t, []string{"claude-code", "opencode"}, ids)
}

func TestInProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".agents", "skills"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cursor", "skills"), 0o755))

	var ids []string
	for _, d := range Default().InProject(root) {
		ids = append(ids, d.CLIName)
	}
	assert.Equal(t, []string{"amp", "cursor", "kimi-cli"}, ids)
}
