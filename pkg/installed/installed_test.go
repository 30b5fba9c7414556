package installed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/registry"
)

func testCatalog(t *testing.T) *agents.Catalog {
	t.Helper()
	c, err := agents.New([]agents.Definition{
		{Name: "Claude Code", CLIName: "claude-code", ProjectPath: ".claude/skills", GlobalPath: "~/.claude/skills", ConfigPath: "~/.claude"},
		{Name: "Cursor", CLIName: "cursor", ProjectPath: ".cursor/skills", GlobalPath: "~/.cursor/skills", ConfigPath: "~/.cursor"},
		{Name: "Codex", CLIName: "codex", ProjectPath: ".codex/skills", GlobalPath: "~/.codex/skills", ConfigPath: "~/.codex"},
	})
	require.NoError(t, err)
	return c
}

func install(t *testing.T, dir, name, description string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n# " + name + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func TestAggregate_MergesAcrossAgents(t *testing.T) {
	home := t.TempDir()
	install(t, filepath.Join(home, ".claude", "skills"), "x", "from claude")
	install(t, filepath.Join(home, ".cursor", "skills"), "x", "from cursor")
	install(t, filepath.Join(home, ".cursor", "skills"), "a-first", "alpha")

	installedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	records := map[string]registry.Record{
		"x": {OriginalSource: "acme/toolkit", RelativeForkPath: "repos/acme-toolkit", InstalledDate: installedAt, UpdateAvailable: true},
	}

	got, err := NewAggregator(testCatalog(t), home).Aggregate(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a-first", got[0].Name)
	assert.Equal(t, []string{"cursor"}, got[0].Agents)
	assert.Empty(t, got[0].Source)
	assert.Nil(t, got[0].InstalledDate)

	x := got[1]
	assert.Equal(t, "x", x.Name)
	assert.Equal(t, []string{"claude-code", "cursor"}, x.Agents)
	assert.Equal(t, "from claude", x.Description)
	assert.Equal(t, "acme/toolkit", x.Source)
	require.NotNil(t, x.InstalledDate)
	assert.True(t, x.InstalledDate.Equal(installedAt))
	assert.True(t, x.UpdateAvailable)
	assert.Equal(t, filepath.Join(home, ".cursor", "skills", "x"), x.Locations["cursor"])
	assert.True(t, x.HasAgent("claude-code"))
	assert.False(t, x.HasAgent("codex"))
}

func TestAggregate_NoAgentDirs(t *testing.T) {
	got, err := NewAggregator(testCatalog(t), t.TempDir()).Aggregate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregate_Cancelled(t *testing.T) {
	home := t.TempDir()
	install(t, filepath.Join(home, ".claude", "skills"), "x", "d")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAggregator(testCatalog(t), home).Aggregate(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	install(t, dir, "good", "ok")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "no-manifest"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken", "SKILL.md"), []byte("no front matter"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.md"), []byte("---\nname: stray\n---\n"), 0o644))

	got, err := ScanDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Name)
	assert.Equal(t, filepath.Join(dir, "good"), got[0].Directory)

	got, err = ScanDir(context.Background(), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanDir_FollowsSymlinks(t *testing.T) {
	store := t.TempDir()
	install(t, store, "linked", "via symlink")
	dir := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(store, "linked"), filepath.Join(dir, "linked")))

	got, err := ScanDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "linked", got[0].Name)
}

func TestFind(t *testing.T) {
	list := []Skill{{Name: "a"}, {Name: "b"}}
	s, ok := Find(list, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", s.Name)
	_, ok = Find(list, "c")
	assert.False(t, ok)
}
