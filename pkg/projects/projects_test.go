package projects

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/errdefs"
)

func writeSkill(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("---\nname: "+name+"\n---\n"), 0o644))
}

func TestAddListRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(t.TempDir(), agents.Default())
	beta := filepath.Join(t.TempDir(), "beta")
	alpha := filepath.Join(t.TempDir(), "alpha")
	require.NoError(t, os.Mkdir(beta, 0o755))
	require.NoError(t, os.Mkdir(alpha, 0o755))

	pb, err := s.Add(ctx, beta)
	require.NoError(t, err)
	assert.Equal(t, "beta", pb.Name)
	assert.NotEmpty(t, pb.ID)
	pa, err := s.Add(ctx, alpha)
	require.NoError(t, err)

	_, err = s.Add(ctx, beta)
	assert.True(t, errors.Is(err, errdefs.ErrProjectExists))
	_, err = s.Add(ctx, filepath.Join(beta, "missing"))
	assert.True(t, errors.Is(err, errdefs.ErrProjectNotFound))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)

	got, err := s.Get(ctx, pa.ID)
	require.NoError(t, err)
	assert.Equal(t, alpha, got.Path)

	require.NoError(t, s.Remove(ctx, beta))
	assert.True(t, errors.Is(s.Remove(ctx, beta), errdefs.ErrProjectNotFound))
	assert.DirExists(t, beta)

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Project{pa}, list)
}

func TestList_PrunesVanished(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewStore(root, agents.Default())
	dir := t.TempDir()
	gone := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.Mkdir(gone, 0o755))

	_, err := s.Add(ctx, dir)
	require.NoError(t, err)
	_, err = s.Add(ctx, gone)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(gone))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, dir, list[0].Path)

	reloaded, err := NewStore(root, agents.Default()).List(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded, 1)
}

func TestSkillsAndUninstall(t *testing.T) {
	ctx := context.Background()
	s := NewStore(t.TempDir(), agents.Default())
	dir := t.TempDir()
	writeSkill(t, filepath.Join(dir, ".claude", "skills", "zeta"), "zeta")
	writeSkill(t, filepath.Join(dir, ".claude", "skills", "alpha-dir"), "alpha")
	writeSkill(t, filepath.Join(dir, ".cursor", "skills", "beta"), "beta")

	p, err := s.Add(ctx, dir)
	require.NoError(t, err)

	var ids []string
	for _, d := range s.Agents(p) {
		ids = append(ids, d.CLIName)
	}
	assert.Equal(t, []string{"claude-code", "cursor"}, ids)

	bySkill, err := s.Skills(ctx, p)
	require.NoError(t, err)
	require.Len(t, bySkill, 2)
	assert.Equal(t, "claude-code", bySkill[0].Agent)
	require.Len(t, bySkill[0].Skills, 2)
	assert.Equal(t, "alpha", bySkill[0].Skills[0].Name)

	require.NoError(t, s.UninstallSkill(ctx, p, "Claude Code", "alpha"))
	assert.NoDirExists(t, filepath.Join(dir, ".claude", "skills", "alpha-dir"))

	err = s.UninstallSkill(ctx, p, "cursor", "alpha")
	assert.True(t, errors.Is(err, errdefs.ErrSkillNotFound))
	err = s.UninstallSkill(ctx, p, "nano", "beta")
	assert.True(t, errors.Is(err, errdefs.ErrUnknownAgent))
}
