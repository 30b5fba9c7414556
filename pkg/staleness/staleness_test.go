package staleness

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/registry"
)

type fakeRepo struct {
	mu       sync.Mutex
	root     string
	statuses map[string]string
	fetchErr map[string]error
	fetched  []string
}

func newFakeRepo(root string) *fakeRepo {
	return &fakeRepo{root: root, statuses: map[string]string{}, fetchErr: map[string]error{}}
}

func (f *fakeRepo) ResolveRelative(source, rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func (f *fakeRepo) Fetch(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, filepath.Base(path))
	return "", f.fetchErr[filepath.Base(path)]
}

func (f *fakeRepo) Status(_ context.Context, path string) (string, error) {
	if s, ok := f.statuses[filepath.Base(path)]; ok {
		return s, nil
	}
	return "On branch main\nYour branch is up to date with 'origin/main'.\n", nil
}

const behindStatus = "On branch main\nYour branch is behind 'origin/main' by 2 commits, and can be fast-forwarded.\n"

func TestCheck_Remote(t *testing.T) {
	repo := newFakeRepo(t.TempDir())
	repo.statuses["acme-toolkit"] = behindStatus
	c := NewChecker(repo)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	res, err := c.Check(context.Background(), "acme/toolkit", "repos/acme-toolkit")
	require.NoError(t, err)
	assert.True(t, res.UpdateAvailable)
	assert.Equal(t, now, res.CheckedAt)

	res, err = c.Check(context.Background(), "acme/other", "repos/acme-other")
	require.NoError(t, err)
	assert.False(t, res.UpdateAvailable)
	assert.Equal(t, []string{"acme-toolkit", "acme-other"}, repo.fetched)
}

func TestCheck_RemoteFetchFailurePropagates(t *testing.T) {
	repo := newFakeRepo(t.TempDir())
	repo.fetchErr["acme-toolkit"] = &errdefs.SubprocessError{Command: "git fetch", ExitCode: 128, Output: "could not resolve host"}

	_, err := NewChecker(repo).Check(context.Background(), "acme/toolkit", "repos/acme-toolkit")
	require.Error(t, err)
	out, ok := errdefs.Output(err)
	assert.True(t, ok)
	assert.Equal(t, "could not resolve host", out)
}

func TestCheck_LocalMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")

	_, err := NewChecker(newFakeRepo(t.TempDir())).Check(context.Background(), missing, "")
	assert.True(t, errors.Is(err, errdefs.ErrSourceMissing))
}

func TestCheck_LocalUsesManifestTime(t *testing.T) {
	dir := t.TempDir()
	c := NewChecker(newFakeRepo(t.TempDir()))

	dirTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(dir, dirTime, dirTime))
	res, err := c.Check(context.Background(), dir, "")
	require.NoError(t, err)
	assert.False(t, res.UpdateAvailable)
	assert.True(t, res.CheckedAt.Equal(dirTime))

	manifest := filepath.Join(dir, "SKILL.md")
	require.NoError(t, os.WriteFile(manifest, []byte("---\nname: x\n---\n"), 0o644))
	manifestTime := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(manifest, manifestTime, manifestTime))

	res, err = c.Check(context.Background(), dir, "")
	require.NoError(t, err)
	assert.False(t, res.UpdateAvailable)
	assert.True(t, res.CheckedAt.Equal(manifestTime))
}

type fixture struct {
	store     *registry.Store
	repo      *fakeRepo
	refresher *Refresher
	local     string
	missing   string
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		store:   registry.NewStore(root),
		repo:    newFakeRepo(root),
		local:   t.TempDir(),
		missing: filepath.Join(t.TempDir(), "vanished"),
		now:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	checker := NewChecker(f.repo)
	checker.now = func() time.Time { return f.now }
	f.refresher = NewRefresher(f.store, checker, WithDelay(0))
	f.refresher.now = func() time.Time { return f.now }

	ctx := context.Background()
	remote := registry.Record{OriginalSource: "acme/toolkit", RelativeForkPath: "repos/acme-toolkit", InstalledDate: f.now.Add(-48 * time.Hour)}
	require.NoError(t, f.store.PutRecords(ctx, []string{"pdf-tools", "ocr"}, remote))
	require.NoError(t, f.store.PutRecords(ctx, []string{"mine"}, registry.Record{OriginalSource: f.local}))
	require.NoError(t, f.store.PutRecords(ctx, []string{"lost"}, registry.Record{OriginalSource: f.missing}))
	require.NoError(t, f.store.Track(ctx, "zeta/empty"))
	require.NoError(t, f.store.Track(ctx, f.missing))
	return f
}

func TestRefreshAll(t *testing.T) {
	f := newFixture(t)
	f.repo.statuses["acme-toolkit"] = behindStatus
	ctx := context.Background()

	report, err := f.refresher.RefreshAll(ctx, RefreshOptions{})
	require.NoError(t, err)
	require.NoError(t, report.Err)

	assert.ElementsMatch(t, []string{"acme/toolkit", f.local, "zeta/empty"}, report.Checked)
	assert.Equal(t, []string{"acme/toolkit"}, report.Updates)
	assert.Equal(t, []string{f.missing}, report.Pruned)
	assert.Empty(t, report.Skipped)

	// one fetch per distinct remote origin
	assert.ElementsMatch(t, []string{"acme-toolkit", "zeta-empty"}, f.repo.fetched)

	st, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, st.Records, "lost")
	assert.False(t, st.IsTracked(f.missing))
	assert.True(t, st.IsTracked("zeta/empty"))

	for _, name := range []string{"pdf-tools", "ocr"} {
		rec := st.Records[name]
		assert.True(t, rec.UpdateAvailable, name)
		require.NotNil(t, rec.LastChecked, name)
		assert.True(t, rec.LastChecked.Equal(f.now), name)
	}
	assert.False(t, st.Records["mine"].UpdateAvailable)
	assert.NotNil(t, st.Records["mine"].LastChecked)
}

func TestRefreshAll_Throttled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recent := f.now.Add(-10 * time.Minute)
	require.NoError(t, f.store.UpdateRecord(ctx, "pdf-tools", func(r *registry.Record) { r.LastChecked = &recent }))

	report, err := f.refresher.RefreshAll(ctx, RefreshOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/toolkit"}, report.Skipped)
	assert.NotContains(t, f.repo.fetched, "acme-toolkit")

	f.repo.fetched = nil
	report, err = f.refresher.RefreshAll(ctx, RefreshOptions{Force: true})
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	assert.Contains(t, f.repo.fetched, "acme-toolkit")
}

func TestRefreshAll_CollectsFailures(t *testing.T) {
	f := newFixture(t)
	f.repo.fetchErr["zeta-empty"] = &errdefs.SubprocessError{Command: "git fetch", ExitCode: 128, Output: "repository not found"}
	f.repo.fetchErr["acme-toolkit"] = &errdefs.SubprocessError{Command: "git fetch", ExitCode: 1, Output: "network down"}

	report, err := f.refresher.RefreshAll(context.Background(), RefreshOptions{})
	require.NoError(t, err)
	require.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "repository not found")
	assert.Contains(t, report.Err.Error(), "network down")
	assert.Equal(t, []string{f.local}, report.Checked)
	assert.Equal(t, []string{f.missing}, report.Pruned)
}

func TestRefreshAll_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.repo.fetchErr["acme-toolkit"] = errors.Wrap(errdefs.ErrCancelled, "git fetch")

	_, err := f.refresher.RefreshAll(context.Background(), RefreshOptions{})
	assert.True(t, errors.Is(err, errdefs.ErrCancelled))

	st, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, st.Records, "lost")
	assert.Nil(t, st.Records["pdf-tools"].LastChecked)
}

func TestRefreshAll_DelayHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.refresher.delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.refresher.RefreshAll(ctx, RefreshOptions{})
	assert.True(t, errors.Is(err, errdefs.ErrCancelled))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	s := NewSweeper(f.refresher, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	var reports []Report
	s.OnRefresh = func(_ context.Context, r Report) {
		reports = append(reports, r)
		cancel()
	}

	require.NoError(t, s.Run(ctx))
	require.Len(t, reports, 1)
	assert.Equal(t, []string{f.missing}, reports[0].Pruned)
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(nil, 0)
	assert.Equal(t, DefaultInterval, s.interval)
}

func TestRefreshAll_PrunesTrackedFolderThatVanished(t *testing.T) {
	root := t.TempDir()
	store := registry.NewStore(root)
	gone := filepath.Join(t.TempDir(), "vanished")
	ctx := context.Background()
	require.NoError(t, store.Track(ctx, gone))
	require.NoError(t, store.Track(ctx, "acme/toolkit"))

	repo := newFakeRepo(root)
	refresher := NewRefresher(store, NewChecker(repo), WithDelay(0))

	report, err := refresher.RefreshAll(ctx, RefreshOptions{Force: true})
	require.NoError(t, err)
	require.NoError(t, report.Err)

	assert.Equal(t, []string{gone}, report.Pruned)
	assert.Equal(t, []string{"acme/toolkit"}, report.Checked)
	assert.Equal(t, []string{"acme-toolkit"}, repo.fetched)

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsTracked(gone))
	assert.True(t, st.IsTracked("acme/toolkit"))
}
