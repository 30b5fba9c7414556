package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTime() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestLoad_MissingFiles(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "forks"))

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Records)
	assert.Empty(t, st.Sources)
	assert.NotNil(t, st.Records)
}

func TestLoad_CorruptFilesReadAsEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, RegistryFileName), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, SourcesFileName), []byte(`{"a": 1}`), 0o644))
	s := NewStore(root)

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Records)
	assert.Empty(t, st.Sources)

	require.NoError(t, s.Track(context.Background(), "acme/toolkit"))
	tracked, err := s.TrackedSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/toolkit"}, tracked)
}

func TestPutRecords_FileFormat(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "forks")
	s := NewStore(root)
	installed := fixedTime()

	err := s.PutRecords(context.Background(), []string{"pdf-tools", "ocr"}, Record{
		OriginalSource:   "acme/toolkit",
		RelativeForkPath: "repos/acme-toolkit",
		InstalledDate:    installed,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, RegistryFileName))
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "pdf-tools")
	entry := raw["pdf-tools"]
	assert.Equal(t, "acme/toolkit", entry["originalSource"])
	assert.Equal(t, "repos/acme-toolkit", entry["relativeForkPath"])
	assert.Equal(t, "2026-03-14T09:26:53Z", entry["installedDate"])
	assert.Equal(t, false, entry["updateAvailable"])
	assert.NotContains(t, entry, "lastChecked")

	sourcesData, err := os.ReadFile(filepath.Join(root, SourcesFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(sourcesData))
}

func TestRecordRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	checked := fixedTime().Add(time.Hour)

	require.NoError(t, s.PutRecords(context.Background(), []string{"x"}, Record{
		OriginalSource:  "/Users/me/skills",
		InstalledDate:   fixedTime(),
		LastChecked:     &checked,
		UpdateAvailable: true,
	}))

	r, ok, err := s.Record(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/Users/me/skills", r.OriginalSource)
	assert.Equal(t, "", r.RelativeForkPath)
	assert.True(t, r.InstalledDate.Equal(fixedTime()))
	require.NotNil(t, r.LastChecked)
	assert.True(t, r.LastChecked.Equal(checked))
	assert.True(t, r.UpdateAvailable)

	_, ok, err = s.Record(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAndRemoveRecord(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.PutRecords(ctx, []string{"x"}, Record{OriginalSource: "a/b", UpdateAvailable: true}))

	require.NoError(t, s.UpdateRecord(ctx, "x", func(r *Record) { r.UpdateAvailable = false }))
	require.NoError(t, s.UpdateRecord(ctx, "ghost", func(r *Record) { t.Fatal("must not be called") }))

	r, _, err := s.Record(ctx, "x")
	require.NoError(t, err)
	assert.False(t, r.UpdateAvailable)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.NotContains(t, records, "ghost")

	require.NoError(t, s.RemoveRecord(ctx, "x"))
	records, err = s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTrackUntrack(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, "zeta/repo"))
	require.NoError(t, s.Track(ctx, "acme/toolkit"))
	require.NoError(t, s.Track(ctx, "acme/toolkit"))

	tracked, err := s.TrackedSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/toolkit", "zeta/repo"}, tracked)

	data, err := os.ReadFile(s.SourcesPath())
	require.NoError(t, err)
	var onDisk []string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, tracked, onDisk)

	require.NoError(t, s.Untrack(ctx, "zeta/repo"))
	tracked, err = s.TrackedSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/toolkit"}, tracked)
}

func TestRemoveSource(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, "acme/toolkit"))
	require.NoError(t, s.PutRecords(ctx, []string{"b", "a"}, Record{OriginalSource: "acme/toolkit"}))
	require.NoError(t, s.PutRecords(ctx, []string{"other"}, Record{OriginalSource: "zeta/repo"}))

	removed, err := s.RemoveSource(ctx, "acme/toolkit")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, removed)

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Sources)
	assert.Equal(t, []string{"other"}, mapKeys(st.Records))
}

func TestMutate_ErrorWritesNothing(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.Track(ctx, "keep"))

	boom := errors.New("boom")
	err := s.Mutate(ctx, func(st *State) error {
		st.Track("discard")
		return boom
	})
	assert.Equal(t, boom, err)

	tracked, err := s.TrackedSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, tracked)
	assert.NoFileExists(t, filepath.Join(s.Root(), lockFileName))
}

func TestMutate_ConcurrentWritersKeepEveryUpdate(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	stores := []*Store{NewStore(root), NewStore(root)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := stores[i%2]
			name := fmt.Sprintf("skill-%02d", i)
			assert.NoError(t, s.PutRecords(ctx, []string{name}, Record{OriginalSource: "acme/toolkit"}))
			assert.NoError(t, s.Track(ctx, fmt.Sprintf("source-%02d", i)))
		}(i)
	}
	wg.Wait()

	st, err := stores[0].Load(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Records, 20)
	assert.Len(t, st.Sources, 20)
}

func TestStateHelpers(t *testing.T) {
	st := newState()
	assert.True(t, st.Track("b"))
	assert.False(t, st.Track("b"))
	assert.True(t, st.Track("a"))
	assert.Equal(t, []string{"a", "b"}, st.Sources)

	st.Records["x"] = Record{OriginalSource: "c"}
	st.Records["y"] = Record{OriginalSource: "a"}
	assert.Equal(t, []string{"a", "b", "c"}, st.Origins())
	assert.Equal(t, []string{"y"}, st.RecordsFrom("a"))

	assert.True(t, st.Untrack("a"))
	assert.False(t, st.Untrack("a"))
	assert.False(t, st.IsTracked("a"))
}

func mapKeys(m map[string]Record) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
