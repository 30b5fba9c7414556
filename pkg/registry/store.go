// Package registry persists what forks knows between runs: which source
// every installed skill came from (registry.json) and the sources the user
// tracks without having installed anything from them yet (sources.json).
//
// Both files live in the registry root. Every read-modify-write holds an
// in-process mutex and an exclusive lock file, so a background refresh and
// an install cannot overwrite each other's changes.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/logger"
)

const (
	RegistryFileName = "registry.json"
	SourcesFileName  = "sources.json"
	lockFileName     = ".registry.lock"
)

// Record is the provenance of one installed skill.
type Record struct {
	OriginalSource   string     `json:"originalSource" yaml:"originalSource" jsonschema:"description=Source the skill was installed from: owner/repo shorthand or URL or absolute path"`
	RelativeForkPath string     `json:"relativeForkPath" yaml:"relativeForkPath" jsonschema:"description=Cache path relative to the registry root; empty for local sources"`
	InstalledDate    time.Time  `json:"installedDate" yaml:"installedDate"`
	LastChecked      *time.Time `json:"lastChecked,omitempty" yaml:"lastChecked,omitempty"`
	UpdateAvailable  bool       `json:"updateAvailable" yaml:"updateAvailable"`
}

// State is the full persisted content.
type State struct {
	Records map[string]Record
	Sources []string
}

func newState() State {
	return State{Records: map[string]Record{}, Sources: []string{}}
}

// IsTracked reports whether source is in the tracked set.
func (st *State) IsTracked(source string) bool {
	for _, s := range st.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Track adds source to the tracked set.
func (st *State) Track(source string) bool {
	if st.IsTracked(source) {
		return false
	}
	st.Sources = append(st.Sources, source)
	sort.Strings(st.Sources)
	return true
}

// Untrack removes source from the tracked set.
func (st *State) Untrack(source string) bool {
	for i, s := range st.Sources {
		if s == source {
			st.Sources = append(st.Sources[:i], st.Sources[i+1:]...)
			return true
		}
	}
	return false
}

// RecordsFrom returns the names of records whose origin is source, sorted.
func (st *State) RecordsFrom(source string) []string {
	var names []string
	for name, r := range st.Records {
		if r.OriginalSource == source {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveSource drops source from the tracked set together with every record
// that originates from it, returning the removed skill names.
func (st *State) RemoveSource(source string) []string {
	st.Untrack(source)
	names := st.RecordsFrom(source)
	for _, name := range names {
		delete(st.Records, name)
	}
	return names
}

// Origins returns the union of tracked sources and record origins, sorted.
func (st *State) Origins() []string {
	set := map[string]struct{}{}
	for _, s := range st.Sources {
		set[s] = struct{}{}
	}
	for _, r := range st.Records {
		set[r.OriginalSource] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Store reads and writes the registry files.
type Store struct {
	root        string
	mu          sync.Mutex
	lockTimeout time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLockTimeout bounds how long Mutate waits for the lock file.
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.lockTimeout = d }
}

// NewStore creates a Store rooted at root. The directory is created on the
// first write.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Root() string         { return s.root }
func (s *Store) RegistryPath() string { return filepath.Join(s.root, RegistryFileName) }
func (s *Store) SourcesPath() string  { return filepath.Join(s.root, SourcesFileName) }

// Load reads both files. Missing or corrupt files read as empty.
func (s *Store) Load(ctx context.Context) (State, error) {
	st := newState()

	if data, ok := s.readFile(ctx, s.RegistryPath()); ok {
		var records map[string]Record
		if err := json.Unmarshal(data, &records); err != nil {
			logger.G(ctx).WithError(err).WithField("path", s.RegistryPath()).Warn("registry file is corrupt, treating as empty")
		} else if records != nil {
			st.Records = records
		}
	}

	if data, ok := s.readFile(ctx, s.SourcesPath()); ok {
		var tracked []string
		if err := json.Unmarshal(data, &tracked); err != nil {
			logger.G(ctx).WithError(err).WithField("path", s.SourcesPath()).Warn("sources file is corrupt, treating as empty")
		} else {
			for _, src := range tracked {
				st.Track(src)
			}
		}
	}

	return st, nil
}

func (s *Store) readFile(ctx context.Context, path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.G(ctx).WithError(err).WithField("path", path).Warn("failed to read registry file")
		}
		return nil, false
	}
	return data, true
}

// Mutate applies fn to the current state under the registry lock and
// writes back whichever files changed. When fn fails nothing is written.
func (s *Store) Mutate(ctx context.Context, fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errors.Wrap(err, "failed to create registry directory")
	}

	return withLock(ctx, filepath.Join(s.root, lockFileName), s.lockTimeout, func() error {
		st, err := s.Load(ctx)
		if err != nil {
			return err
		}
		beforeRecords, beforeSources, err := encode(st)
		if err != nil {
			return err
		}

		if err := fn(&st); err != nil {
			return err
		}

		afterRecords, afterSources, err := encode(st)
		if err != nil {
			return err
		}
		if !bytes.Equal(beforeRecords, afterRecords) || !fileExists(s.RegistryPath()) {
			if err := writeAtomic(s.RegistryPath(), afterRecords); err != nil {
				return err
			}
		}
		if !bytes.Equal(beforeSources, afterSources) || !fileExists(s.SourcesPath()) {
			if err := writeAtomic(s.SourcesPath(), afterSources); err != nil {
				return err
			}
		}
		return nil
	})
}

func encode(st State) ([]byte, []byte, error) {
	records := st.Records
	if records == nil {
		records = map[string]Record{}
	}
	recordData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal registry")
	}
	tracked := st.Sources
	if tracked == nil {
		tracked = []string{}
	}
	sourceData, err := json.MarshalIndent(tracked, "", "  ")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal sources")
	}
	return recordData, sourceData, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Records returns all provenance records.
func (s *Store) Records(ctx context.Context) (map[string]Record, error) {
	st, err := s.Load(ctx)
	return st.Records, err
}

// Record returns the provenance of one skill.
func (s *Store) Record(ctx context.Context, name string) (Record, bool, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	r, ok := st.Records[name]
	return r, ok, nil
}

// TrackedSources returns the tracked source set, sorted.
func (s *Store) TrackedSources(ctx context.Context) ([]string, error) {
	st, err := s.Load(ctx)
	return st.Sources, err
}

// PutRecords stores rec under every name.
func (s *Store) PutRecords(ctx context.Context, names []string, rec Record) error {
	return s.Mutate(ctx, func(st *State) error {
		for _, name := range names {
			st.Records[name] = rec
		}
		return nil
	})
}

// UpdateRecord applies fn to an existing record. Missing names are ignored.
func (s *Store) UpdateRecord(ctx context.Context, name string, fn func(r *Record)) error {
	return s.Mutate(ctx, func(st *State) error {
		r, ok := st.Records[name]
		if !ok {
			return nil
		}
		fn(&r)
		st.Records[name] = r
		return nil
	})
}

// RemoveRecord deletes the provenance of one skill.
func (s *Store) RemoveRecord(ctx context.Context, name string) error {
	return s.Mutate(ctx, func(st *State) error {
		delete(st.Records, name)
		return nil
	})
}

// Track adds a source to the tracked set.
func (s *Store) Track(ctx context.Context, source string) error {
	return s.Mutate(ctx, func(st *State) error {
		st.Track(source)
		return nil
	})
}

// Untrack removes a source from the tracked set, leaving records alone.
func (s *Store) Untrack(ctx context.Context, source string) error {
	return s.Mutate(ctx, func(st *State) error {
		st.Untrack(source)
		return nil
	})
}

// RemoveSource untracks source and deletes every record that originates
// from it.
func (s *Store) RemoveSource(ctx context.Context, source string) ([]string, error) {
	var removed []string
	err := s.Mutate(ctx, func(st *State) error {
		removed = st.RemoveSource(source)
		return nil
	})
	return removed, err
}
