// Package service is the command layer of forks. It owns the components,
// runs every user-facing operation through them, and keeps an immutable
// Snapshot of the installed skills and registry sources that is rebuilt
// after each mutating command.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/installed"
	"github.com/fxding/forks/pkg/installer"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/sources"
	"github.com/fxding/forks/pkg/staleness"
	"github.com/fxding/forks/pkg/telemetry"
)

// Snapshot is the read model at one instant.
type Snapshot struct {
	Installed []installed.Skill `json:"installed" yaml:"installed"`
	Sources   []registry.Source `json:"sources" yaml:"sources"`
	TakenAt   time.Time         `json:"takenAt" yaml:"takenAt"`
}

// Installer runs the external install command.
type Installer interface {
	Add(ctx context.Context, req installer.AddRequest) (string, error)
	Remove(ctx context.Context, name, agent string) (string, error)
}

// Service wires the forks components together.
type Service struct {
	home       string
	catalog    *agents.Catalog
	store      *registry.Store
	cache      *sources.Manager
	discovery  *skills.Discovery
	aggregator *installed.Aggregator
	installer  Installer
	checker    *staleness.Checker
	refresher  *staleness.Refresher

	refreshOpts []staleness.RefresherOption
	now         func() time.Time

	snapshot atomic.Pointer[Snapshot]

	opMu      sync.Mutex
	opSeq     uint64
	ops       map[uint64]context.CancelFunc
	cancelled atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog replaces the built-in agent catalog.
func WithCatalog(c *agents.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithSourceManager replaces the default source cache manager.
func WithSourceManager(m *sources.Manager) Option {
	return func(s *Service) { s.cache = m }
}

// WithDiscovery replaces the default skill discovery.
func WithDiscovery(d *skills.Discovery) Option {
	return func(s *Service) { s.discovery = d }
}

// WithInstaller replaces the default install command adapter.
func WithInstaller(i Installer) Option {
	return func(s *Service) { s.installer = i }
}

// WithStore replaces the default registry store.
func WithStore(st *registry.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithRefresherOptions tunes bulk refresh throttling and pacing.
func WithRefresherOptions(opts ...staleness.RefresherOption) Option {
	return func(s *Service) { s.refreshOpts = append(s.refreshOpts, opts...) }
}

// New creates a Service over the registry at root, resolving agent global
// directories against home.
func New(root, home string, opts ...Option) (*Service, error) {
	s := &Service{home: home, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.catalog == nil {
		s.catalog = agents.Default()
	}
	if s.store == nil {
		s.store = registry.NewStore(root)
	}
	if s.cache == nil {
		s.cache = sources.NewManager(root)
	}
	if s.discovery == nil {
		d, err := skills.NewDiscovery(skills.WithCatalog(s.catalog))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create skill discovery")
		}
		s.discovery = d
	}
	if s.installer == nil {
		s.installer = installer.New()
	}
	s.aggregator = installed.NewAggregator(s.catalog, home)
	s.checker = staleness.NewChecker(s.cache)
	s.refresher = staleness.NewRefresher(s.store, s.checker, s.refreshOpts...)
	return s, nil
}

func (s *Service) Catalog() *agents.Catalog        { return s.catalog }
func (s *Service) Store() *registry.Store          { return s.store }
func (s *Service) Sources() *sources.Manager       { return s.cache }
func (s *Service) Refresher() *staleness.Refresher { return s.refresher }
func (s *Service) Home() string                    { return s.home }

// Snapshot returns the last computed read model, computing it on first use.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the read model from the registry and the filesystem.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.aggregator.Aggregate(ctx, st.Records)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate installed skills")
	}
	srcs, err := registry.ListSources(ctx, st, s.cache, s.discovery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sources")
	}

	snap := &Snapshot{Installed: list, Sources: srcs, TakenAt: s.now()}
	s.snapshot.Store(snap)
	return snap, nil
}

// Cancel stops every operation in flight, terminating their subprocesses.
// Each of them then fails with errdefs.ErrCancelled.
func (s *Service) Cancel() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if len(s.ops) == 0 {
		return
	}
	s.cancelled.Store(true)
	for _, cancel := range s.ops {
		cancel()
	}
}

// Cancelled reports whether the last operation was cancelled.
func (s *Service) Cancelled() bool {
	return s.cancelled.Load()
}

// begin starts a cancellable operation.
func (s *Service) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	s.opMu.Lock()
	if s.ops == nil {
		s.ops = make(map[uint64]context.CancelFunc)
	}
	s.opSeq++
	id := s.opSeq
	s.ops[id] = cancel
	if len(s.ops) == 1 {
		s.cancelled.Store(false)
	}
	s.opMu.Unlock()

	return ctx, func() {
		s.opMu.Lock()
		delete(s.ops, id)
		s.opMu.Unlock()
		cancel()
	}
}

// finish maps failures of a cancelled operation to errdefs.ErrCancelled.
func (s *Service) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if s.cancelled.Load() || errdefs.IsCancelled(err) {
		logger.G(ctx).WithField("operation", op).Warn("operation cancelled")
		telemetry.AddEvent(ctx, "operation cancelled", telemetry.OperationKey.String(op))
		if errdefs.IsCancelled(err) {
			return err
		}
		return errors.Wrap(errdefs.ErrCancelled, op)
	}
	return err
}

// resolveAgents maps agent names or CLI ids to CLI ids.
func (s *Service) resolveAgents(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		def, err := s.catalog.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, def.CLIName)
	}
	return out, nil
}
