package staleness

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/sources"
	"github.com/fxding/forks/pkg/telemetry"
)

const (
	DefaultMinInterval = time.Hour
	DefaultDelay       = 2 * time.Second
)

// RefreshOptions tunes one bulk refresh.
type RefreshOptions struct {
	// Force checks every source regardless of when it was last checked.
	Force bool
}

// Report summarises a bulk refresh. Sources appear in at most one of
// Checked, Pruned and Skipped; Updates is the subset of Checked that is
// behind upstream.
type Report struct {
	Checked []string `json:"checked" yaml:"checked"`
	Updates []string `json:"updates" yaml:"updates"`
	Pruned  []string `json:"pruned" yaml:"pruned"`
	Skipped []string `json:"skipped" yaml:"skipped"`
	// Err collects per-source failures that did not stop the refresh.
	Err error `json:"-" yaml:"-"`
}

// Refresher checks every registry source and writes the results back.
type Refresher struct {
	store       *registry.Store
	checker     *Checker
	minInterval time.Duration
	delay       time.Duration
	now         func() time.Time
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithMinInterval skips sources checked more recently than d.
func WithMinInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) { r.minInterval = d }
}

// WithDelay pauses d between consecutive source checks.
func WithDelay(d time.Duration) RefresherOption {
	return func(r *Refresher) { r.delay = d }
}

// NewRefresher creates a Refresher.
func NewRefresher(store *registry.Store, checker *Checker, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:       store,
		checker:     checker,
		minInterval: DefaultMinInterval,
		delay:       DefaultDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type target struct {
	origin      string
	rel         string
	lastChecked *time.Time
}

// targets groups records by origin so each source is checked once, and adds
// tracked sources without records.
func targets(st registry.State) []target {
	byOrigin := map[string]*target{}
	names := make([]string, 0, len(st.Records))
	for name := range st.Records {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rec := st.Records[name]
		t, ok := byOrigin[rec.OriginalSource]
		if !ok {
			t = &target{origin: rec.OriginalSource, rel: rec.RelativeForkPath}
			byOrigin[rec.OriginalSource] = t
		}
		if rec.LastChecked != nil && (t.lastChecked == nil || rec.LastChecked.After(*t.lastChecked)) {
			checked := *rec.LastChecked
			t.lastChecked = &checked
		}
	}
	for _, src := range st.Sources {
		if _, ok := byOrigin[src]; !ok {
			byOrigin[src] = &target{origin: src, rel: sources.RelativeCachePath(src)}
		}
	}

	out := make([]target, 0, len(byOrigin))
	for _, t := range byOrigin {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].origin < out[j].origin })
	return out
}

// RefreshAll checks every source once and persists the outcome in a single
// registry write. Missing local sources are pruned together with their
// records. The returned error is non-nil only when the refresh was
// cancelled or the registry could not be read or written; per-source
// failures are reported in Report.Err.
func (r *Refresher) RefreshAll(ctx context.Context, opts RefreshOptions) (Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "staleness.refresh_all")
	defer span.End()

	log := logger.G(ctx)
	report := Report{Checked: []string{}, Updates: []string{}, Pruned: []string{}, Skipped: []string{}}

	st, err := r.store.Load(ctx)
	if err != nil {
		return report, err
	}

	results := map[string]Result{}
	var errs *multierror.Error
	checked := 0

	for _, t := range targets(st) {
		if !opts.Force && t.lastChecked != nil && r.now().Sub(*t.lastChecked) < r.minInterval {
			report.Skipped = append(report.Skipped, t.origin)
			continue
		}

		if checked > 0 && r.delay > 0 {
			select {
			case <-ctx.Done():
				return report, errors.Wrap(errdefs.ErrCancelled, "registry refresh")
			case <-time.After(r.delay):
			}
		}
		checked++

		log.WithField("source", t.origin).Info("checking source for updates")
		res, err := r.checker.Check(ctx, t.origin, t.rel)
		switch {
		case err == nil:
			results[t.origin] = res
			report.Checked = append(report.Checked, t.origin)
			if res.UpdateAvailable {
				report.Updates = append(report.Updates, t.origin)
				log.WithField("source", t.origin).Info("update available")
			}
		case errdefs.IsCancelled(err) || ctx.Err() != nil:
			return report, errors.Wrap(errdefs.ErrCancelled, "registry refresh")
		case errors.Is(err, errdefs.ErrSourceMissing):
			log.WithField("source", t.origin).Warn("local source missing, removing from registry")
			report.Pruned = append(report.Pruned, t.origin)
		default:
			log.WithError(err).WithField("source", t.origin).Warn("failed to check source")
			errs = multierror.Append(errs, err)
		}
	}

	if len(results) > 0 || len(report.Pruned) > 0 {
		err = r.store.Mutate(ctx, func(st *registry.State) error {
			for origin, res := range results {
				for _, name := range st.RecordsFrom(origin) {
					rec := st.Records[name]
					rec.UpdateAvailable = res.UpdateAvailable
					checkedAt := res.CheckedAt
					rec.LastChecked = &checkedAt
					st.Records[name] = rec
				}
			}
			for _, origin := range report.Pruned {
				st.RemoveSource(origin)
			}
			return nil
		})
		if err != nil {
			return report, err
		}
	}

	report.Err = errs.ErrorOrNil()
	span.SetAttributes(telemetry.CountKey.Int(checked))
	log.WithField("checked", len(report.Checked)).
		WithField("updates", len(report.Updates)).
		WithField("pruned", len(report.Pruned)).
		WithField("skipped", len(report.Skipped)).
		Info("registry refresh complete")
	return report, nil
}
