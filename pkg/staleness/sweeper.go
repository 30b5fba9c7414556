package staleness

import (
	"context"
	"time"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/logger"
)

// DefaultInterval is how often the background sweep runs.
const DefaultInterval = time.Hour

// Sweeper runs RefreshAll on a fixed cadence.
type Sweeper struct {
	refresher *Refresher
	interval  time.Duration
	// OnRefresh is called after every completed sweep.
	OnRefresh func(ctx context.Context, report Report)
}

// NewSweeper creates a Sweeper. A non-positive interval uses DefaultInterval.
func NewSweeper(refresher *Refresher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{refresher: refresher, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Throttling is left to the refresher, so ticks that come early only check
// sources that are due.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			logger.G(ctx).Debug("background sweep stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	report, err := s.refresher.RefreshAll(ctx, RefreshOptions{})
	if err != nil {
		if !errdefs.IsCancelled(err) && ctx.Err() == nil {
			logger.G(ctx).WithError(err).Warn("background sweep failed")
		}
		return
	}
	if report.Err != nil {
		logger.G(ctx).WithError(report.Err).Warn("some sources could not be checked")
	}
	if s.OnRefresh != nil {
		s.OnRefresh(ctx, report)
	}
}
