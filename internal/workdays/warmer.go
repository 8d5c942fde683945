package workdays

import (
	"context"
	"time"
)

// Warmer periodically classifies the days around today so window builds
// rarely wait on the oracle.
type Warmer struct {
	resolver *Resolver
	interval time.Duration
	horizon  int
	now      func() time.Time
}

// NewWarmer creates a warmer covering one week back to horizonDays ahead.
func NewWarmer(resolver *Resolver, interval time.Duration, horizonDays int) *Warmer {
	return &Warmer{
		resolver: resolver,
		interval: interval,
		horizon:  horizonDays,
		now:      time.Now,
	}
}

// Run warms the cache immediately and then on every interval until ctx is done.
func (w *Warmer) Run(ctx context.Context) {
	log := w.resolver.logger
	log.Info("starting calendar cache warmer", "interval", w.interval.String(), "horizon_days", w.horizon)

	w.WarmOnce(ctx)

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("calendar cache warmer shutting down")
			return
		case <-timer.C:
			w.WarmOnce(ctx)
			timer.Reset(w.interval)
		}
	}
}

// WarmOnce classifies every uncached day in the warm range and returns how
// many oracle lookups it attempted.
func (w *Warmer) WarmOnce(ctx context.Context) int {
	today := w.now().In(w.resolver.loc)
	start, _ := WeekWindow(today)
	start = start.AddDate(0, 0, -7)
	end := today.AddDate(0, 0, w.horizon)

	attempted := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			return attempted
		}
		if w.resolver.Cached(d) {
			continue
		}
		w.resolver.Classify(ctx, d)
		attempted++
	}
	w.resolver.logger.Debug("calendar cache warm cycle finished", "lookups", attempted)
	return attempted
}
