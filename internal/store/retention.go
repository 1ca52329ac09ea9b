package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Retention purges stored runs older than a fixed age on a cron schedule.
type Retention struct {
	store Store
	days  int
	cron  *cron.Cron
	now   func() time.Time
}

// NewRetention schedules a purge of runs older than days. schedule is a
// standard five-field cron expression evaluated in loc; a nil loc means UTC.
func NewRetention(st Store, days int, schedule string, loc *time.Location) (*Retention, error) {
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be > 0, got %d", days)
	}
	if loc == nil {
		loc = time.UTC
	}

	r := &Retention{
		store: st,
		days:  days,
		cron:  cron.New(cron.WithLocation(loc)),
		now:   time.Now,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the scheduler in its own goroutine.
func (r *Retention) Start() {
	slog.Info("retention scheduler started", "days", r.days)
	r.cron.Start()
}

// Stop halts the scheduler and waits for a running purge to finish or ctx
// to expire.
func (r *Retention) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	slog.Info("retention scheduler stopped")
}

// RunOnce purges immediately and returns how many runs were removed.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -r.days)
	return r.store.PurgeOlderThan(ctx, cutoff)
}

func (r *Retention) run() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := r.RunOnce(ctx)
	if err != nil {
		slog.Error("retention purge failed", "error", err)
		return
	}
	slog.Info("retention purge completed",
		"purged", n,
		"days", r.days,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
