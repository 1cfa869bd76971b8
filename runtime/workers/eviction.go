package workers

import (
	"chat-room/contract"
	"context"
	"log/slog"
	"time"
)

const (
	DefaultSweepInterval  = 15 * time.Second
	DefaultStaleThreshold = 10 * time.Second
)

// EvictionWorker periodically removes idle participants.
// The sweep cadence and the staleness threshold are independent settings.
type EvictionWorker struct {
	log       *slog.Logger
	sweeper   contract.Sweeper
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

func NewEvictionWorker(log *slog.Logger, sweeper contract.Sweeper, interval, threshold time.Duration) *EvictionWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &EvictionWorker{
		log:       log,
		sweeper:   sweeper,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is canceled.
// A failed sweep is logged and the next tick runs as scheduled.
func (w *EvictionWorker) Run(ctx context.Context) error {
	w.log.Info("Starting eviction worker", "interval", w.interval.String(), "threshold", w.threshold.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EvictionWorker) sweep(ctx context.Context) {
	report, err := w.sweeper.Sweep(ctx, w.now(), w.threshold)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("Sweep failed", "error", err)
		}
		return
	}
	if len(report.Evicted) > 0 {
		w.log.Info("Idle participants evicted", "count", len(report.Evicted), "names", report.Evicted)
	}
	for name, failure := range report.Failed {
		w.log.Warn("Participant could not be evicted", "name", name, "error", failure)
	}
}
