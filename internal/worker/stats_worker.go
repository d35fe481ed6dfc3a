package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
)

// Sweeper drops expired entries from an in-process cache.
type Sweeper interface {
	Sweep() int
}

// StatsWorker periodically publishes lead and complaint counts per status
// and sweeps the in-process caches so expired entries do not pile up
// between reads.
type StatsWorker struct {
	leads      domain.LeadRepository
	complaints domain.ComplaintRepository
	sweepers   []Sweeper
	logger     *slog.Logger
	interval   time.Duration
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(
	leads domain.LeadRepository,
	complaints domain.ComplaintRepository,
	logger *slog.Logger,
	interval time.Duration,
	sweepers ...Sweeper,
) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsWorker{
		leads:      leads,
		complaints: complaints,
		sweepers:   sweepers,
		logger:     logger,
		interval:   interval,
	}
}

// Start runs the worker loop until ctx is cancelled
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single collection and sweep pass
func (w *StatsWorker) RunOnce(ctx context.Context) {
	scope := domain.SystemWideScope()

	if counts, err := w.leads.CountByStatus(ctx, scope); err != nil {
		w.logger.Error("failed to count leads", slog.String("error", err.Error()))
	} else {
		for _, s := range []domain.LeadStatus{domain.LeadNew, domain.LeadContacted, domain.LeadConverted, domain.LeadClosed} {
			metrics.SetLeadCount(string(s), counts[s])
		}
	}

	if counts, err := w.complaints.CountByStatus(ctx, scope); err != nil {
		w.logger.Error("failed to count complaints", slog.String("error", err.Error()))
	} else {
		for _, s := range []domain.ComplaintStatus{domain.ComplaintOpen, domain.ComplaintInProgress, domain.ComplaintClosed} {
			metrics.SetComplaintCount(string(s), counts[s])
		}
	}

	removed := 0
	for _, s := range w.sweepers {
		removed += s.Sweep()
	}
	if removed > 0 {
		w.logger.Debug("swept expired cache entries", slog.Int("removed", removed))
	}
}
