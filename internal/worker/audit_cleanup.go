package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-workflow/internal/repository"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

type AuditCleanupWorker struct {
	repo            repository.AuditRepository
	retentionDays   int
	cleanupInterval time.Duration
	log             *logger.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewAuditCleanupWorker(repo repository.AuditRepository, retentionDays int, cleanupInterval time.Duration, log *logger.Logger, m *metrics.Metrics) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		log:             log,
		metrics:         m,
		now:             time.Now,
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.log.Error(err, "Error cleaning up audit logs")
			}
		}
	}
}

func (w *AuditCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		w.metrics.JobRuns.WithLabelValues("audit_cleanup", "error").Inc()
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.metrics.JobRuns.WithLabelValues("audit_cleanup", "success").Inc()
	w.log.Info("Cleaned up audit logs", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
