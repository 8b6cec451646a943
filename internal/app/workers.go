package app

import (
	"context"
	"sync"

	"github.com/jwalitptl/clinic-workflow/internal/config"
	"github.com/jwalitptl/clinic-workflow/internal/service/notification"
	"github.com/jwalitptl/clinic-workflow/internal/worker"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/messaging"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
	"github.com/jwalitptl/clinic-workflow/pkg/retry"
	pkgworker "github.com/jwalitptl/clinic-workflow/pkg/worker"
)

// RunWorkers runs the background jobs until ctx is done:
//   - the outbox processor publishing to the broker
//   - the notification consumer
//   - audit retention cleanup
//   - the cron scheduler for reminders and outbox cleanup
func RunWorkers(ctx context.Context, cfg *config.Config, rt *Runtime, s *Services, log *logger.Logger, m *metrics.Metrics) error {
	scheduler, err := worker.NewScheduler(worker.SchedulerConfig{
		ReminderSpec:     cfg.Workers.ReminderSpec,
		EventCleanupSpec: cfg.Workers.EventCleanupSpec,
		Location:         cfg.Location(),
	}, s.Appointments, s.Events, log, m)
	if err != nil {
		return err
	}

	processor := pkgworker.NewOutboxProcessor(rt.Repos.Outbox, rt.Broker, pkgworker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		Retry:        retry.DefaultPolicy(),
		RetryDelay:   cfg.Outbox.RetryDelay,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}, log.WithFields(map[string]interface{}{"worker": "outbox"}), m)

	cleanup := worker.NewAuditCleanupWorker(rt.Repos.Audit, cfg.Workers.AuditRetentionDays,
		cfg.Workers.AuditCleanupEvery, log, m)

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { processor.Start(ctx) })
	run(func() { cleanup.Start(ctx) })
	run(func() { scheduler.Start(ctx) })
	run(func() {
		err := messaging.Consume(ctx, rt.Broker, notification.Channels, notification.DeliveryLog(log), log)
		if err != nil && ctx.Err() == nil {
			log.Error(err, "notification consumer stopped")
		}
	})

	log.Info("workers started")
	wg.Wait()
	return nil
}
