package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

// ReminderSender notifies patients about confirmed appointments on a day.
type ReminderSender interface {
	SendReminders(ctx context.Context, day time.Time) (int, error)
}

// EventCleaner drops outbox events that were already published.
type EventCleaner interface {
	CleanupProcessedEvents(ctx context.Context) (int64, error)
}

type SchedulerConfig struct {
	// ReminderSpec is a cron expression, e.g. "0 18 * * *".
	ReminderSpec     string
	EventCleanupSpec string
	Location         *time.Location
}

// Scheduler runs the periodic jobs of the worker process.
type Scheduler struct {
	cron      *cron.Cron
	reminders ReminderSender
	events    EventCleaner
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewScheduler(cfg SchedulerConfig, reminders ReminderSender, events EventCleaner, log *logger.Logger, m *metrics.Metrics) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		reminders: reminders,
		events:    events,
		log:       log,
		metrics:   m,
		now:       func() time.Time { return time.Now().In(loc) },
	}

	if _, err := s.cron.AddFunc(cfg.ReminderSpec, func() { s.run("appointment_reminders", s.SendTomorrowReminders) }); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSpec, err)
	}
	if cfg.EventCleanupSpec != "" {
		if _, err := s.cron.AddFunc(cfg.EventCleanupSpec, func() { s.run("outbox_cleanup", s.cleanupEvents) }); err != nil {
			return nil, fmt.Errorf("invalid event cleanup schedule %q: %w", cfg.EventCleanupSpec, err)
		}
	}
	return s, nil
}

// Start runs the jobs until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// SendTomorrowReminders notifies patients confirmed for the next day.
func (s *Scheduler) SendTomorrowReminders(ctx context.Context) error {
	tomorrow := s.now().AddDate(0, 0, 1)
	sent, err := s.reminders.SendReminders(ctx, tomorrow)
	if err != nil {
		return err
	}
	s.log.Info("Queued appointment reminders", "count", sent, "date", tomorrow.Format("2006-01-02"))
	return nil
}

func (s *Scheduler) cleanupEvents(ctx context.Context) error {
	n, err := s.events.CleanupProcessedEvents(ctx)
	if err != nil {
		return err
	}
	s.log.Info("Cleaned up processed outbox events", "rows", n)
	return nil
}

func (s *Scheduler) run(job string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.metrics.JobRuns.WithLabelValues(job, "error").Inc()
		s.log.Error(err, "Scheduled job failed", "job", job)
		return
	}
	s.metrics.JobRuns.WithLabelValues(job, "success").Inc()
}
