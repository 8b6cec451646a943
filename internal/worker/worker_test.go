package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository/memory"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

type recordingSender struct {
	days []time.Time
}

func (r *recordingSender) SendReminders(ctx context.Context, day time.Time) (int, error) {
	r.days = append(r.days, day)
	return 3, nil
}

type noopCleaner struct{}

func (noopCleaner) CleanupProcessedEvents(ctx context.Context) (int64, error) { return 0, nil }

func TestAuditCleanupRemovesOldRows(t *testing.T) {
	ctx := context.Background()
	repos := memory.New()
	now := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repos.Audit.Create(ctx, &model.AuditLog{Action: "create", EntityType: model.AuditEntityAppointment, CreatedAt: now.AddDate(0, 0, -100)}))
	require.NoError(t, repos.Audit.Create(ctx, &model.AuditLog{Action: "confirm", EntityType: model.AuditEntityAppointment, CreatedAt: now.AddDate(0, 0, -1)}))

	w := NewAuditCleanupWorker(repos.Audit, 90, time.Hour, logger.Nop(), metrics.NewMetrics("test", nil))
	w.now = func() time.Time { return now }

	rows, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	left, err := repos.Audit.List(ctx, model.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "confirm", left[0].Action)
}

func TestSchedulerRemindsForTomorrow(t *testing.T) {
	sender := &recordingSender{}
	s, err := NewScheduler(SchedulerConfig{ReminderSpec: "0 18 * * *"}, sender, noopCleaner{}, logger.Nop(), metrics.NewMetrics("test", nil))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2030, 1, 6, 18, 0, 0, 0, time.UTC) }

	require.NoError(t, s.SendTomorrowReminders(context.Background()))
	require.Len(t, sender.days, 1)
	assert.Equal(t, 7, sender.days[0].Day())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{ReminderSpec: "every evening"}, &recordingSender{}, noopCleaner{}, logger.Nop(), metrics.NewMetrics("test", nil))
	assert.Error(t, err)
}
