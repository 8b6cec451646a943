package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository/memory"
	"github.com/jwalitptl/clinic-workflow/internal/service/event"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/messaging"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
	"github.com/jwalitptl/clinic-workflow/pkg/retry"
)

type downBroker struct {
	messaging.Broker
	calls int
}

func (b *downBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.calls++
	return errors.New("connection refused")
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		Retry:        retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		RetryDelay:   time.Minute,
		MaxAttempts:  2,
	}
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	repos := memory.New()
	broker := messaging.NewMemoryBroker()
	events := event.NewService(repos.Outbox)

	require.NoError(t, events.Emit(ctx, model.NotificationAppointmentConfirmed, map[string]string{"appointment_id": "a1"}))
	require.NoError(t, events.Emit(ctx, model.EventSlotReleased, map[string]string{"time": "09:00"}))

	p := NewOutboxProcessor(repos.Outbox, broker, testConfig(), logger.Nop(), metrics.NewMetrics("test", nil))
	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	published := broker.Published(model.NotificationAppointmentConfirmed)
	require.Len(t, published, 1)
	assert.JSONEq(t, `{"appointment_id":"a1"}`, string(published[0]))

	for _, e := range repos.Store.OutboxEvents() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
	}

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchMarksFailedWithBackoff(t *testing.T) {
	ctx := context.Background()
	repos := memory.New()
	broker := &downBroker{}
	require.NoError(t, event.NewService(repos.Outbox).Emit(ctx, model.NotificationRoleRequestReviewed, "x"))

	now := time.Date(2030, 1, 7, 12, 0, 0, 0, time.UTC)
	p := NewOutboxProcessor(repos.Outbox, broker, testConfig(), logger.Nop(), metrics.NewMetrics("test", nil))
	p.now = func() time.Time { return now }

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, broker.calls, "one attempt plus two retries")

	stored := repos.Store.OutboxEvents()
	require.Len(t, stored, 1)
	assert.Equal(t, model.OutboxStatusFailed, stored[0].Status)
	assert.Equal(t, 1, stored[0].RetryCount)
	require.NotNil(t, stored[0].RetryAt)
	assert.Equal(t, now.Add(time.Minute), *stored[0].RetryAt)
}

func TestNextAttemptGivesUp(t *testing.T) {
	p := NewOutboxProcessor(memory.New().Outbox, messaging.NewMemoryBroker(), testConfig(), logger.Nop(), metrics.NewMetrics("test", nil))
	assert.NotNil(t, p.nextAttempt(&model.OutboxEvent{RetryCount: 0}))
	assert.Nil(t, p.nextAttempt(&model.OutboxEvent{RetryCount: 1}))
}
