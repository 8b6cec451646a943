package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/service/event"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

// Dispatcher triggers a notification. It is fire-and-forget: a failure is
// the dispatcher's to log and never reaches the workflow that triggered it.
type Dispatcher interface {
	Notify(ctx context.Context, n model.Notification)
}

type outboxDispatcher struct {
	events  event.Emitter
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewDispatcher queues notifications on the outbox under their type.
func NewDispatcher(events event.Emitter, log *logger.Logger, m *metrics.Metrics) Dispatcher {
	return &outboxDispatcher{
		events:  events,
		log:     log,
		metrics: m,
	}
}

func (d *outboxDispatcher) Notify(ctx context.Context, n model.Notification) {
	if err := validate(n); err != nil {
		d.record(n.Type, "invalid")
		d.log.Error(err, "dropping notification", "type", n.Type)
		return
	}

	if err := d.events.Emit(ctx, n.Type, n); err != nil {
		d.record(n.Type, "error")
		d.log.Error(err, "failed to queue notification",
			"type", n.Type,
			"user_id", n.UserID.String(),
			"entity_id", n.EntityID.String())
		return
	}
	d.record(n.Type, "queued")
}

func (d *outboxDispatcher) record(kind, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.NotificationsQueued.WithLabelValues(kind, outcome).Inc()
}

func validate(n model.Notification) error {
	if n.Type == "" {
		return fmt.Errorf("notification type is required")
	}
	if n.UserID == uuid.Nil {
		return fmt.Errorf("notification recipient is required")
	}
	return nil
}
