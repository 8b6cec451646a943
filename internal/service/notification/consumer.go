package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/messaging"
)

// Channels are the broker channels the worker listens on.
var Channels = []string{
	model.NotificationAppointmentConfirmed,
	model.NotificationAppointmentRejected,
	model.NotificationAppointmentReminder,
	model.NotificationHomeVisitAssigned,
	model.NotificationRoleRequestReviewed,
	model.EventSlotReleased,
}

// DeliveryLog is the terminal consumer: it decodes what the outbox published
// and records it. Handing off to mail or SMS providers would hook in here.
func DeliveryLog(log *logger.Logger) messaging.Handler {
	return func(ctx context.Context, channel string, payload []byte) error {
		if channel == model.EventSlotReleased {
			var released map[string]interface{}
			if err := json.Unmarshal(payload, &released); err != nil {
				return fmt.Errorf("failed to decode %s: %w", channel, err)
			}
			log.Info("slot released", "channel", channel, "appointment_id", released["appointment_id"])
			return nil
		}

		var n model.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			return fmt.Errorf("failed to decode %s: %w", channel, err)
		}
		if err := validate(n); err != nil {
			return err
		}
		log.Info("notification ready for delivery",
			"type", n.Type,
			"user_id", n.UserID.String(),
			"entity_type", n.EntityType,
			"entity_id", n.EntityID.String(),
			"subject", n.Subject)
		return nil
	}
}
