package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
)

func TestDeliveryLog(t *testing.T) {
	var buf bytes.Buffer
	handle := DeliveryLog(logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Output: &buf, JSON: true}))
	ctx := context.Background()

	payload, err := json.Marshal(model.Notification{
		Type:    model.NotificationHomeVisitAssigned,
		UserID:  uuid.New(),
		Subject: "New home visit",
	})
	require.NoError(t, err)

	require.NoError(t, handle(ctx, model.NotificationHomeVisitAssigned, payload))
	assert.Contains(t, buf.String(), "notification ready for delivery")

	require.NoError(t, handle(ctx, model.EventSlotReleased, []byte(`{"appointment_id":"a1"}`)))
	assert.Contains(t, buf.String(), "slot released")

	assert.Error(t, handle(ctx, model.NotificationAppointmentReminder, []byte(`not json`)))
	assert.Error(t, handle(ctx, model.NotificationAppointmentReminder, []byte(`{"type":"appointment.reminder"}`)))
}
