package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository/memory"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
)

func TestLogUsesRequestInfo(t *testing.T) {
	repos := memory.New()
	svc := NewService(repos.Audit)

	ctx := WithRequestInfo(context.Background(), RequestInfo{IPAddress: "10.0.0.7", UserAgent: "curl/8"})
	userID, entityID := uuid.New(), uuid.New()

	err := svc.Log(ctx, userID, "confirm", model.AuditEntityAppointment, entityID, &LogOptions{
		Changes: map[string]string{"status": "confirmed"},
	})
	require.NoError(t, err)

	logs, err := svc.List(context.Background(), model.AuditFilter{EntityID: entityID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "10.0.0.7", logs[0].IPAddress)
	assert.Equal(t, "curl/8", logs[0].UserAgent)
	assert.JSONEq(t, `{"status":"confirmed"}`, string(logs[0].Changes))
}

func TestCleanupRemovesOldRows(t *testing.T) {
	repos := memory.New()
	svc := NewService(repos.Audit)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, uuid.New(), "submit", model.AuditEntityRoleRequest, uuid.New(), nil))

	removed, err := svc.Cleanup(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestNilAuditLoggerIsSafe(t *testing.T) {
	var l *AuditLogger
	assert.NotPanics(t, func() {
		l.Log(context.Background(), uuid.New(), "cancel", model.AuditEntityHomeVisit, uuid.New(), nil)
	})

	l = NewAuditLogger(NewService(memory.New().Audit), logger.Nop())
	assert.NotPanics(t, func() {
		l.Log(context.Background(), uuid.New(), "cancel", model.AuditEntityHomeVisit, uuid.New(), nil)
	})
}
