package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/pkg/logger"
)

// AuditLogger records entries on behalf of workflows. A failed write is
// logged and never fails the operation being audited.
type AuditLogger struct {
	service *Service
	log     *logger.Logger
}

func NewAuditLogger(service *Service, log *logger.Logger) *AuditLogger {
	return &AuditLogger{
		service: service,
		log:     log,
	}
}

func (l *AuditLogger) Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if l == nil {
		return
	}
	if err := l.service.Log(ctx, userID, action, entityType, entityID, opts); err != nil {
		l.log.Error(err, "failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID.String())
	}
}
