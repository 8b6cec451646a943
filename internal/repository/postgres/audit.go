package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

const auditColumns = `id, user_id, action, entity_type, entity_id, changes, metadata, ip_address, user_agent, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID, nullUUID(log.UserID), log.Action, log.EntityType, nullUUID(log.EntityID),
		nullJSON(log.Changes), nullJSON(log.Metadata), log.IPAddress, log.UserAgent, log.CreatedAt)
	return mapError(err)
}

func (r *auditRepository) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	var c conditions
	if filter.UserID != uuid.Nil {
		c.add("user_id = $%d", filter.UserID)
	}
	if filter.EntityType != "" {
		c.add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != uuid.Nil {
		c.add("entity_id = $%d", filter.EntityID)
	}
	if filter.Since != nil {
		c.add("created_at >= $%d", *filter.Since)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + c.where() +
		` ORDER BY created_at DESC` + c.page(filter.Pagination)

	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, c.args...); err != nil {
		return nil, mapError(err)
	}
	return logs, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func nullUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}
