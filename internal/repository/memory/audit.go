package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type auditRepository struct {
	store *Store
}

func NewAuditRepository(store *Store) repository.AuditRepository {
	return &auditRepository{store: store}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.store.now()
	}
	r.store.audit = append(r.store.audit, *log)
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*model.AuditLog
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		l := r.store.audit[i]
		if filter.UserID != uuid.Nil && l.UserID != filter.UserID {
			continue
		}
		if filter.EntityType != "" && l.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != uuid.Nil && l.EntityID != filter.EntityID {
			continue
		}
		if filter.Since != nil && l.CreatedAt.Before(*filter.Since) {
			continue
		}
		found := l
		out = append(out, &found)
	}
	start, end := window(len(out), filter.Pagination)
	return out[start:end], nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.audit[:0]
	var n int64
	for _, l := range r.store.audit {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.store.audit = kept
	return n, nil
}
