package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type outboxRepository struct {
	store *Store
}

func NewOutboxRepository(store *Store) repository.OutboxRepository {
	return &outboxRepository{store: store}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now
	r.store.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	now := r.store.now()
	var out []*model.OutboxEvent
	for _, e := range r.store.outbox {
		ready := e.Status == model.OutboxStatusPending ||
			(e.Status == model.OutboxStatusFailed && e.RetryAt != nil && !e.RetryAt.After(now))
		if ready {
			found := e
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.store.now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.ErrorMessage = nil
	e.UpdatedAt = now
	r.store.outbox[id] = e
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.RetryAt = retryAt
	e.UpdatedAt = r.store.now()
	r.store.outbox[id] = e
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, e := range r.store.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.store.outbox, id)
			n++
		}
	}
	return n, nil
}
