package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type homeVisitRepository struct {
	store *Store
}

func NewHomeVisitRepository(store *Store) repository.HomeVisitRepository {
	return &homeVisitRepository{store: store}
}

func (r *homeVisitRepository) Create(ctx context.Context, visit *model.HomeVisit) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	visit.ScheduledDate = model.DateOnly(visit.ScheduledDate)
	r.store.stamp(&visit.Base)
	r.store.homeVisits[visit.ID] = *visit
	return nil
}

func (r *homeVisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.HomeVisit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	v, ok := r.store.homeVisits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r *homeVisitRepository) List(ctx context.Context, filter model.HomeVisitFilter) ([]*model.HomeVisit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*model.HomeVisit
	for _, v := range r.store.homeVisits {
		if filter.PatientID != uuid.Nil && v.PatientID != filter.PatientID {
			continue
		}
		if filter.DriverID != uuid.Nil && !v.AssignedTo(filter.DriverID) {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		found := v
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ScheduledTime < out[j].ScheduledTime
	})
	start, end := window(len(out), filter.Pagination)
	return out[start:end], nil
}

func (r *homeVisitRepository) Assign(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus) error {
	if visit.DriverID == nil {
		return repository.ErrDriverUnavailable
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.homeVisits[visit.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != from {
		return repository.ErrStaleStatus
	}
	driver, ok := r.store.drivers[*visit.DriverID]
	if !ok || !driver.Dispatchable() {
		return repository.ErrDriverUnavailable
	}

	driver.IsBusy = true
	r.store.stamp(&driver.Base)
	r.store.drivers[driver.UserID] = driver

	driverID := *visit.DriverID
	current.DriverID = &driverID
	current.Status = visit.Status
	r.store.stamp(&current.Base)
	r.store.homeVisits[current.ID] = current
	*visit = current
	return nil
}

func (r *homeVisitRepository) UpdateStatus(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus, releaseDriver bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.homeVisits[visit.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != from {
		return repository.ErrStaleStatus
	}

	if releaseDriver && current.DriverID != nil {
		if driver, ok := r.store.drivers[*current.DriverID]; ok {
			driver.IsBusy = false
			r.store.stamp(&driver.Base)
			r.store.drivers[driver.UserID] = driver
		}
	}

	current.Status = visit.Status
	current.Notes = visit.Notes
	current.CancelReason = visit.CancelReason
	r.store.stamp(&current.Base)
	r.store.homeVisits[current.ID] = current
	*visit = current
	return nil
}
