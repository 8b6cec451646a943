package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type driverRepository struct {
	store *Store
}

func NewDriverRepository(store *Store) repository.DriverRepository {
	return &driverRepository{store: store}
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.DriverProfile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, ok := r.store.drivers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *driverRepository) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, ok := r.store.drivers[userID]
	if !ok {
		return repository.ErrNotFound
	}
	d.IsAvailable = available
	r.store.stamp(&d.Base)
	r.store.drivers[userID] = d
	return nil
}

func (r *driverRepository) ListDispatchable(ctx context.Context) ([]*model.DriverProfile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*model.DriverProfile
	for _, d := range r.store.drivers {
		if d.Dispatchable() {
			found := d
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehiclePlate < out[j].VehiclePlate })
	return out, nil
}
