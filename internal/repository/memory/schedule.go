package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type scheduleRepository struct {
	store *Store
}

func NewScheduleRepository(store *Store) repository.ScheduleRepository {
	return &scheduleRepository{store: store}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.DoctorSchedule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.activeConflict(schedule) {
		return repository.ErrDuplicate
	}
	r.store.stamp(&schedule.Base)
	r.store.schedules[schedule.ID] = *schedule
	return nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *model.DoctorSchedule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.schedules[schedule.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.activeConflict(schedule) {
		return repository.ErrDuplicate
	}
	r.store.stamp(&schedule.Base)
	r.store.schedules[schedule.ID] = *schedule
	return nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DoctorSchedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *scheduleRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorSchedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []model.DoctorSchedule
	for _, s := range r.store.schedules {
		if s.DoctorID == doctorID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// activeConflict mirrors doctor_schedules_one_active_per_day. Callers hold
// store.mu.
func (r *scheduleRepository) activeConflict(schedule *model.DoctorSchedule) bool {
	if !schedule.IsActive {
		return false
	}
	for id, s := range r.store.schedules {
		if id != schedule.ID && s.IsActive && s.DoctorID == schedule.DoctorID && s.DayOfWeek == schedule.DayOfWeek {
			return true
		}
	}
	return false
}
