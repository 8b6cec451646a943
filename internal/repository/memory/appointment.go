package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type appointmentRepository struct {
	store *Store
}

func NewAppointmentRepository(store *Store) repository.AppointmentRepository {
	return &appointmentRepository{store: store}
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.slotTakenLocked(apt.DoctorID, apt.Date, apt.Time) {
		return repository.ErrDuplicate
	}
	apt.Date = model.DateOnly(apt.Date)
	r.store.stamp(&apt.Base)
	r.store.appointments[apt.ID] = *apt
	return nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.store.appointments {
		if filter.DoctorID != uuid.Nil && a.DoctorID != filter.DoctorID {
			continue
		}
		if filter.PatientID != uuid.Nil && a.PatientID != filter.PatientID {
			continue
		}
		if filter.Date != nil && !a.Date.Equal(model.DateOnly(*filter.Date)) {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		found := a
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	start, end := window(len(out), filter.Pagination)
	return out[start:end], nil
}

func (r *appointmentRepository) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	day := model.DateOnly(date)
	var out []model.Appointment
	for _, a := range r.store.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(day) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *appointmentRepository) SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, hhmm string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.slotTakenLocked(doctorID, date, hhmm), nil
}

func (r *appointmentRepository) slotTakenLocked(doctorID uuid.UUID, date time.Time, hhmm string) bool {
	for _, a := range r.store.appointments {
		if a.Status.OccupiesSlot() && a.SameSlot(doctorID, date, hhmm) {
			return true
		}
	}
	return false
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, apt *model.Appointment, from model.AppointmentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.appointments[apt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != from {
		return repository.ErrStaleStatus
	}
	current.Status = apt.Status
	current.DoctorNotes = apt.DoctorNotes
	current.CancelReason = apt.CancelReason
	current.RejectionReason = apt.RejectionReason
	r.store.stamp(&current.Base)
	r.store.appointments[apt.ID] = current
	*apt = current
	return nil
}

func (r *appointmentRepository) ListConfirmedOn(ctx context.Context, date time.Time) ([]*model.Appointment, error) {
	day := model.DateOnly(date)
	return r.List(ctx, model.AppointmentFilter{Date: &day, Status: model.AppointmentStatusConfirmed})
}
