package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, appointment_time, status, reason,
	doctor_notes, cancel_reason, rejection_reason, created_by, created_at, updated_at`

// slotOccupied matches the partial unique index appointments_slot_taken.
const slotOccupied = `status NOT IN ('cancelled', 'rejected')`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

// Create relies on appointments_slot_taken; a concurrent booking of the same
// slot surfaces as ErrDuplicate.
func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now()
	apt.CreatedAt, apt.UpdatedAt = now, now
	apt.Date = model.DateOnly(apt.Date)

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES (:id, :patient_id, :doctor_id, :appointment_date, :appointment_time, :status, :reason,
			:doctor_notes, :cancel_reason, :rejection_reason, :created_by, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, apt)
	return mapError(err)
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &apt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	var c conditions
	if filter.DoctorID != uuid.Nil {
		c.add("doctor_id = $%d", filter.DoctorID)
	}
	if filter.PatientID != uuid.Nil {
		c.add("patient_id = $%d", filter.PatientID)
	}
	if filter.Date != nil {
		c.add("appointment_date = $%d", model.DateOnly(*filter.Date))
	}
	if filter.Status != "" {
		c.add("status = $%d", filter.Status)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments` + c.where() +
		` ORDER BY appointment_date, appointment_time` + c.page(filter.Pagination)

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, c.args...); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2
		ORDER BY appointment_time
	`
	var appointments []model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, model.DateOnly(date)); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

func (r *appointmentRepository) SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, hhmm string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3 AND ` + slotOccupied + `
		)
	`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, doctorID, model.DateOnly(date), hhmm); err != nil {
		return false, mapError(err)
	}
	return taken, nil
}

// UpdateStatus writes the new status only if the row still holds from.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, apt *model.Appointment, from model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, doctor_notes = $2, cancel_reason = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $6 AND status = $7
		RETURNING ` + appointmentColumns

	var updated model.Appointment
	err := r.db.GetContext(ctx, &updated, query,
		apt.Status, apt.DoctorNotes, apt.CancelReason, apt.RejectionReason, time.Now(), apt.ID, from)
	if err != nil {
		if mapped := mapError(err); !errors.Is(mapped, repository.ErrNotFound) {
			return mapped
		}
		return staleOrMissing(ctx, r.db, "appointments", apt.ID)
	}
	*apt = updated
	return nil
}

func (r *appointmentRepository) ListConfirmedOn(ctx context.Context, date time.Time) ([]*model.Appointment, error) {
	day := model.DateOnly(date)
	return r.List(ctx, model.AppointmentFilter{Date: &day, Status: model.AppointmentStatusConfirmed})
}
