package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

const scheduleColumns = `id, doctor_id, day_of_week, start_time, end_time, slot_duration, is_active, created_at, updated_at`

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(base BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.DoctorSchedule) error {
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	now := time.Now()
	schedule.CreatedAt, schedule.UpdatedAt = now, now

	query := `
		INSERT INTO doctor_schedules (` + scheduleColumns + `)
		VALUES (:id, :doctor_id, :day_of_week, :start_time, :end_time, :slot_duration, :is_active, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, schedule)
	return mapError(err)
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *model.DoctorSchedule) error {
	schedule.UpdatedAt = time.Now()

	query := `
		UPDATE doctor_schedules
		SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time,
			slot_duration = :slot_duration, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, schedule)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DoctorSchedule, error) {
	var schedule model.DoctorSchedule
	err := r.db.GetContext(ctx, &schedule, `SELECT `+scheduleColumns+` FROM doctor_schedules WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorSchedule, error) {
	var schedules []model.DoctorSchedule
	query := `SELECT ` + scheduleColumns + ` FROM doctor_schedules WHERE doctor_id = $1 ORDER BY day_of_week, start_time`
	if err := r.db.SelectContext(ctx, &schedules, query, doctorID); err != nil {
		return nil, mapError(err)
	}
	return schedules, nil
}
