package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

const homeVisitColumns = `id, patient_id, driver_id, address, scheduled_date, scheduled_time, status,
	notes, cancel_reason, created_by, created_at, updated_at`

type homeVisitRepository struct {
	BaseRepository
}

func NewHomeVisitRepository(base BaseRepository) repository.HomeVisitRepository {
	return &homeVisitRepository{base}
}

func (r *homeVisitRepository) Create(ctx context.Context, visit *model.HomeVisit) error {
	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	now := time.Now()
	visit.CreatedAt, visit.UpdatedAt = now, now
	visit.ScheduledDate = model.DateOnly(visit.ScheduledDate)

	query := `
		INSERT INTO home_visits (` + homeVisitColumns + `)
		VALUES (:id, :patient_id, :driver_id, :address, :scheduled_date, :scheduled_time, :status,
			:notes, :cancel_reason, :created_by, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, visit)
	return mapError(err)
}

func (r *homeVisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.HomeVisit, error) {
	var visit model.HomeVisit
	err := r.db.GetContext(ctx, &visit, `SELECT `+homeVisitColumns+` FROM home_visits WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &visit, nil
}

func (r *homeVisitRepository) List(ctx context.Context, filter model.HomeVisitFilter) ([]*model.HomeVisit, error) {
	var c conditions
	if filter.PatientID != uuid.Nil {
		c.add("patient_id = $%d", filter.PatientID)
	}
	if filter.DriverID != uuid.Nil {
		c.add("driver_id = $%d", filter.DriverID)
	}
	if filter.Status != "" {
		c.add("status = $%d", filter.Status)
	}

	query := `SELECT ` + homeVisitColumns + ` FROM home_visits` + c.where() +
		` ORDER BY scheduled_date, scheduled_time` + c.page(filter.Pagination)

	var visits []*model.HomeVisit
	if err := r.db.SelectContext(ctx, &visits, query, c.args...); err != nil {
		return nil, mapError(err)
	}
	return visits, nil
}

// Assign moves the visit out of from and claims the driver in one
// transaction. The claim only succeeds for an on-duty driver who is not busy.
func (r *homeVisitRepository) Assign(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus) error {
	if visit.DriverID == nil {
		return repository.ErrDriverUnavailable
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := r.updateVisit(ctx, tx, visit, from, visit.DriverID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE driver_profiles
			SET is_busy = TRUE, updated_at = $2
			WHERE user_id = $1 AND is_available AND NOT is_busy
		`, *visit.DriverID, time.Now())
		if err != nil {
			return mapError(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repository.ErrDriverUnavailable
		}

		*visit = *updated
		return nil
	})
}

// UpdateStatus moves the visit out of from and, when releaseDriver is set,
// clears the assigned driver's busy flag in the same transaction.
func (r *homeVisitRepository) UpdateStatus(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus, releaseDriver bool) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := r.updateVisit(ctx, tx, visit, from, nil)
		if err != nil {
			return err
		}

		if releaseDriver && updated.DriverID != nil {
			_, err := tx.ExecContext(ctx,
				`UPDATE driver_profiles SET is_busy = FALSE, updated_at = $2 WHERE user_id = $1`,
				*updated.DriverID, time.Now())
			if err != nil {
				return mapError(err)
			}
		}

		*visit = *updated
		return nil
	})
}

// updateVisit writes status, notes and cancel reason conditional on from.
// A non-nil driverID also sets the driver.
func (r *homeVisitRepository) updateVisit(ctx context.Context, tx *sqlx.Tx, visit *model.HomeVisit, from model.HomeVisitStatus, driverID *uuid.UUID) (*model.HomeVisit, error) {
	query := `
		UPDATE home_visits
		SET driver_id = COALESCE($3, driver_id), status = $4, notes = $5, cancel_reason = $6, updated_at = $7
		WHERE id = $1 AND status = $2
		RETURNING ` + homeVisitColumns

	var updated model.HomeVisit
	err := tx.GetContext(ctx, &updated, query,
		visit.ID, from, driverID, visit.Status, visit.Notes, visit.CancelReason, time.Now())
	if err != nil {
		if mapped := mapError(err); !errors.Is(mapped, repository.ErrNotFound) {
			return nil, mapped
		}
		return nil, staleOrMissing(ctx, tx, "home_visits", visit.ID)
	}
	return &updated, nil
}
