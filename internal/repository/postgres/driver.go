package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

const driverColumns = `id, user_id, vehicle_plate, vehicle_type, is_available, is_busy, created_at, updated_at`

type driverRepository struct {
	BaseRepository
}

func NewDriverRepository(base BaseRepository) repository.DriverRepository {
	return &driverRepository{base}
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.DriverProfile, error) {
	var d model.DriverProfile
	err := r.db.GetContext(ctx, &d, `SELECT `+driverColumns+` FROM driver_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

func (r *driverRepository) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE driver_profiles SET is_available = $2, updated_at = $3 WHERE user_id = $1`,
		userID, available, time.Now())
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *driverRepository) ListDispatchable(ctx context.Context) ([]*model.DriverProfile, error) {
	var drivers []*model.DriverProfile
	query := `SELECT ` + driverColumns + ` FROM driver_profiles WHERE is_available AND NOT is_busy ORDER BY vehicle_plate`
	if err := r.db.SelectContext(ctx, &drivers, query); err != nil {
		return nil, mapError(err)
	}
	return drivers, nil
}

// insertDriver is used by role approval inside its transaction.
const insertDriver = `
	INSERT INTO driver_profiles (` + driverColumns + `)
	VALUES (:id, :user_id, :vehicle_plate, :vehicle_type, :is_available, :is_busy, :created_at, :updated_at)
`
