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

const roleRequestColumns = `id, user_id, from_role, requested_role, reason, additional_data, status,
	reviewed_by, review_note, reviewed_at, created_at, updated_at`

const insertDoctor = `
	INSERT INTO doctor_profiles (id, user_id, specialization, category, license_number, created_at, updated_at)
	VALUES (:id, :user_id, :specialization, :category, :license_number, :created_at, :updated_at)
`

type roleRequestRepository struct {
	BaseRepository
}

func NewRoleRequestRepository(base BaseRepository) repository.RoleRequestRepository {
	return &roleRequestRepository{base}
}

// Create relies on role_requests_one_pending; a second pending request for
// the same user surfaces as ErrDuplicate.
func (r *roleRequestRepository) Create(ctx context.Context, req *model.RoleRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now()
	req.CreatedAt, req.UpdatedAt = now, now

	query := `
		INSERT INTO role_requests (` + roleRequestColumns + `)
		VALUES (:id, :user_id, :from_role, :requested_role, :reason, :additional_data, :status,
			:reviewed_by, :review_note, :reviewed_at, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, req)
	return mapError(err)
}

func (r *roleRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	var req model.RoleRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+roleRequestColumns+` FROM role_requests WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &req, nil
}

func (r *roleRequestRepository) HasPending(ctx context.Context, userID uuid.UUID) (bool, error) {
	var pending bool
	err := r.db.GetContext(ctx, &pending,
		`SELECT EXISTS(SELECT 1 FROM role_requests WHERE user_id = $1 AND status = 'pending')`, userID)
	return pending, mapError(err)
}

func (r *roleRequestRepository) List(ctx context.Context, filter model.RoleRequestFilter) ([]*model.RoleRequest, error) {
	var c conditions
	if filter.UserID != uuid.Nil {
		c.add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		c.add("status = $%d", filter.Status)
	}

	query := `SELECT ` + roleRequestColumns + ` FROM role_requests` + c.where() +
		` ORDER BY created_at DESC` + c.page(filter.Pagination)

	var requests []*model.RoleRequest
	if err := r.db.SelectContext(ctx, &requests, query, c.args...); err != nil {
		return nil, mapError(err)
	}
	return requests, nil
}

// Approve flips the request, changes the user's role and inserts the role
// profile in one transaction. Any failure rolls back all three.
func (r *roleRequestRepository) Approve(ctx context.Context, req *model.RoleRequest, profile model.ElevationProfile) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := r.review(ctx, tx, req, model.RoleRequestStatusApproved)
		if err != nil {
			return err
		}

		now := time.Now()
		_, err = tx.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
			updated.UserID, updated.RequestedRole, now)
		if err != nil {
			return mapError(err)
		}

		if p := profile.Doctor; p != nil {
			p.ID, p.CreatedAt, p.UpdatedAt = uuid.New(), now, now
			if _, err := tx.NamedExecContext(ctx, insertDoctor, p); err != nil {
				return mapError(err)
			}
		}
		if p := profile.Driver; p != nil {
			p.ID, p.CreatedAt, p.UpdatedAt = uuid.New(), now, now
			if _, err := tx.NamedExecContext(ctx, insertDriver, p); err != nil {
				return mapError(err)
			}
		}

		*req = *updated
		return nil
	})
}

func (r *roleRequestRepository) Reject(ctx context.Context, req *model.RoleRequest) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := r.review(ctx, tx, req, model.RoleRequestStatusRejected)
		if err != nil {
			return err
		}
		*req = *updated
		return nil
	})
}

func (r *roleRequestRepository) review(ctx context.Context, tx *sqlx.Tx, req *model.RoleRequest, status model.RoleRequestStatus) (*model.RoleRequest, error) {
	query := `
		UPDATE role_requests
		SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5, updated_at = $6
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + roleRequestColumns

	var updated model.RoleRequest
	err := tx.GetContext(ctx, &updated, query, req.ID, status, req.ReviewedBy, req.ReviewNote, req.ReviewedAt, time.Now())
	if err != nil {
		if mapped := mapError(err); !errors.Is(mapped, repository.ErrNotFound) {
			return nil, mapped
		}
		return nil, staleOrMissing(ctx, tx, "role_requests", req.ID)
	}
	return &updated, nil
}
