package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

type roleRequestRepository struct {
	store *Store
}

func NewRoleRequestRepository(store *Store) repository.RoleRequestRepository {
	return &roleRequestRepository{store: store}
}

func (r *roleRequestRepository) Create(ctx context.Context, req *model.RoleRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.hasPendingLocked(req.UserID) {
		return repository.ErrDuplicate
	}
	r.store.stamp(&req.Base)
	r.store.roleRequests[req.ID] = *req
	return nil
}

func (r *roleRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	req, ok := r.store.roleRequests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r *roleRequestRepository) HasPending(ctx context.Context, userID uuid.UUID) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.hasPendingLocked(userID), nil
}

func (r *roleRequestRepository) hasPendingLocked(userID uuid.UUID) bool {
	for _, req := range r.store.roleRequests {
		if req.UserID == userID && req.Status == model.RoleRequestStatusPending {
			return true
		}
	}
	return false
}

func (r *roleRequestRepository) List(ctx context.Context, filter model.RoleRequestFilter) ([]*model.RoleRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*model.RoleRequest
	for _, req := range r.store.roleRequests {
		if filter.UserID != uuid.Nil && req.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		found := req
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := window(len(out), filter.Pagination)
	return out[start:end], nil
}

func (r *roleRequestRepository) Approve(ctx context.Context, req *model.RoleRequest, profile model.ElevationProfile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// validate every write before applying any of them
	current, ok := r.store.roleRequests[req.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != model.RoleRequestStatusPending {
		return repository.ErrStaleStatus
	}
	user, ok := r.store.users[current.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	if profile.Doctor != nil {
		if _, exists := r.store.doctors[profile.Doctor.UserID]; exists {
			return repository.ErrDuplicate
		}
	}
	if profile.Driver != nil {
		if _, exists := r.store.drivers[profile.Driver.UserID]; exists {
			return repository.ErrDuplicate
		}
		for _, d := range r.store.drivers {
			if d.VehiclePlate == profile.Driver.VehiclePlate {
				return repository.ErrDuplicate
			}
		}
	}

	current.Status = model.RoleRequestStatusApproved
	current.ReviewedBy = req.ReviewedBy
	current.ReviewNote = req.ReviewNote
	current.ReviewedAt = req.ReviewedAt
	r.store.stamp(&current.Base)
	r.store.roleRequests[current.ID] = current

	user.Role = current.RequestedRole
	r.store.stamp(&user.Base)
	r.store.users[user.ID] = user

	if profile.Doctor != nil {
		p := *profile.Doctor
		r.store.stamp(&p.Base)
		r.store.doctors[p.UserID] = p
	}
	if profile.Driver != nil {
		p := *profile.Driver
		r.store.stamp(&p.Base)
		r.store.drivers[p.UserID] = p
	}

	*req = current
	return nil
}

func (r *roleRequestRepository) Reject(ctx context.Context, req *model.RoleRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.roleRequests[req.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != model.RoleRequestStatusPending {
		return repository.ErrStaleStatus
	}
	current.Status = model.RoleRequestStatusRejected
	current.ReviewedBy = req.ReviewedBy
	current.ReviewNote = req.ReviewNote
	current.ReviewedAt = req.ReviewedAt
	r.store.stamp(&current.Base)
	r.store.roleRequests[current.ID] = current
	*req = current
	return nil
}
