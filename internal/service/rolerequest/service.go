package rolerequest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	"github.com/jwalitptl/clinic-workflow/internal/service/notification"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

const entity = "role_request"

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

var (
	submitRequirement = access.Roles(model.RolePatient)
	reviewRequirement = access.Roles(model.RoleAdmin)
)

// requiredData lists the additional_data keys each requested role must carry.
var requiredData = map[model.Role][]string{
	model.RoleDoctor: {"specialization"},
	model.RoleDriver: {"vehicle_plate"},
}

// SessionInvalidator drops any cached role for a user whose role changed.
type SessionInvalidator interface {
	Invalidate(userID uuid.UUID)
}

type Service struct {
	repo        repository.RoleRequestRepository
	users       repository.UserRepository
	notifier    notification.Dispatcher
	invalidator SessionInvalidator
	auditor     *audit.AuditLogger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(
	repo repository.RoleRequestRepository,
	users repository.UserRepository,
	notifier notification.Dispatcher,
	invalidator SessionInvalidator,
	auditor *audit.AuditLogger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		notifier:    notifier,
		invalidator: invalidator,
		auditor:     auditor,
		metrics:     m,
		now:         time.Now,
	}
}

// Submit files a pending request to become a staff role. A user has at most
// one pending request at a time.
func (s *Service) Submit(ctx context.Context, session access.Session, req model.SubmitRoleRequest) (*model.RoleRequest, error) {
	if err := access.Check(session, submitRequirement); err != nil {
		return nil, err
	}
	if !req.RequestedRole.Elevatable() {
		return nil, apperrors.Validation(fmt.Sprintf("role %q cannot be requested", req.RequestedRole))
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperrors.Validation("a reason is required")
	}
	for _, key := range requiredData[req.RequestedRole] {
		if stringField(req.AdditionalData, key) == "" {
			return nil, apperrors.Validation(fmt.Sprintf("additional_data.%s is required for role %s", key, req.RequestedRole))
		}
	}

	pending, err := s.repo.HasPending(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending {
		s.metrics.Transition(entity, "submit", apperrors.ErrDuplicatePendingRequest.String())
		return nil, apperrors.DuplicatePendingRequest()
	}

	request := &model.RoleRequest{
		UserID:         session.UserID,
		CurrentRole:    session.Role,
		RequestedRole:  req.RequestedRole,
		Reason:         reason,
		AdditionalData: req.AdditionalData,
		Status:         model.RoleRequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.Transition(entity, "submit", apperrors.ErrDuplicatePendingRequest.String())
			return nil, apperrors.DuplicatePendingRequest()
		}
		return nil, fmt.Errorf("failed to create role request: %w", err)
	}

	s.metrics.Transition(entity, "submit", "ok")
	s.auditor.Log(ctx, session.UserID, "submit", model.AuditEntityRoleRequest, request.ID, &audit.LogOptions{Changes: request})
	return request, nil
}

// Review approves or rejects a pending request. Approval flips the request,
// changes the user's role and writes the role profile in one unit.
func (s *Service) Review(ctx context.Context, session access.Session, id uuid.UUID, decision, note string) (*model.RoleRequest, error) {
	if err := access.Check(session, reviewRequirement); err != nil {
		return nil, err
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperrors.Validation("decision must be approve or reject")
	}

	request, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.UserID == session.UserID {
		return request, apperrors.Forbidden("cannot review your own request", access.HomePath(session.Role))
	}
	if request.Status != model.RoleRequestStatusPending {
		s.metrics.Transition(entity, decision, apperrors.ErrInvalidTransition.String())
		return request, apperrors.InvalidTransition(string(request.Status), decision)
	}

	reviewer := session.UserID
	reviewedAt := s.now()
	updated := *request
	updated.ReviewedBy = &reviewer
	updated.ReviewNote = strings.TrimSpace(note)
	updated.ReviewedAt = &reviewedAt

	if decision == DecisionApprove {
		err = s.repo.Approve(ctx, &updated, elevationProfile(request))
	} else {
		err = s.repo.Reject(ctx, &updated)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			err = apperrors.InvalidTransition(string(request.Status), decision)
		case errors.Is(err, repository.ErrDuplicate):
			err = apperrors.Conflict("the role profile conflicts with an existing record", err)
		default:
			err = fmt.Errorf("failed to review role request: %w", err)
		}
		s.metrics.Transition(entity, decision, apperrors.CodeOf(err).String())
		if current, getErr := s.repo.GetByID(ctx, id); getErr == nil {
			return current, err
		}
		return request, err
	}

	if decision == DecisionApprove && s.invalidator != nil {
		s.invalidator.Invalidate(updated.UserID)
	}

	s.metrics.Transition(entity, decision, "ok")
	s.auditor.Log(ctx, session.UserID, decision, model.AuditEntityRoleRequest, updated.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"status": updated.Status, "requested_role": updated.RequestedRole},
	})
	s.notifier.Notify(ctx, model.Notification{
		Type:       model.NotificationRoleRequestReviewed,
		UserID:     updated.UserID,
		Subject:    "Role request " + string(updated.Status),
		Content:    fmt.Sprintf("Your request to become %s was %s", updated.RequestedRole, updated.Status),
		EntityType: model.AuditEntityRoleRequest,
		EntityID:   updated.ID,
		Data:       map[string]interface{}{"note": updated.ReviewNote},
	})
	return &updated, nil
}

func (s *Service) Approve(ctx context.Context, session access.Session, id uuid.UUID, note string) (*model.RoleRequest, error) {
	return s.Review(ctx, session, id, DecisionApprove, note)
}

func (s *Service) Reject(ctx context.Context, session access.Session, id uuid.UUID, note string) (*model.RoleRequest, error) {
	return s.Review(ctx, session, id, DecisionReject, note)
}

func (s *Service) List(ctx context.Context, session access.Session, filter model.RoleRequestFilter) ([]*model.RoleRequest, error) {
	if err := access.Check(session, reviewRequirement); err != nil {
		return nil, err
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list role requests: %w", err)
	}
	return requests, nil
}

// ListMine returns the caller's own requests, newest first.
func (s *Service) ListMine(ctx context.Context, session access.Session) ([]*model.RoleRequest, error) {
	if err := access.Check(session, access.Authenticated()); err != nil {
		return nil, err
	}
	requests, err := s.repo.List(ctx, model.RoleRequestFilter{UserID: session.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to list role requests: %w", err)
	}
	return requests, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("role request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role request: %w", err)
	}
	return request, nil
}

func elevationProfile(req *model.RoleRequest) model.ElevationProfile {
	data := req.AdditionalData
	switch req.RequestedRole {
	case model.RoleDoctor:
		return model.ElevationProfile{Doctor: &model.DoctorProfile{
			UserID:         req.UserID,
			Specialization: stringField(data, "specialization"),
			Category:       stringField(data, "category"),
			LicenseNumber:  stringField(data, "license_number"),
		}}
	case model.RoleDriver:
		vehicleType := stringField(data, "vehicle_type")
		if vehicleType == "" {
			vehicleType = "car"
		}
		return model.ElevationProfile{Driver: &model.DriverProfile{
			UserID:       req.UserID,
			VehiclePlate: strings.ToUpper(stringField(data, "vehicle_plate")),
			VehicleType:  vehicleType,
		}}
	}
	return model.ElevationProfile{}
}

func stringField(data model.JSONMap, key string) string {
	v, ok := data[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
