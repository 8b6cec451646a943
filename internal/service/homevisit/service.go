package homevisit

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
	"github.com/jwalitptl/clinic-workflow/internal/service/schedule"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

const entity = "home_visit"

var (
	viewRequirement     = access.Roles(model.RolePatient, model.RoleDriver, model.RoleReception, model.RoleAdmin)
	dispatchRequirement = access.Roles(model.RoleReception, model.RoleAdmin)
	driverRequirement   = access.Roles(model.RoleDriver)
)

// Payload carries the optional data of a home visit action.
type Payload struct {
	DriverID *uuid.UUID
	Reason   string
	Notes    string
}

type Service struct {
	repo     repository.HomeVisitRepository
	drivers  repository.DriverRepository
	users    repository.UserRepository
	notifier notification.Dispatcher
	auditor  *audit.AuditLogger
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewService(
	repo repository.HomeVisitRepository,
	drivers repository.DriverRepository,
	users repository.UserRepository,
	notifier notification.Dispatcher,
	auditor *audit.AuditLogger,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		drivers:  drivers,
		users:    users,
		notifier: notifier,
		auditor:  auditor,
		metrics:  m,
		log:      log,
		now:      time.Now,
		loc:      time.Local,
	}
}

// WithLocation evaluates "today" and "now" on the clinic's wall clock rather
// than the server's.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) CreateHomeVisit(ctx context.Context, session access.Session, req model.CreateHomeVisitRequest) (*model.HomeVisit, error) {
	if err := access.Check(session, access.Roles(createRoles...)); err != nil {
		return nil, err
	}

	patient, err := s.users.GetByID(ctx, req.PatientID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && patient.Role != model.RolePatient) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, apperrors.Validation("address is required")
	}
	date, err := model.ParseDate(req.ScheduledDate)
	if err != nil {
		return nil, apperrors.BadRequest("scheduled_date must be YYYY-MM-DD", err)
	}
	if date.Before(model.DateOnly(s.localNow())) {
		return nil, apperrors.Validation("cannot schedule a visit in the past")
	}
	minutes, err := schedule.ParseClock(req.ScheduledTime)
	if err != nil {
		return nil, apperrors.BadRequest("scheduled_time must be HH:MM", err)
	}

	visit := &model.HomeVisit{
		PatientID:     patient.ID,
		Address:       address,
		ScheduledDate: date,
		ScheduledTime: schedule.FormatClock(minutes),
		Status:        model.HomeVisitStatusPending,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedBy:     session.UserID,
	}
	if err := s.repo.Create(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to create home visit: %w", err)
	}

	s.metrics.Transition(entity, "create", "ok")
	s.auditor.Log(ctx, session.UserID, "create", model.AuditEntityHomeVisit, visit.ID, &audit.LogOptions{Changes: visit})
	return visit, nil
}

// TransitionHomeVisit applies action to visit id. On failure the current
// stored visit is returned alongside the error.
func (s *Service) TransitionHomeVisit(ctx context.Context, session access.Session, id uuid.UUID, action Action, payload Payload) (*model.HomeVisit, error) {
	visit, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := access.Check(session, Requirement(action)); err != nil {
		return s.fail(ctx, visit, action, err)
	}
	if session.Role == model.RoleDriver && !visit.AssignedTo(session.UserID) {
		return s.fail(ctx, visit, action, apperrors.Forbidden("visit is not assigned to you", access.HomePath(session.Role)))
	}

	next, err := NextState(visit.Status, action, session.Role)
	if err != nil {
		return s.fail(ctx, visit, action, err)
	}

	updated := *visit
	updated.Status = next
	if notes := strings.TrimSpace(payload.Notes); notes != "" {
		updated.Notes = notes
	}

	if action == ActionAssign {
		err = s.assign(ctx, &updated, visit.Status, payload.DriverID)
	} else {
		if action == ActionCancel {
			updated.CancelReason = strings.TrimSpace(payload.Reason)
		}
		err = s.repo.UpdateStatus(ctx, &updated, visit.Status, releasesDriver(next))
	}
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			err = apperrors.InvalidTransition(string(visit.Status), string(action))
		}
		return s.fail(ctx, visit, action, err)
	}

	s.metrics.Transition(entity, string(action), "ok")
	s.auditor.Log(ctx, session.UserID, string(action), model.AuditEntityHomeVisit, updated.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"from": visit.Status, "to": updated.Status, "driver_id": updated.DriverID},
	})
	if action == ActionAssign {
		s.notifyAssigned(ctx, &updated)
	}
	return &updated, nil
}

func (s *Service) Assign(ctx context.Context, session access.Session, id, driverID uuid.UUID) (*model.HomeVisit, error) {
	return s.TransitionHomeVisit(ctx, session, id, ActionAssign, Payload{DriverID: &driverID})
}

func (s *Service) Depart(ctx context.Context, session access.Session, id uuid.UUID) (*model.HomeVisit, error) {
	return s.TransitionHomeVisit(ctx, session, id, ActionDepart, Payload{})
}

func (s *Service) Arrive(ctx context.Context, session access.Session, id uuid.UUID) (*model.HomeVisit, error) {
	return s.TransitionHomeVisit(ctx, session, id, ActionArrive, Payload{})
}

func (s *Service) Complete(ctx context.Context, session access.Session, id uuid.UUID, notes string) (*model.HomeVisit, error) {
	return s.TransitionHomeVisit(ctx, session, id, ActionComplete, Payload{Notes: notes})
}

func (s *Service) Cancel(ctx context.Context, session access.Session, id uuid.UUID, reason string) (*model.HomeVisit, error) {
	return s.TransitionHomeVisit(ctx, session, id, ActionCancel, Payload{Reason: reason})
}

func (s *Service) GetHomeVisit(ctx context.Context, session access.Session, id uuid.UUID) (*model.HomeVisit, error) {
	if err := access.Check(session, viewRequirement); err != nil {
		return nil, err
	}
	visit, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(session, visit) {
		return nil, apperrors.NotFound("home visit", nil)
	}
	return visit, nil
}

// ListHomeVisits scopes drivers to visits assigned to them and patients to their own.
func (s *Service) ListHomeVisits(ctx context.Context, session access.Session, filter model.HomeVisitFilter) ([]*model.HomeVisit, error) {
	if err := access.Check(session, viewRequirement); err != nil {
		return nil, err
	}
	switch session.Role {
	case model.RoleDriver:
		filter.DriverID = session.UserID
	case model.RolePatient:
		filter.PatientID = session.UserID
	}

	visits, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list home visits: %w", err)
	}
	return visits, nil
}

// SetDriverAvailability toggles the calling driver's on-duty flag.
func (s *Service) SetDriverAvailability(ctx context.Context, session access.Session, available bool) (*model.DriverProfile, error) {
	if err := access.Check(session, driverRequirement); err != nil {
		return nil, err
	}

	if err := s.drivers.SetAvailability(ctx, session.UserID, available); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("driver profile", err)
		}
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}

	profile, err := s.drivers.GetByUserID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get driver profile: %w", err)
	}
	s.auditor.Log(ctx, session.UserID, "set_availability", model.AuditEntityDriver, profile.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"is_available": available},
	})
	return profile, nil
}

// ListAvailableDrivers returns drivers that are on duty and not busy.
func (s *Service) ListAvailableDrivers(ctx context.Context, session access.Session) ([]*model.DriverProfile, error) {
	if err := access.Check(session, dispatchRequirement); err != nil {
		return nil, err
	}
	drivers, err := s.drivers.ListDispatchable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, nil
}

func (s *Service) assign(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus, driverID *uuid.UUID) error {
	if driverID == nil || *driverID == uuid.Nil {
		return apperrors.Validation("driver_id is required to assign a visit")
	}

	driver, err := s.users.GetByID(ctx, *driverID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && driver.Role != model.RoleDriver) {
		return apperrors.NotFound("driver", err)
	}
	if err != nil {
		return fmt.Errorf("failed to get driver: %w", err)
	}

	id := driver.ID
	visit.DriverID = &id
	if err := s.repo.Assign(ctx, visit, from); err != nil {
		if errors.Is(err, repository.ErrDriverUnavailable) {
			return apperrors.Conflict("driver is off duty or busy", err)
		}
		return err
	}
	return nil
}

func (s *Service) notifyAssigned(ctx context.Context, visit *model.HomeVisit) {
	s.notifier.Notify(ctx, model.Notification{
		Type:       model.NotificationHomeVisitAssigned,
		UserID:     *visit.DriverID,
		Subject:    "New home visit",
		Content:    fmt.Sprintf("Home visit at %s on %s %s", visit.Address, visit.ScheduledDate.Format(model.DateLayout), visit.ScheduledTime),
		EntityType: model.AuditEntityHomeVisit,
		EntityID:   visit.ID,
		Data:       map[string]interface{}{"patient_id": visit.PatientID},
	})
}

func (s *Service) fail(ctx context.Context, visit *model.HomeVisit, action Action, err error) (*model.HomeVisit, error) {
	s.metrics.Transition(entity, string(action), apperrors.CodeOf(err).String())

	current, getErr := s.repo.GetByID(ctx, visit.ID)
	if getErr != nil {
		s.log.Error(getErr, "failed to refresh home visit", "home_visit_id", visit.ID.String())
		return visit, err
	}
	return current, err
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.HomeVisit, error) {
	visit, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("home visit", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get home visit: %w", err)
	}
	return visit, nil
}

func visible(session access.Session, visit *model.HomeVisit) bool {
	switch session.Role {
	case model.RoleDriver:
		return visit.AssignedTo(session.UserID)
	case model.RolePatient:
		return visit.PatientID == session.UserID
	}
	return true
}
