package appointment

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
	"github.com/jwalitptl/clinic-workflow/internal/service/event"
	"github.com/jwalitptl/clinic-workflow/internal/service/notification"
	"github.com/jwalitptl/clinic-workflow/internal/service/schedule"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/lock"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

const entity = "appointment"

var viewRequirement = access.Roles(model.RolePatient, model.RoleDoctor, model.RoleReception, model.RoleAdmin)

// SlotSource recomputes a doctor's slots for a date from fresh data.
type SlotSource interface {
	Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.AvailableSlot, error)
}

// Payload is the optional data an action carries.
type Payload struct {
	Reason string
	Notes  string
}

type Service struct {
	repo     repository.AppointmentRepository
	users    repository.UserRepository
	slots    SlotSource
	locker   lock.Locker
	notifier notification.Dispatcher
	events   event.Emitter
	auditor  *audit.AuditLogger
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewService(
	repo repository.AppointmentRepository,
	users repository.UserRepository,
	slots SlotSource,
	locker lock.Locker,
	notifier notification.Dispatcher,
	events event.Emitter,
	auditor *audit.AuditLogger,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		slots:    slots,
		locker:   locker,
		notifier: notifier,
		events:   events,
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

// CreateAppointment books a slot in pending. The slot is re-checked under a
// per-slot lock at write time; losing the race yields SlotUnavailable.
func (s *Service) CreateAppointment(ctx context.Context, session access.Session, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := access.Check(session, access.Roles(createRoles...)); err != nil {
		s.metrics.Transition(entity, "create", "denied")
		return nil, err
	}

	patientID, err := s.resolvePatient(ctx, session, req.PatientID)
	if err != nil {
		return nil, err
	}

	date, hhmm, err := s.parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.Availability(ctx, req.DoctorID, date)
	if err != nil {
		return nil, err
	}
	slot, ok := findSlot(slots, hhmm)
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("%s is not a bookable slot on %s", hhmm, req.Date))
	}
	if !slot.IsAvailable {
		return nil, s.conflict(nil)
	}

	apt := &model.Appointment{
		PatientID: patientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      hhmm,
		Status:    model.AppointmentStatusPending,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedBy: session.UserID,
	}

	key := fmt.Sprintf("slot:%s:%s:%s", req.DoctorID, date.Format(model.DateLayout), hhmm)
	err = s.locker.WithLock(ctx, key, func(ctx context.Context) error {
		taken, err := s.repo.SlotTaken(ctx, apt.DoctorID, apt.Date, apt.Time)
		if err != nil {
			return fmt.Errorf("failed to check slot: %w", err)
		}
		if taken {
			return s.conflict(nil)
		}
		if err := s.repo.Create(ctx, apt); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return s.conflict(err)
			}
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return nil
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return nil, s.conflict(err)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(entity, "create", "ok")
	s.auditor.Log(ctx, session.UserID, "create", model.AuditEntityAppointment, apt.ID, &audit.LogOptions{Changes: apt})
	return apt, nil
}

// TransitionAppointment applies action to appointment id. On failure the
// current stored appointment is returned with the error so callers can
// refresh before retrying.
func (s *Service) TransitionAppointment(ctx context.Context, session access.Session, id uuid.UUID, action Action, payload Payload) (*model.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := access.Check(session, Requirement(action)); err != nil {
		return s.fail(ctx, apt, action, err)
	}
	if err := authorizeOwner(session, apt); err != nil {
		return s.fail(ctx, apt, action, err)
	}

	next, err := NextState(apt.Status, action, session.Role)
	if err != nil {
		return s.fail(ctx, apt, action, err)
	}

	updated := *apt
	updated.Status = next
	switch action {
	case ActionReject:
		reason := strings.TrimSpace(payload.Reason)
		if reason == "" {
			return s.fail(ctx, apt, action, apperrors.Validation("a reason is required to reject an appointment"))
		}
		updated.RejectionReason = reason
	case ActionCancel:
		updated.CancelReason = strings.TrimSpace(payload.Reason)
	case ActionComplete:
		if notes := strings.TrimSpace(payload.Notes); notes != "" {
			updated.DoctorNotes = notes
		}
	}

	if err := s.repo.UpdateStatus(ctx, &updated, apt.Status); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return s.fail(ctx, apt, action, apperrors.InvalidTransition(string(apt.Status), string(action)))
		}
		return s.fail(ctx, apt, action, fmt.Errorf("failed to update appointment: %w", err))
	}

	s.metrics.Transition(entity, string(action), "ok")
	s.auditor.Log(ctx, session.UserID, string(action), model.AuditEntityAppointment, updated.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"from": apt.Status, "to": updated.Status},
	})
	s.afterTransition(ctx, action, &updated)

	return &updated, nil
}

func (s *Service) Confirm(ctx context.Context, session access.Session, id uuid.UUID) (*model.Appointment, error) {
	return s.TransitionAppointment(ctx, session, id, ActionConfirm, Payload{})
}

func (s *Service) Reject(ctx context.Context, session access.Session, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.TransitionAppointment(ctx, session, id, ActionReject, Payload{Reason: reason})
}

func (s *Service) Cancel(ctx context.Context, session access.Session, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.TransitionAppointment(ctx, session, id, ActionCancel, Payload{Reason: reason})
}

func (s *Service) Start(ctx context.Context, session access.Session, id uuid.UUID) (*model.Appointment, error) {
	return s.TransitionAppointment(ctx, session, id, ActionStart, Payload{})
}

func (s *Service) Complete(ctx context.Context, session access.Session, id uuid.UUID, notes string) (*model.Appointment, error) {
	return s.TransitionAppointment(ctx, session, id, ActionComplete, Payload{Notes: notes})
}

func (s *Service) MarkNoShow(ctx context.Context, session access.Session, id uuid.UUID) (*model.Appointment, error) {
	return s.TransitionAppointment(ctx, session, id, ActionNoShow, Payload{})
}

func (s *Service) GetAppointment(ctx context.Context, session access.Session, id uuid.UUID) (*model.Appointment, error) {
	if err := access.Check(session, viewRequirement); err != nil {
		return nil, err
	}
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(session, apt); err != nil {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return apt, nil
}

// ListAppointments scopes patients and doctors to their own appointments.
func (s *Service) ListAppointments(ctx context.Context, session access.Session, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	if err := access.Check(session, viewRequirement); err != nil {
		return nil, err
	}
	switch session.Role {
	case model.RolePatient:
		filter.PatientID = session.UserID
	case model.RoleDoctor:
		filter.DoctorID = session.UserID
	}

	appointments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// SendReminders notifies every patient with a confirmed appointment on day.
func (s *Service) SendReminders(ctx context.Context, day time.Time) (int, error) {
	appointments, err := s.repo.ListConfirmedOn(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list confirmed appointments: %w", err)
	}

	for _, apt := range appointments {
		s.notifier.Notify(ctx, model.Notification{
			Type:       model.NotificationAppointmentReminder,
			UserID:     apt.PatientID,
			Subject:    "Appointment reminder",
			Content:    fmt.Sprintf("You have an appointment on %s at %s", apt.Date.Format(model.DateLayout), apt.Time),
			EntityType: model.AuditEntityAppointment,
			EntityID:   apt.ID,
		})
	}
	return len(appointments), nil
}

func (s *Service) afterTransition(ctx context.Context, action Action, apt *model.Appointment) {
	date := apt.Date.Format(model.DateLayout)

	switch action {
	case ActionConfirm:
		s.notifier.Notify(ctx, model.Notification{
			Type:       model.NotificationAppointmentConfirmed,
			UserID:     apt.PatientID,
			Subject:    "Appointment confirmed",
			Content:    fmt.Sprintf("Your appointment on %s at %s is confirmed", date, apt.Time),
			EntityType: model.AuditEntityAppointment,
			EntityID:   apt.ID,
		})
	case ActionReject:
		s.notifier.Notify(ctx, model.Notification{
			Type:       model.NotificationAppointmentRejected,
			UserID:     apt.PatientID,
			Subject:    "Appointment rejected",
			Content:    fmt.Sprintf("Your appointment on %s at %s was rejected: %s", date, apt.Time, apt.RejectionReason),
			EntityType: model.AuditEntityAppointment,
			EntityID:   apt.ID,
			Data:       map[string]interface{}{"reason": apt.RejectionReason},
		})
	case ActionCancel:
		err := s.events.Emit(ctx, model.EventSlotReleased, map[string]interface{}{
			"appointment_id": apt.ID,
			"doctor_id":      apt.DoctorID,
			"date":           date,
			"time":           apt.Time,
		})
		if err != nil {
			s.log.Error(err, "failed to emit slot release", "appointment_id", apt.ID.String())
		}
	}
}

// fail records a failed attempt and re-reads the appointment so the caller
// sees the last stored state.
func (s *Service) fail(ctx context.Context, apt *model.Appointment, action Action, err error) (*model.Appointment, error) {
	s.metrics.Transition(entity, string(action), apperrors.CodeOf(err).String())

	current, getErr := s.repo.GetByID(ctx, apt.ID)
	if getErr != nil {
		s.log.Error(getErr, "failed to refresh appointment", "appointment_id", apt.ID.String())
		return apt, err
	}
	return current, err
}

func (s *Service) conflict(err error) error {
	if s.metrics != nil {
		s.metrics.BookingConflicts.Inc()
	}
	s.metrics.Transition(entity, "create", apperrors.ErrSlotUnavailable.String())
	return apperrors.SlotUnavailable(err)
}

func (s *Service) resolvePatient(ctx context.Context, session access.Session, requested uuid.UUID) (uuid.UUID, error) {
	if session.Role == model.RolePatient {
		if requested != uuid.Nil && requested != session.UserID {
			return uuid.Nil, apperrors.Forbidden("patients may only book for themselves", access.HomePath(session.Role))
		}
		return session.UserID, nil
	}

	if requested == uuid.Nil {
		return uuid.Nil, apperrors.Validation("patient_id is required")
	}
	patient, err := s.users.GetByID(ctx, requested)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && patient.Role != model.RolePatient) {
		return uuid.Nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient.ID, nil
}

func (s *Service) parseSlot(dateStr, timeStr string) (time.Time, string, error) {
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return time.Time{}, "", apperrors.BadRequest("date must be YYYY-MM-DD", err)
	}
	minutes, err := schedule.ParseClock(timeStr)
	if err != nil {
		return time.Time{}, "", apperrors.BadRequest("time must be HH:MM", err)
	}

	now := s.localNow()
	today := model.DateOnly(now)
	if date.Before(today) {
		return time.Time{}, "", apperrors.Validation("cannot book a date in the past")
	}
	if date.Equal(today) && minutes <= now.Hour()*60+now.Minute() {
		return time.Time{}, "", apperrors.Validation("cannot book a time in the past")
	}
	return date, schedule.FormatClock(minutes), nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

// authorizeOwner limits patients and doctors to appointments they are party to.
func authorizeOwner(session access.Session, apt *model.Appointment) error {
	switch session.Role {
	case model.RolePatient:
		if apt.PatientID != session.UserID {
			return apperrors.Forbidden("not your appointment", access.HomePath(session.Role))
		}
	case model.RoleDoctor:
		if apt.DoctorID != session.UserID {
			return apperrors.Forbidden("not your appointment", access.HomePath(session.Role))
		}
	}
	return nil
}

func findSlot(slots []model.AvailableSlot, hhmm string) (model.AvailableSlot, bool) {
	for _, slot := range slots {
		if slot.Time == hhmm {
			return slot, true
		}
	}
	return model.AvailableSlot{}, false
}
