package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
	"github.com/jwalitptl/clinic-workflow/pkg/retry"
)

var (
	manageRequirement = access.Roles(model.RoleDoctor, model.RoleAdmin)
	viewRequirement   = access.Authenticated()
)

type Service struct {
	schedules    repository.ScheduleRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	auditor      *audit.AuditLogger
	metrics      *metrics.Metrics
	readPolicy   retry.Policy
}

func NewService(
	schedules repository.ScheduleRepository,
	appointments repository.AppointmentRepository,
	users repository.UserRepository,
	auditor *audit.AuditLogger,
	m *metrics.Metrics,
	readPolicy retry.Policy,
) *Service {
	return &Service{
		schedules:    schedules,
		appointments: appointments,
		users:        users,
		auditor:      auditor,
		metrics:      m,
		readPolicy:   readPolicy,
	}
}

// ListSlots recomputes the slots of doctorID on date from fresh reads.
func (s *Service) ListSlots(ctx context.Context, session access.Session, doctorID uuid.UUID, date time.Time) ([]model.AvailableSlot, error) {
	if err := access.Check(session, viewRequirement); err != nil {
		return nil, err
	}
	return s.Availability(ctx, doctorID, date)
}

// Availability is ListSlots without the gate, for callers that already passed it.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.AvailableSlot, error) {
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return nil, err
	}

	var schedules []model.DoctorSchedule
	var existing []model.Appointment
	err := retry.Do(ctx, s.readPolicy, func() error {
		var err error
		if schedules, err = s.schedules.ListByDoctor(ctx, doctorID); err != nil {
			return err
		}
		existing, err = s.appointments.ListByDoctorAndDate(ctx, doctorID, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SlotQueries.Inc()
	}
	return ComputeSlots(schedules, date, existing)
}

func (s *Service) ListSchedules(ctx context.Context, session access.Session, doctorID uuid.UUID) ([]model.DoctorSchedule, error) {
	if err := access.Check(session, viewRequirement); err != nil {
		return nil, err
	}

	var schedules []model.DoctorSchedule
	err := retry.Do(ctx, s.readPolicy, func() error {
		var err error
		schedules, err = s.schedules.ListByDoctor(ctx, doctorID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (s *Service) CreateSchedule(ctx context.Context, session access.Session, req model.UpsertScheduleRequest) (*model.DoctorSchedule, error) {
	doctorID, err := s.authorizeManage(ctx, session, req.DoctorID)
	if err != nil {
		return nil, err
	}

	entry, err := buildEntry(req)
	if err != nil {
		return nil, err
	}
	entry.DoctorID = doctorID

	if entry.IsActive {
		if err := s.ensureSingleActive(ctx, doctorID, entry.DayOfWeek, uuid.Nil); err != nil {
			return nil, err
		}
	}

	if err := s.schedules.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activeExists(entry.DayOfWeek)
		}
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	s.auditor.Log(ctx, session.UserID, "create", model.AuditEntitySchedule, entry.ID, &audit.LogOptions{Changes: entry})
	return entry, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, session access.Session, id uuid.UUID, req model.UpsertScheduleRequest) (*model.DoctorSchedule, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeManage(ctx, session, current.DoctorID); err != nil {
		return nil, err
	}

	entry, err := buildEntry(req)
	if err != nil {
		return nil, err
	}
	entry.Base = current.Base
	entry.DoctorID = current.DoctorID

	if entry.IsActive {
		if err := s.ensureSingleActive(ctx, entry.DoctorID, entry.DayOfWeek, entry.ID); err != nil {
			return nil, err
		}
	}

	if err := s.schedules.Update(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activeExists(entry.DayOfWeek)
		}
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	s.auditor.Log(ctx, session.UserID, "update", model.AuditEntitySchedule, entry.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"before": current, "after": entry},
	})
	return entry, nil
}

// DeactivateSchedule turns an entry off. Entries are never deleted.
func (s *Service) DeactivateSchedule(ctx context.Context, session access.Session, id uuid.UUID) (*model.DoctorSchedule, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeManage(ctx, session, current.DoctorID); err != nil {
		return nil, err
	}
	if !current.IsActive {
		return current, nil
	}

	current.IsActive = false
	if err := s.schedules.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to deactivate schedule: %w", err)
	}

	s.auditor.Log(ctx, session.UserID, "deactivate", model.AuditEntitySchedule, current.ID, nil)
	return current, nil
}

// authorizeManage resolves whose schedule is being managed. Doctors manage
// their own; admins name the doctor.
func (s *Service) authorizeManage(ctx context.Context, session access.Session, doctorID uuid.UUID) (uuid.UUID, error) {
	if err := access.Check(session, manageRequirement); err != nil {
		return uuid.Nil, err
	}

	if session.Role == model.RoleDoctor {
		if doctorID != uuid.Nil && doctorID != session.UserID {
			return uuid.Nil, apperrors.Forbidden("doctors may only manage their own schedule", access.HomePath(session.Role))
		}
		return session.UserID, nil
	}

	if doctorID == uuid.Nil {
		return uuid.Nil, apperrors.Validation("doctor_id is required")
	}
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return uuid.Nil, err
	}
	return doctorID, nil
}

func (s *Service) ensureSingleActive(ctx context.Context, doctorID uuid.UUID, day int, except uuid.UUID) error {
	existing, err := s.schedules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}
	for _, e := range existing {
		if e.IsActive && e.DayOfWeek == day && e.ID != except {
			return activeExists(day)
		}
	}
	return nil
}

// activeExists reports a second active entry for a weekday, whether caught
// up front or by the store's uniqueness guard.
func activeExists(day int) error {
	return apperrors.Validation(fmt.Sprintf("an active schedule already exists for %s", time.Weekday(day)))
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.DoctorSchedule, error) {
	entry, err := s.schedules.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("schedule", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return entry, nil
}

func (s *Service) doctor(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	if user.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return user, nil
}

func buildEntry(req model.UpsertScheduleRequest) (*model.DoctorSchedule, error) {
	if req.DayOfWeek == nil || *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		return nil, apperrors.Validation("day_of_week must be between 0 (Sunday) and 6 (Saturday)")
	}
	if !ValidClock(req.StartTime) || !ValidClock(req.EndTime) {
		return nil, apperrors.Validation("start_time and end_time must be HH:MM")
	}
	if req.SlotDuration <= 0 {
		return nil, apperrors.Validation("slot_duration must be positive")
	}

	start, _ := ParseClock(req.StartTime)
	end, _ := ParseClock(req.EndTime)
	if start >= end {
		return nil, apperrors.Validation("start_time must be before end_time")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return &model.DoctorSchedule{
		DayOfWeek:    *req.DayOfWeek,
		StartTime:    FormatClock(start),
		EndTime:      FormatClock(end),
		SlotDuration: req.SlotDuration,
		IsActive:     active,
	}, nil
}
