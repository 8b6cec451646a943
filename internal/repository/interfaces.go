package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
)

// Storage-level outcomes every implementation reports the same way.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("unique constraint violated")
	ErrStaleStatus       = errors.New("status changed concurrently")
	ErrDriverUnavailable = errors.New("driver is not available")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)
	}

	ScheduleRepository interface {
		Create(ctx context.Context, schedule *model.DoctorSchedule) error
		Update(ctx context.Context, schedule *model.DoctorSchedule) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.DoctorSchedule, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorSchedule, error)
	}

	// AppointmentRepository.Create returns ErrDuplicate when the slot is
	// already held. UpdateStatus only applies when the stored status still
	// equals from, otherwise ErrStaleStatus.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.Appointment, error)
		SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, hhmm string) (bool, error)
		UpdateStatus(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error
		ListConfirmedOn(ctx context.Context, date time.Time) ([]*model.Appointment, error)
	}

	// HomeVisitRepository.Assign claims the driver and moves the visit in one
	// transaction. UpdateStatus clears the driver's busy flag in the same
	// transaction when releaseDriver is set.
	HomeVisitRepository interface {
		Create(ctx context.Context, visit *model.HomeVisit) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.HomeVisit, error)
		List(ctx context.Context, filter model.HomeVisitFilter) ([]*model.HomeVisit, error)
		Assign(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus) error
		UpdateStatus(ctx context.Context, visit *model.HomeVisit, from model.HomeVisitStatus, releaseDriver bool) error
	}

	DriverRepository interface {
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.DriverProfile, error)
		SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error
		ListDispatchable(ctx context.Context) ([]*model.DriverProfile, error)
	}

	// RoleRequestRepository.Approve writes the review, the user's role and the
	// profile atomically; a failure leaves all three untouched.
	RoleRequestRepository interface {
		Create(ctx context.Context, req *model.RoleRequest) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error)
		HasPending(ctx context.Context, userID uuid.UUID) (bool, error)
		List(ctx context.Context, filter model.RoleRequestFilter) ([]*model.RoleRequest, error)
		Approve(ctx context.Context, req *model.RoleRequest, profile model.ElevationProfile) error
		Reject(ctx context.Context, req *model.RoleRequest) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories is one storage driver's full set of repositories.
type Repositories struct {
	Users        UserRepository
	Schedules    ScheduleRepository
	Appointments AppointmentRepository
	HomeVisits   HomeVisitRepository
	Drivers      DriverRepository
	RoleRequests RoleRequestRepository
	Outbox       OutboxRepository
	Audit        AuditRepository
}
