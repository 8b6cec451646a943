package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository/memory"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	"github.com/jwalitptl/clinic-workflow/internal/service/event"
	"github.com/jwalitptl/clinic-workflow/internal/service/notification"
	"github.com/jwalitptl/clinic-workflow/internal/service/schedule"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/lock"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
	"github.com/jwalitptl/clinic-workflow/pkg/retry"
)

// 2030-01-07 is a Monday.
var monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repos     *memory.Repositories
	patient   access.Session
	doctor    access.Session
	reception access.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New()
	log := logger.Nop()
	m := metrics.NewMetrics("test", nil)
	auditor := audit.NewAuditLogger(audit.NewService(repos.Audit), log)
	events := event.NewService(repos.Outbox)
	schedules := schedule.NewService(repos.Schedules, repos.Appointments, repos.Users, auditor, m,
		retry.Policy{MaxRetries: 1, InitialInterval: time.Millisecond})

	svc := NewService(repos.Appointments, repos.Users, schedules, lock.NewLocalLocker(),
		notification.NewDispatcher(events, log, m), events, auditor, m, log).WithLocation(time.UTC)
	svc.now = func() time.Time { return monday.Add(-24 * time.Hour) }

	f := &fixture{svc: svc, repos: repos}
	f.patient = f.user(t, model.RolePatient)
	f.doctor = f.user(t, model.RoleDoctor)
	f.reception = f.user(t, model.RoleReception)

	require.NoError(t, repos.Schedules.Create(context.Background(), &model.DoctorSchedule{
		DoctorID:     f.doctor.UserID,
		DayOfWeek:    int(time.Monday),
		StartTime:    "08:00",
		EndTime:      "10:00",
		SlotDuration: 60,
		IsActive:     true,
	}))
	return f
}

func (f *fixture) user(t *testing.T, role model.Role) access.Session {
	t.Helper()
	u := &model.User{Email: uuid.NewString() + "@clinic.test", Name: string(role), Role: role, Status: model.UserStatusActive}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return access.Session{UserID: u.ID, IsAuthenticated: true, Role: role}
}

func (f *fixture) book(t *testing.T, hhmm string) *model.Appointment {
	t.Helper()
	apt, err := f.svc.CreateAppointment(context.Background(), f.patient, model.CreateAppointmentRequest{
		DoctorID: f.doctor.UserID,
		Date:     monday.Format(model.DateLayout),
		Time:     hhmm,
	})
	require.NoError(t, err)
	return apt
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, e := range f.repos.Store.OutboxEvents() {
		out = append(out, e.EventType)
	}
	return out
}

func TestAppointmentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.book(t, "09:00")
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, f.patient.UserID, apt.PatientID)

	slots, err := f.svc.slots.Availability(ctx, f.doctor.UserID, monday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].IsAvailable)
	assert.False(t, slots[1].IsAvailable)

	_, err = f.svc.CreateAppointment(ctx, f.patient, model.CreateAppointmentRequest{
		DoctorID: f.doctor.UserID,
		Date:     monday.Format(model.DateLayout),
		Time:     "09:00",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrSlotUnavailable), "got %v", err)

	apt, err = f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)

	apt, err = f.svc.Complete(ctx, f.doctor, apt.ID, "follow up in two weeks")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)
	assert.Equal(t, "follow up in two weeks", apt.DoctorNotes)

	current, err := f.svc.Complete(ctx, f.doctor, apt.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	require.NotNil(t, current)
	assert.Equal(t, model.AppointmentStatusCompleted, current.Status)

	assert.Contains(t, f.eventTypes(), model.NotificationAppointmentConfirmed)
}

func TestCreateAppointmentConcurrentBookingsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	patients := make([]access.Session, n)
	for i := range patients {
		patients[i] = f.user(t, model.RolePatient)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, p := range patients {
		wg.Add(1)
		go func(p access.Session) {
			defer wg.Done()
			_, err := f.svc.CreateAppointment(ctx, p, model.CreateAppointmentRequest{
				DoctorID: f.doctor.UserID,
				Date:     monday.Format(model.DateLayout),
				Time:     "08:00",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperrors.IsCode(err, apperrors.ErrSlotUnavailable) {
				conflicts++
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)

	booked, err := f.repos.Appointments.ListByDoctorAndDate(ctx, f.doctor.UserID, monday)
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := monday.Format(model.DateLayout)

	tests := []struct {
		name string
		req  model.CreateAppointmentRequest
		code apperrors.ErrorCode
	}{
		{"off-grid time", model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: date, Time: "08:30"}, apperrors.ErrBadRequest},
		{"outside hours", model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: date, Time: "10:00"}, apperrors.ErrBadRequest},
		{"no schedule that day", model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: "2030-01-08", Time: "08:00"}, apperrors.ErrBadRequest},
		{"past date", model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: "2029-12-31", Time: "08:00"}, apperrors.ErrBadRequest},
		{"bad date", model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: "07/01/2030", Time: "08:00"}, apperrors.ErrBadRequest},
		{"unknown doctor", model.CreateAppointmentRequest{DoctorID: uuid.New(), Date: date, Time: "08:00"}, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(ctx, f.patient, tt.req)
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestCreateAppointmentAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: monday.Format(model.DateLayout), Time: "08:00"}

	_, err := f.svc.CreateAppointment(ctx, f.doctor, req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.CreateAppointment(ctx, access.Anonymous, req)
	require.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
	assert.Equal(t, access.LoginPath, apperrors.As(err).Redirect)

	other := f.user(t, model.RolePatient)
	forOther := req
	forOther.PatientID = other.UserID
	_, err = f.svc.CreateAppointment(ctx, f.patient, forOther)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.CreateAppointment(ctx, f.reception, req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest), "reception must name a patient")

	apt, err := f.svc.CreateAppointment(ctx, f.reception, forOther)
	require.NoError(t, err)
	assert.Equal(t, other.UserID, apt.PatientID)
	assert.Equal(t, f.reception.UserID, apt.CreatedBy)
}

func TestRejectRequiresReasonAndFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	current, err := f.svc.Reject(ctx, f.doctor, apt.ID, "  ")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	assert.Equal(t, model.AppointmentStatusPending, current.Status)

	rejected, err := f.svc.Reject(ctx, f.doctor, apt.ID, "on leave")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusRejected, rejected.Status)
	assert.Equal(t, "on leave", rejected.RejectionReason)
	assert.Contains(t, f.eventTypes(), model.NotificationAppointmentRejected)

	rebooked := f.book(t, "08:00")
	assert.NotEqual(t, apt.ID, rebooked.ID)
}

func TestCancelEmitsSlotRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	cancelled, err := f.svc.Cancel(ctx, f.patient, apt.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "feeling better", cancelled.CancelReason)
	assert.Contains(t, f.eventTypes(), model.EventSlotReleased)
}

func TestTransitionOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	otherDoctor := f.user(t, model.RoleDoctor)
	current, err := f.svc.Confirm(ctx, otherDoctor, apt.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
	assert.Equal(t, model.AppointmentStatusPending, current.Status)

	otherPatient := f.user(t, model.RolePatient)
	_, err = f.svc.Cancel(ctx, otherPatient, apt.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Cancel(ctx, f.reception, apt.ID, "doctor unavailable")
	assert.NoError(t, err)
}

func TestTransitionRoleDeniedCarriesRedirect(t *testing.T) {
	f := newFixture(t)
	apt := f.book(t, "08:00")

	_, err := f.svc.Confirm(context.Background(), f.patient, apt.ID)
	require.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
	assert.Equal(t, access.HomePath(model.RolePatient), apperrors.As(err).Redirect)
}

func TestNoShowOnlyFromConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	_, err := f.svc.MarkNoShow(ctx, f.reception, apt.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	_, err = f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	noShow, err := f.svc.MarkNoShow(ctx, f.reception, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusNoShow, noShow.Status)
}

func TestTransitionUnknownAppointment(t *testing.T) {
	f := newFixture(t)
	current, err := f.svc.Confirm(context.Background(), f.doctor, uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	assert.Nil(t, current)
}

func TestListAppointmentsScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, "08:00")

	other := f.user(t, model.RolePatient)
	_, err := f.svc.CreateAppointment(ctx, other, model.CreateAppointmentRequest{
		DoctorID: f.doctor.UserID,
		Date:     monday.Format(model.DateLayout),
		Time:     "09:00",
	})
	require.NoError(t, err)

	mine, err := f.svc.ListAppointments(ctx, f.patient, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.svc.ListAppointments(ctx, f.reception, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	doctorView, err := f.svc.ListAppointments(ctx, f.doctor, model.AppointmentFilter{PatientID: other.UserID})
	require.NoError(t, err)
	assert.Len(t, doctorView, 1)

	driver := f.user(t, model.RoleDriver)
	_, err = f.svc.ListAppointments(ctx, driver, model.AppointmentFilter{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.book(t, "08:00")
	f.book(t, "09:00")
	_, err := f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	sent, err := f.svc.SendReminders(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, f.eventTypes(), model.NotificationAppointmentReminder)
}

func TestPastCheckUsesClinicClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := model.CreateAppointmentRequest{DoctorID: f.doctor.UserID, Date: monday.Format(model.DateLayout), Time: "08:00"}

	// 10:00 UTC on Monday is 05:00 at the clinic.
	f.svc.now = func() time.Time { return monday.Add(10 * time.Hour) }
	f.svc.WithLocation(time.FixedZone("clinic", -5*60*60))
	apt, err := f.svc.CreateAppointment(ctx, f.patient, req)
	require.NoError(t, err)
	assert.Equal(t, "08:00", apt.Time)

	// On a UTC clock the same instant has already passed 09:00.
	f.svc.WithLocation(time.UTC)
	_, err = f.svc.CreateAppointment(ctx, f.patient, model.CreateAppointmentRequest{
		DoctorID: f.doctor.UserID, Date: monday.Format(model.DateLayout), Time: "09:00",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestCreateAppointmentLockWaitTimesOut(t *testing.T) {
	f := newFixture(t)
	held := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	key := "slot:" + f.doctor.UserID.String() + ":" + monday.Format(model.DateLayout) + ":08:00"
	go func() {
		_ = f.svc.locker.WithLock(context.Background(), key, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.svc.CreateAppointment(ctx, f.patient, model.CreateAppointmentRequest{
		DoctorID: f.doctor.UserID, Date: monday.Format(model.DateLayout), Time: "08:00",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrTimeout), "got %v", err)
}
