package homevisit

import (
	"context"
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
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

var visitDay = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repos     *memory.Repositories
	patient   access.Session
	reception access.Session
	driver    access.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New()
	log := logger.Nop()
	m := metrics.NewMetrics("test", nil)
	auditor := audit.NewAuditLogger(audit.NewService(repos.Audit), log)

	svc := NewService(repos.HomeVisits, repos.Drivers, repos.Users,
		notification.NewDispatcher(event.NewService(repos.Outbox), log, m), auditor, m, log).WithLocation(time.UTC)
	svc.now = func() time.Time { return visitDay.Add(-time.Hour) }

	f := &fixture{svc: svc, repos: repos}
	f.patient = f.user(t, model.RolePatient)
	f.reception = f.user(t, model.RoleReception)
	f.driver = f.newDriver(t, "KA-01-1234", true)
	return f
}

func (f *fixture) user(t *testing.T, role model.Role) access.Session {
	t.Helper()
	u := &model.User{Email: uuid.NewString() + "@clinic.test", Name: string(role), Role: role, Status: model.UserStatusActive}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return access.Session{UserID: u.ID, IsAuthenticated: true, Role: role}
}

func (f *fixture) newDriver(t *testing.T, plate string, available bool) access.Session {
	t.Helper()
	s := f.user(t, model.RoleDriver)
	f.repos.Store.PutDriver(model.DriverProfile{UserID: s.UserID, VehiclePlate: plate, VehicleType: "van", IsAvailable: available})
	return s
}

func (f *fixture) visit(t *testing.T) *model.HomeVisit {
	t.Helper()
	v, err := f.svc.CreateHomeVisit(context.Background(), f.reception, model.CreateHomeVisitRequest{
		PatientID:     f.patient.UserID,
		Address:       "12 Lake Road",
		ScheduledDate: visitDay.Format(model.DateLayout),
		ScheduledTime: "10:30",
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) busy(t *testing.T, driver access.Session) bool {
	t.Helper()
	p, err := f.repos.Drivers.GetByUserID(context.Background(), driver.UserID)
	require.NoError(t, err)
	return p.IsBusy
}

func TestHomeVisitLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)
	assert.Equal(t, model.HomeVisitStatusPending, v.Status)

	v, err := f.svc.Assign(ctx, f.reception, v.ID, f.driver.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.HomeVisitStatusAssigned, v.Status)
	assert.True(t, v.AssignedTo(f.driver.UserID))
	assert.True(t, f.busy(t, f.driver))

	v, err = f.svc.Depart(ctx, f.driver, v.ID)
	require.NoError(t, err)
	v, err = f.svc.Arrive(ctx, f.driver, v.ID)
	require.NoError(t, err)
	v, err = f.svc.Complete(ctx, f.driver, v.ID, "vitals recorded")
	require.NoError(t, err)

	assert.Equal(t, model.HomeVisitStatusCompleted, v.Status)
	assert.Equal(t, "vitals recorded", v.Notes)
	assert.False(t, f.busy(t, f.driver))

	var types []string
	for _, e := range f.repos.Store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.NotificationHomeVisitAssigned)
}

func TestCancelEnRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)

	_, err := f.svc.Assign(ctx, f.reception, v.ID, f.driver.UserID)
	require.NoError(t, err)
	_, err = f.svc.Depart(ctx, f.driver, v.ID)
	require.NoError(t, err)

	current, err := f.svc.Cancel(ctx, f.driver, v.ID, "flat tyre")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden), "got %v", err)
	assert.Equal(t, model.HomeVisitStatusEnRoute, current.Status)
	assert.True(t, f.busy(t, f.driver))

	cancelled, err := f.svc.Cancel(ctx, f.reception, v.ID, "patient admitted")
	require.NoError(t, err)
	assert.Equal(t, model.HomeVisitStatusCancelled, cancelled.Status)
	assert.Equal(t, "patient admitted", cancelled.CancelReason)
	assert.False(t, f.busy(t, f.driver))
}

func TestDriverCancelsAssignedVisit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)

	_, err := f.svc.Assign(ctx, f.reception, v.ID, f.driver.UserID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.driver, v.ID, "vehicle breakdown")
	require.NoError(t, err)
	assert.Equal(t, model.HomeVisitStatusCancelled, cancelled.Status)
	assert.False(t, f.busy(t, f.driver))
}

func TestAssignUnavailableDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offDuty := f.newDriver(t, "KA-02-0001", false)
	v := f.visit(t)
	current, err := f.svc.Assign(ctx, f.reception, v.ID, offDuty.UserID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict), "got %v", err)
	assert.Equal(t, model.HomeVisitStatusPending, current.Status)
	assert.Nil(t, current.DriverID)

	_, err = f.svc.Assign(ctx, f.reception, v.ID, f.driver.UserID)
	require.NoError(t, err)

	second := f.visit(t)
	_, err = f.svc.Assign(ctx, f.reception, second.ID, f.driver.UserID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict), "a busy driver cannot take a second visit")

	_, err = f.svc.Assign(ctx, f.reception, second.ID, f.patient.UserID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	_, err = f.svc.TransitionHomeVisit(ctx, f.reception, second.ID, ActionAssign, Payload{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestOnlyAssignedDriverMayAct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.visit(t)
	_, err := f.svc.Assign(ctx, f.reception, v.ID, f.driver.UserID)
	require.NoError(t, err)

	other := f.newDriver(t, "KA-03-0003", true)
	_, err = f.svc.Depart(ctx, other, v.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.GetHomeVisit(ctx, other, v.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	visits, err := f.svc.ListHomeVisits(ctx, other, model.HomeVisitFilter{})
	require.NoError(t, err)
	assert.Empty(t, visits)

	visits, err = f.svc.ListHomeVisits(ctx, f.driver, model.HomeVisitFilter{})
	require.NoError(t, err)
	assert.Len(t, visits, 1)
}

func TestCreateHomeVisitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateHomeVisit(ctx, f.patient, model.CreateHomeVisitRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.CreateHomeVisit(ctx, f.reception, model.CreateHomeVisitRequest{
		PatientID: f.driver.UserID, Address: "x", ScheduledDate: visitDay.Format(model.DateLayout), ScheduledTime: "10:00",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	_, err = f.svc.CreateHomeVisit(ctx, f.reception, model.CreateHomeVisitRequest{
		PatientID: f.patient.UserID, Address: "x", ScheduledDate: "2020-01-01", ScheduledTime: "10:00",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestSetDriverAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile, err := f.svc.SetDriverAvailability(ctx, f.driver, false)
	require.NoError(t, err)
	assert.False(t, profile.IsAvailable)

	drivers, err := f.svc.ListAvailableDrivers(ctx, f.reception)
	require.NoError(t, err)
	assert.Empty(t, drivers)

	_, err = f.svc.SetDriverAvailability(ctx, f.reception, true)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.SetDriverAvailability(ctx, f.driver, true)
	require.NoError(t, err)
	drivers, err = f.svc.ListAvailableDrivers(ctx, f.reception)
	require.NoError(t, err)
	assert.Len(t, drivers, 1)
}

func TestScheduledDateUsesClinicCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sunday := visitDay.AddDate(0, 0, -1).Format(model.DateLayout)
	req := model.CreateHomeVisitRequest{PatientID: f.patient.UserID, Address: "3 Hill Street", ScheduledDate: sunday, ScheduledTime: "23:00"}

	// 02:00 UTC on Monday is still Sunday evening at the clinic.
	f.svc.now = func() time.Time { return visitDay.Add(2 * time.Hour) }
	f.svc.WithLocation(time.FixedZone("clinic", -5*60*60))
	_, err := f.svc.CreateHomeVisit(ctx, f.reception, req)
	require.NoError(t, err)

	f.svc.WithLocation(time.UTC)
	_, err = f.svc.CreateHomeVisit(ctx, f.reception, req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}
