package rolerequest

import (
	"context"
	"testing"

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

type invalidations struct {
	users []uuid.UUID
}

func (i *invalidations) Invalidate(userID uuid.UUID) {
	i.users = append(i.users, userID)
}

type fixture struct {
	svc     *Service
	repos   *memory.Repositories
	invalid *invalidations
	patient access.Session
	admin   access.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.New()
	log := logger.Nop()
	m := metrics.NewMetrics("test", nil)
	invalid := &invalidations{}

	svc := NewService(repos.RoleRequests, repos.Users,
		notification.NewDispatcher(event.NewService(repos.Outbox), log, m), invalid,
		audit.NewAuditLogger(audit.NewService(repos.Audit), log), m)

	f := &fixture{svc: svc, repos: repos, invalid: invalid}
	f.patient = f.user(t, model.RolePatient)
	f.admin = f.user(t, model.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, role model.Role) access.Session {
	t.Helper()
	u := &model.User{Email: uuid.NewString() + "@clinic.test", Name: string(role), Role: role, Status: model.UserStatusActive}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return access.Session{UserID: u.ID, IsAuthenticated: true, Role: role}
}

func (f *fixture) role(t *testing.T, userID uuid.UUID) model.Role {
	t.Helper()
	u, err := f.repos.Users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Role
}

func driverRequest(plate string) model.SubmitRoleRequest {
	return model.SubmitRoleRequest{
		RequestedRole:  model.RoleDriver,
		Reason:         "I have a commercial licence",
		AdditionalData: model.JSONMap{"vehicle_plate": plate, "vehicle_type": "van"},
	}
}

func TestSubmitRejectsSecondPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.patient, driverRequest("KA-01-0001"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestStatusPending, req.Status)
	assert.Equal(t, model.RolePatient, req.CurrentRole)

	_, err = f.svc.Submit(ctx, f.patient, model.SubmitRoleRequest{
		RequestedRole:  model.RoleDoctor,
		Reason:         "MBBS",
		AdditionalData: model.JSONMap{"specialization": "cardiology"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrDuplicatePendingRequest), "got %v", err)

	_, err = f.svc.Reject(ctx, f.admin, req.ID, "missing documents")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.patient, driverRequest("KA-01-0001"))
	assert.NoError(t, err, "a new request is accepted once the previous one is reviewed")
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.SubmitRoleRequest
	}{
		{"admin not requestable", model.SubmitRoleRequest{RequestedRole: model.RoleAdmin, Reason: "please"}},
		{"patient not requestable", model.SubmitRoleRequest{RequestedRole: model.RolePatient, Reason: "please"}},
		{"blank reason", model.SubmitRoleRequest{RequestedRole: model.RoleReception, Reason: "   "}},
		{"doctor without specialization", model.SubmitRoleRequest{RequestedRole: model.RoleDoctor, Reason: "MBBS"}},
		{"driver without plate", model.SubmitRoleRequest{RequestedRole: model.RoleDriver, Reason: "licence", AdditionalData: model.JSONMap{"vehicle_plate": 42}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.patient, tt.req)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest), "got %v", err)
		})
	}

	staff := f.user(t, model.RoleReception)
	_, err := f.svc.Submit(ctx, staff, driverRequest("KA-09-9999"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestApproveDriverRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.patient, driverRequest("ka-01-0002"))
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, f.admin, req.ID, "welcome aboard")
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, f.admin.UserID, *approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)

	assert.Equal(t, model.RoleDriver, f.role(t, f.patient.UserID))
	profile, err := f.repos.Drivers.GetByUserID(ctx, f.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, "KA-01-0002", profile.VehiclePlate)
	assert.False(t, profile.IsAvailable)

	assert.Equal(t, []uuid.UUID{f.patient.UserID}, f.invalid.users)

	_, err = f.svc.Approve(ctx, f.admin, req.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestApproveDoctorRequestWritesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.patient, model.SubmitRoleRequest{
		RequestedRole:  model.RoleDoctor,
		Reason:         "MBBS, MD",
		AdditionalData: model.JSONMap{"specialization": "Cardiology", "license_number": "MH-1234"},
	})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, f.user(t, model.RoleSuperAdmin), req.ID, DecisionApprove, "")
	require.NoError(t, err)

	profile, ok := f.repos.Store.DoctorProfile(f.patient.UserID)
	require.True(t, ok)
	assert.Equal(t, "Cardiology", profile.Specialization)
	assert.Equal(t, "MH-1234", profile.LicenseNumber)
	assert.Equal(t, model.RoleDoctor, f.role(t, f.patient.UserID))
}

func TestApproveRollsBackWhenProfileWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := f.user(t, model.RoleDriver)
	f.repos.Store.PutDriver(model.DriverProfile{UserID: existing.UserID, VehiclePlate: "KA-05-5555", VehicleType: "car"})

	req, err := f.svc.Submit(ctx, f.patient, driverRequest("KA-05-5555"))
	require.NoError(t, err)

	current, err := f.svc.Approve(ctx, f.admin, req.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict), "got %v", err)
	require.NotNil(t, current)
	assert.Equal(t, model.RoleRequestStatusPending, current.Status)

	assert.Equal(t, model.RolePatient, f.role(t, f.patient.UserID))
	_, err = f.repos.Drivers.GetByUserID(ctx, f.patient.UserID)
	assert.Error(t, err)
	assert.Empty(t, f.invalid.users)
}

func TestRejectWritesNoProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.patient, driverRequest("KA-07-0007"))
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, f.admin, req.ID, "no licence attached")
	require.NoError(t, err)
	assert.Equal(t, model.RoleRequestStatusRejected, rejected.Status)
	assert.Equal(t, "no licence attached", rejected.ReviewNote)

	assert.Equal(t, model.RolePatient, f.role(t, f.patient.UserID))
	_, err = f.repos.Drivers.GetByUserID(ctx, f.patient.UserID)
	assert.Error(t, err)
	assert.Empty(t, f.invalid.users)

	var types []string
	for _, e := range f.repos.Store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.NotificationRoleRequestReviewed)
}

func TestReviewAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.patient, driverRequest("KA-08-0008"))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.patient, req.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Review(ctx, f.admin, req.ID, "maybe", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	_, err = f.svc.Approve(ctx, f.admin, uuid.New(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestReviewOwnRequestDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.patient, driverRequest("KA-10-0010"))
	require.NoError(t, err)

	// the requester was promoted to admin out of band
	self := access.Session{UserID: f.patient.UserID, IsAuthenticated: true, Role: model.RoleAdmin}
	_, err = f.svc.Approve(ctx, self, req.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
	assert.Equal(t, model.RolePatient, f.role(t, f.patient.UserID))
}

func TestListAndListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.user(t, model.RolePatient)
	_, err := f.svc.Submit(ctx, f.patient, driverRequest("KA-11-0011"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, other, driverRequest("KA-11-0012"))
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.patient)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.svc.List(ctx, f.admin, model.RoleRequestFilter{Status: model.RoleRequestStatusPending})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.List(ctx, f.patient, model.RoleRequestFilter{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}
