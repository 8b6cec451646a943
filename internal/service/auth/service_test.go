package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository/memory"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	"github.com/jwalitptl/clinic-workflow/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/security"
)

func newService(t *testing.T) (*Service, *memory.Repositories) {
	t.Helper()
	return newServiceWithTTL(t, time.Hour)
}

func newServiceWithTTL(t *testing.T, roleTTL time.Duration) (*Service, *memory.Repositories) {
	t.Helper()
	repos := memory.New()
	hasher, err := security.NewBcryptHasher(security.HasherConfig{Cost: 4})
	require.NoError(t, err)
	svc := NewService(repos.Users, auth.NewJWTService("test-secret", "clinic", time.Hour),
		hasher, audit.NewAuditLogger(audit.NewService(repos.Audit), logger.Nop()), roleTTL)
	return svc, repos
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, model.RegisterRequest{Email: "Asha@Clinic.test", Password: "correct-horse", Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, user.Role)
	assert.Equal(t, "asha@clinic.test", user.Email)

	_, err = svc.Register(ctx, model.RegisterRequest{Email: "asha@clinic.test", Password: "correct-horse", Name: "Asha"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	_, err = svc.Login(ctx, model.LoginRequest{Email: "asha@clinic.test", Password: "wrong-horse"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	tokens, err := svc.Login(ctx, model.LoginRequest{Email: "asha@clinic.test", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "/", tokens.HomePath)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)

	session, err := svc.ResolveSession(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, access.Session{UserID: user.ID, IsAuthenticated: true, Role: model.RolePatient}, session)
}

func TestResolveSessionAnonymous(t *testing.T) {
	svc, _ := newService(t)

	for _, token := range []string{"", "garbage"} {
		session, err := svc.ResolveSession(context.Background(), token)
		require.NoError(t, err)
		assert.False(t, session.IsAuthenticated)
	}
}

func TestInvalidateRefreshesRole(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, model.RegisterRequest{Email: "ravi@clinic.test", Password: "correct-horse", Name: "Ravi"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, model.LoginRequest{Email: "ravi@clinic.test", Password: "correct-horse"})
	require.NoError(t, err)

	requests := repos.RoleRequests
	req := &model.RoleRequest{UserID: user.ID, CurrentRole: model.RolePatient, RequestedRole: model.RoleReception, Reason: "front desk", Status: model.RoleRequestStatusPending}
	require.NoError(t, requests.Create(ctx, req))
	require.NoError(t, requests.Approve(ctx, req, model.ElevationProfile{}))

	session, err := svc.ResolveSession(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, session.Role, "cached until invalidated")

	svc.Invalidate(user.ID)
	session, err = svc.ResolveSession(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleReception, session.Role)

	me, err := svc.Me(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Register(context.Background(), model.RegisterRequest{Email: "a@clinic.test", Password: "short", Name: "A"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "at least 8")
}

func TestCachedRoleExpiresWithoutInvalidate(t *testing.T) {
	svc, repos := newServiceWithTTL(t, 50*time.Millisecond)
	ctx := context.Background()

	user, err := svc.Register(ctx, model.RegisterRequest{Email: "mina@clinic.test", Password: "correct-horse", Name: "Mina"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, model.LoginRequest{Email: "mina@clinic.test", Password: "correct-horse"})
	require.NoError(t, err)

	// Approved elsewhere: this process never sees an Invalidate call.
	req := &model.RoleRequest{UserID: user.ID, CurrentRole: model.RolePatient, RequestedRole: model.RoleDriver, Reason: "van", Status: model.RoleRequestStatusPending}
	require.NoError(t, repos.RoleRequests.Create(ctx, req))
	require.NoError(t, repos.RoleRequests.Approve(ctx, req, model.ElevationProfile{}))

	assert.Eventually(t, func() bool {
		session, err := svc.ResolveSession(ctx, tokens.AccessToken)
		return err == nil && session.Role == model.RoleDriver
	}, time.Second, 10*time.Millisecond)
}
