package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	"github.com/jwalitptl/clinic-workflow/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/security"
)

// DefaultRoleCacheTTL bounds how long a replica that did not handle a role
// approval keeps serving the old role.
const DefaultRoleCacheTTL = 30 * time.Second

// Service authenticates users and resolves bearer tokens into sessions.
// The role is read from the user record, not the token, and cached briefly
// so a role change takes effect once the cache entry is invalidated.
type Service struct {
	users   repository.UserRepository
	jwt     auth.JWTService
	hasher  security.PasswordHasher
	auditor *audit.AuditLogger
	roles   *cache.Cache
}

// NewService caches roles for roleTTL; zero means DefaultRoleCacheTTL.
// Invalidate only reaches this process's cache.
func NewService(users repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, auditor *audit.AuditLogger, roleTTL time.Duration) *Service {
	if roleTTL <= 0 {
		roleTTL = DefaultRoleCacheTTL
	}
	return &Service{
		users:   users,
		jwt:     jwtSvc,
		hasher:  hasher,
		auditor: auditor,
		roles:   cache.New(roleTTL, 2*roleTTL),
	}
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Validation("email and name are required")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Phone:        req.Phone,
		Role:         model.RolePatient,
		Status:       model.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditor.Log(ctx, user.ID, "register", model.AuditEntityUser, user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"email": user.Email},
	})
	return user, nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to check password: %w", err)
	}

	token, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	s.roles.Set(user.ID.String(), user.Role, cache.DefaultExpiration)

	s.auditor.Log(ctx, user.ID, "login", model.AuditEntityUser, user.ID, nil)
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwt.TTL().Seconds()),
		Role:        user.Role,
		HomePath:    access.HomePath(user.Role),
	}, nil
}

// ResolveSession turns a bearer token into a session. An empty or invalid
// token yields the anonymous session.
func (s *Service) ResolveSession(ctx context.Context, token string) (access.Session, error) {
	if token == "" {
		return access.Anonymous, nil
	}
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return access.Anonymous, nil
	}

	if role, ok := s.roles.Get(claims.UserID.String()); ok {
		return access.Session{UserID: claims.UserID, IsAuthenticated: true, Role: role.(model.Role)}, nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return access.Anonymous, nil
	}
	if err != nil {
		return access.Anonymous, fmt.Errorf("failed to load session user: %w", err)
	}
	if user.Status != model.UserStatusActive {
		return access.Anonymous, nil
	}

	s.roles.Set(user.ID.String(), user.Role, cache.DefaultExpiration)
	return access.Session{UserID: user.ID, IsAuthenticated: true, Role: user.Role}, nil
}

// Invalidate drops the cached role of userID.
func (s *Service) Invalidate(userID uuid.UUID) {
	s.roles.Delete(userID.String())
}

func (s *Service) Me(ctx context.Context, session access.Session) (*model.User, error) {
	if err := access.Check(session, access.Authenticated()); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
