// Package access decides whether a session may enter a route or attempt a
// workflow action. Authorize has no side effects and reads no global state.
package access

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
)

// LoginPath is where unauthenticated sessions are sent.
const LoginPath = "/login"

// Decision is the outcome of Authorize.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToRoleHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToRoleHome:
		return "redirect_to_role_home"
	default:
		return "unknown"
	}
}

// Session is what the session provider knows about the caller.
type Session struct {
	UserID          uuid.UUID  `json:"user_id"`
	IsAuthenticated bool       `json:"is_authenticated"`
	Role            model.Role `json:"role"`
}

// Anonymous is the session of a caller without credentials.
var Anonymous = Session{}

// Requirement describes what a route or action demands.
// Listing roles implies authentication.
type Requirement struct {
	RequireAuthentication bool
	AllowedRoles          []model.Role
}

// Roles builds an authenticated requirement for the given roles.
func Roles(roles ...model.Role) Requirement {
	return Requirement{RequireAuthentication: true, AllowedRoles: roles}
}

// Authenticated builds a requirement any signed-in role satisfies.
func Authenticated() Requirement {
	return Requirement{RequireAuthentication: true}
}

// Verdict carries the decision and where to send the caller when denied.
type Verdict struct {
	Decision     Decision `json:"decision"`
	RedirectPath string   `json:"redirect_path,omitempty"`
}

func (v Verdict) Allowed() bool {
	return v.Decision == Allow
}

var homePaths = map[model.Role]string{
	model.RolePatient:       "/",
	model.RoleDoctor:        "/doctor/dashboard",
	model.RoleReception:     "/reception/queue",
	model.RoleDriver:        "/driver/dashboard",
	model.RoleLabTechnician: "/lab/dashboard",
	model.RoleAdmin:         "/admin/dashboard",
	model.RoleSuperAdmin:    "/admin/dashboard",
}

// HomePath returns the landing path of role. Unknown roles land on the login page.
func HomePath(role model.Role) string {
	if p, ok := homePaths[role]; ok {
		return p
	}
	return LoginPath
}

// Authorize maps a session and a requirement to a verdict.
func Authorize(s Session, req Requirement) Verdict {
	needsAuth := req.RequireAuthentication || len(req.AllowedRoles) > 0
	if needsAuth && !s.IsAuthenticated {
		return Verdict{Decision: RedirectToLogin, RedirectPath: LoginPath}
	}

	if len(req.AllowedRoles) > 0 && !roleAllowed(s.Role, req.AllowedRoles) {
		return Verdict{Decision: RedirectToRoleHome, RedirectPath: HomePath(s.Role)}
	}

	return Verdict{Decision: Allow}
}

// Check runs Authorize and converts a denial into an AuthorizationDenied error.
func Check(s Session, req Requirement) error {
	return Deny(Authorize(s, req))
}

// Deny returns nil for Allow and an AuthorizationDenied error otherwise.
func Deny(v Verdict) error {
	switch v.Decision {
	case Allow:
		return nil
	case RedirectToLogin:
		return apperrors.Forbidden("authentication required", v.RedirectPath)
	default:
		return apperrors.Forbidden("role not permitted", v.RedirectPath)
	}
}

func roleAllowed(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
		// super_admin holds every admin right
		if r == model.RoleAdmin && role == model.RoleSuperAdmin {
			return true
		}
	}
	return false
}
