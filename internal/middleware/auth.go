package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

const ContextSession = "session"

// SessionResolver turns a bearer token into the caller's current session.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (access.Session, error)
}

type AuthMiddleware struct {
	resolver SessionResolver
}

func NewAuthMiddleware(resolver SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Authenticate attaches the caller's session to the request. Missing or
// invalid credentials leave the anonymous session in place; Require decides
// whether that is enough.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := access.Anonymous

		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			resolved, err := m.resolver.ResolveSession(c.Request.Context(), token)
			if err != nil {
				httputil.RespondWithError(c, err)
				return
			}
			session = resolved
		}

		c.Set(ContextSession, session)
		c.Next()
	}
}

// Require runs the access gate for a route.
func (m *AuthMiddleware) Require(req access.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.Check(SessionFrom(c), req); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session set by Authenticate, or the anonymous one.
func SessionFrom(c *gin.Context) access.Session {
	if v, ok := c.Get(ContextSession); ok {
		if session, ok := v.(access.Session); ok {
			return session
		}
	}
	return access.Anonymous
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
