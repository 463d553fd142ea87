// Package middleware provides the request authentication gateway and the
// redis-backed rate limiter.
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
	"github.com/serveis-extraordinaris/backend/internal/auth"
	"github.com/serveis-extraordinaris/backend/internal/model"
)

// identityKey is the echo context key the authenticated identity lives under.
const identityKey = "identity"

// Identity is the minimal view of the authenticated user attached to the
// request context.  It deliberately carries no password hash and is never
// mutated after being set.
type Identity struct {
	ID    uint64
	Email string
	Role  string
	Name  string
}

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.AccessClaims, error)
}

// UserLoader fetches the user record behind a token subject.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// IdentityFrom returns the identity attached by Authenticate, if any.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// resolveIdentity runs the per-request authentication state machine:
// extract the bearer token, verify it, load the subject and confirm the
// account is still active.  It is terminal on the first failure.
func resolveIdentity(c echo.Context, codec TokenVerifier, users UserLoader) (Identity, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, apperr.Unauthorized("access token not provided")
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	claims, err := codec.VerifyAccess(raw)
	if err != nil {
		return Identity{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, apperr.Unauthorized("invalid or expired access token")
	}

	u, err := users.GetByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, apperr.Unauthorized("user not valid or deactivated")
		}
		return Identity{}, apperr.Internal(err)
	}
	if !u.Active {
		return Identity{}, apperr.Unauthorized("user not valid or deactivated")
	}

	return Identity{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}, nil
}

// Authenticate returns middleware that rejects requests without a valid
// bearer access token belonging to an active user, and attaches the
// identity to the context for downstream handlers.
func Authenticate(codec TokenVerifier, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := resolveIdentity(c, codec, users)
			if err != nil {
				return err
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// OptionalAuth performs the same steps as Authenticate but swallows every
// failure and continues without an identity.  The failure reason is not
// leaked to the client in any form.
func OptionalAuth(codec TokenVerifier, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id, err := resolveIdentity(c, codec, users); err == nil {
				c.Set(identityKey, id)
			}
			return next(c)
		}
	}
}

// RequireRole gates an already-authenticated request on the identity's
// role.  A missing identity yields 401, a role outside the allowed set 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return apperr.Unauthorized("not authenticated")
			}
			if !allowed[id.Role] {
				return apperr.Forbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}
