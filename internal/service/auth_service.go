// Package service holds the business logic.  Services depend on small
// collaborator interfaces rather than concrete repositories so each one can
// be substituted with an in-memory double in tests.
package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
	"github.com/serveis-extraordinaris/backend/internal/auth"
	"github.com/serveis-extraordinaris/backend/internal/model"
	"github.com/serveis-extraordinaris/backend/internal/queue"
)

// CredentialStore persists user records.
type CredentialStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// TokenStore persists refresh tokens.  GetByValue only returns tokens that
// are unrevoked and unexpired; Revoke reports whether a row changed.
type TokenStore interface {
	Create(ctx context.Context, userID uint64, token, userAgent, ipAddress string, expiresAt time.Time) error
	GetByValue(ctx context.Context, token string) (model.RefreshToken, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
	ListActiveForUser(ctx context.Context, userID uint64) ([]model.Session, error)
}

// PasswordHasher computes and verifies one-way adaptive password hashes.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// TokenCodec signs and verifies both token classes.
type TokenCodec interface {
	NewAccessToken(userID uint64, email, role string) (string, time.Time, error)
	NewRefreshToken(userID uint64) (string, time.Time, error)
	VerifyAccess(token string) (*auth.AccessClaims, error)
	VerifyRefresh(token string) (*auth.RefreshClaims, error)
	AccessTTL() time.Duration
}

// EventPublisher emits auth domain events.  Implementations must never fail
// the request flow; publishing problems are logged and swallowed.
type EventPublisher interface {
	UserRegistered(ctx context.Context, ev queue.UserRegisteredEvent)
	TokenTampering(ctx context.Context, ev queue.TokenTamperingEvent)
}

// Device carries the metadata of the client a token was issued to.  It is
// informational only and never part of any validity check.
type Device struct {
	Agent string
	IP    string
}

// RegisterInput is the profile data accepted at registration.
type RegisterInput struct {
	Email         string
	Password      string
	Role          string
	Name          string
	FirstSurname  string
	SecondSurname string
	Department    string
}

// LoginResult is returned by Login.
type LoginResult struct {
	User         model.PublicUser `json:"user"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    string           `json:"expires_in"`
}

// RefreshResult is returned by Refresh.  There is no refresh token field:
// the presented token stays valid and is not rotated.
type RefreshResult struct {
	User        model.PublicUser `json:"user"`
	AccessToken string           `json:"access_token"`
	ExpiresIn   string           `json:"expires_in"`
}

// AuthService orchestrates registration, login, token renewal and logout.
type AuthService struct {
	users  CredentialStore
	tokens TokenStore
	hasher PasswordHasher
	codec  TokenCodec
	events EventPublisher

	// accessExpiry is the configured access token duration string, echoed
	// back to clients as expires_in.
	accessExpiry string

	log zerolog.Logger
}

// NewAuthService wires the four collaborators together.  events may be nil
// when no broker is configured.
func NewAuthService(users CredentialStore, tokens TokenStore, hasher PasswordHasher, codec TokenCodec, events EventPublisher, accessExpiry string, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		hasher:       hasher,
		codec:        codec,
		events:       events,
		accessExpiry: accessExpiry,
		log:          log,
	}
}

// Register creates a new active user.  The email must be previously unused;
// unknown roles collapse to the regular user role.  The returned view never
// contains the password hash.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.PublicUser, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return model.PublicUser{}, apperr.Internal(err)
	}
	if exists {
		return model.PublicUser{}, apperr.Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.PublicUser{}, apperr.Internal(err)
	}

	role := in.Role
	if !model.ValidRole(role) {
		role = model.RoleUser
	}
	u := &model.User{
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Name:          strings.TrimSpace(in.Name),
		FirstSurname:  strings.TrimSpace(in.FirstSurname),
		SecondSurname: strings.TrimSpace(in.SecondSurname),
		Department:    strings.TrimSpace(in.Department),
	}
	if err := s.users.Create(ctx, u); err != nil {
		// Concurrent registration can still hit the unique index.
		if apperr.IsKind(apperr.FromMySQL(err), apperr.KindConflict) {
			return model.PublicUser{}, apperr.Conflict("email already registered")
		}
		return model.PublicUser{}, apperr.FromMySQL(err)
	}

	s.log.Info().Uint64("user_id", u.ID).Msg("user registered")
	if s.events != nil {
		s.events.UserRegistered(ctx, queue.UserRegisteredEvent{
			UserID: u.ID,
			Email:  u.Email,
			Role:   u.Role,
		})
	}
	return u.Public(), nil
}

// Login verifies credentials and issues an access/refresh token pair.  The
// refresh token is persisted bound to the device metadata.  Unknown email
// and wrong password produce an identical generic error so the response
// carries no enumeration signal; only deactivation is distinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string, device Device) (LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoginResult{}, apperr.Unauthorized("invalid email or password")
		}
		return LoginResult{}, apperr.Internal(err)
	}
	if !u.Active {
		return LoginResult{}, apperr.Forbidden("user account is deactivated")
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return LoginResult{}, apperr.Unauthorized("invalid email or password")
	}

	access, _, err := s.codec.NewAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}
	refresh, refreshExp, err := s.codec.NewRefreshToken(u.ID)
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}
	if err := s.tokens.Create(ctx, u.ID, refresh, device.Agent, device.IP, refreshExp); err != nil {
		return LoginResult{}, apperr.FromMySQL(err)
	}

	s.log.Info().Uint64("user_id", u.ID).Str("ip", device.IP).Msg("login")
	return LoginResult{
		User:         u.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.accessExpiry,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.  The
// refresh token is not rotated; the success path leaves the token store
// untouched.  A token that passes the store lookup but fails cryptographic
// verification is proactively revoked so a forged row cannot linger looking
// valid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, device Device) (RefreshResult, error) {
	stored, err := s.tokens.GetByValue(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshResult{}, apperr.Unauthorized("invalid or expired refresh token")
		}
		return RefreshResult{}, apperr.Internal(err)
	}

	if _, err := s.codec.VerifyRefresh(refreshToken); err != nil {
		if _, revokeErr := s.tokens.Revoke(ctx, refreshToken); revokeErr != nil {
			s.log.Error().Err(revokeErr).Uint64("user_id", stored.UserID).Msg("failed to revoke tampered refresh token")
		}
		s.log.Warn().Uint64("user_id", stored.UserID).Str("ip", device.IP).Msg("tampered refresh token revoked")
		if s.events != nil {
			s.events.TokenTampering(ctx, queue.TokenTamperingEvent{
				UserID:    stored.UserID,
				UserAgent: device.Agent,
				IPAddress: device.IP,
			})
		}
		return RefreshResult{}, apperr.Unauthorized("invalid or expired refresh token")
	}

	u, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshResult{}, apperr.NotFound("user")
		}
		return RefreshResult{}, apperr.Internal(err)
	}
	if !u.Active {
		return RefreshResult{}, apperr.NotFound("user")
	}

	access, _, err := s.codec.NewAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return RefreshResult{}, apperr.Internal(err)
	}
	return RefreshResult{
		User:        u.Public(),
		AccessToken: access,
		ExpiresIn:   s.accessExpiry,
	}, nil
}

// Logout revokes one refresh token.  It reports whether anything was
// revoked; calling it again with the same token returns false, never an
// error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	revoked, err := s.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return revoked, nil
}

// LogoutAll revokes every active refresh token the user owns and returns
// how many were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	s.log.Info().Uint64("user_id", userID).Int64("tokens_revoked", n).Msg("logout all devices")
	return n, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *AuthService) VerifyAccessToken(token string) (*auth.AccessClaims, error) {
	return s.codec.VerifyAccess(token)
}

// CurrentUser returns the public view of an active user, for the /auth/me
// endpoint.  Missing and deactivated users both come back as not found.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint64) (model.PublicUser, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PublicUser{}, apperr.NotFound("user")
		}
		return model.PublicUser{}, apperr.Internal(err)
	}
	if !u.Active {
		return model.PublicUser{}, apperr.NotFound("user")
	}
	return u.Public(), nil
}

// ActiveSessions lists the user's currently valid refresh tokens for
// session-management UIs.
func (s *AuthService) ActiveSessions(ctx context.Context, userID uint64) ([]model.Session, error) {
	sessions, err := s.tokens.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sessions, nil
}
