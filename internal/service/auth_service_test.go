package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
	"github.com/serveis-extraordinaris/backend/internal/auth"
	"github.com/serveis-extraordinaris/backend/internal/model"
	"github.com/serveis-extraordinaris/backend/internal/queue"
	"github.com/serveis-extraordinaris/backend/internal/service"
)

// ----- in-memory doubles -----

type memUsers struct {
	byID   map[uint64]model.User
	nextID uint64
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return apperr.Conflict("duplicate entry")
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.Active = true
	u.CreatedAt = time.Now().UTC()
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) deactivate(id uint64) {
	u := m.byID[id]
	u.Active = false
	m.byID[id] = u
}

type memTokens struct {
	rows   map[string]*model.RefreshToken
	nextID uint64
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]*model.RefreshToken{}} }

func (m *memTokens) Create(_ context.Context, userID uint64, token, agent, ip string, expiresAt time.Time) error {
	m.nextID++
	m.rows[token] = &model.RefreshToken{
		ID:        m.nextID,
		UserID:    userID,
		Token:     token,
		UserAgent: agent,
		IPAddress: ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memTokens) GetByValue(_ context.Context, token string) (model.RefreshToken, error) {
	t, ok := m.rows[token]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(time.Now().UTC()) {
		return model.RefreshToken{}, sql.ErrNoRows
	}
	return *t, nil
}

func (m *memTokens) Revoke(_ context.Context, token string) (bool, error) {
	t, ok := m.rows[token]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	return true, nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	var n int64
	now := time.Now().UTC()
	for _, t := range m.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokens) ListActiveForUser(_ context.Context, userID uint64) ([]model.Session, error) {
	var out []model.Session
	for _, t := range m.rows {
		if t.UserID == userID && t.RevokedAt == nil && t.ExpiresAt.After(time.Now().UTC()) {
			out = append(out, model.Session{
				ID: t.ID, UserAgent: t.UserAgent, IPAddress: t.IPAddress,
				CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt,
			})
		}
	}
	return out, nil
}

type memEvents struct {
	registered []queue.UserRegisteredEvent
	tampering  []queue.TokenTamperingEvent
}

func (m *memEvents) UserRegistered(_ context.Context, ev queue.UserRegisteredEvent) {
	m.registered = append(m.registered, ev)
}

func (m *memEvents) TokenTampering(_ context.Context, ev queue.TokenTamperingEvent) {
	m.tampering = append(m.tampering, ev)
}

// ----- fixture -----

type fixture struct {
	svc    *service.AuthService
	users  *memUsers
	tokens *memTokens
	events *memEvents
	codec  *auth.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newMemUsers()
	tokens := newMemTokens()
	events := &memEvents{}
	codec := auth.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	svc := service.NewAuthService(users, tokens, auth.NewHasher(bcrypt.MinCost), codec,
		events, "15m", zerolog.Nop())
	return &fixture{svc: svc, users: users, tokens: tokens, events: events, codec: codec}
}

var testDevice = service.Device{Agent: "go-test", IP: "10.0.0.1"}

func (f *fixture) register(t *testing.T, email, password string) model.PublicUser {
	t.Helper()
	u, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:        email,
		Password:     password,
		Name:         "Jordi",
		FirstSurname: "Puig",
	})
	require.NoError(t, err)
	return u
}

// ----- tests -----

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jordi@example.com", "password1")

	// Any case-equivalent form collides after normalization.
	_, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email: "  Jordi@Example.COM ", Password: "password2",
	})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestRegisterNormalizesAndDefaults(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email: " Anna@Example.com ", Password: "pw", Role: "superuser",
	})
	require.NoError(t, err)
	require.Equal(t, "anna@example.com", u.Email)
	require.Equal(t, model.RoleUser, u.Role) // unknown role collapses
	require.True(t, u.Active)

	require.Len(t, f.events.registered, 1)
	require.Equal(t, u.ID, f.events.registered[0].UserID)
}

func TestRegisterKeepsValidRole(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email: "tech@example.com", Password: "pw", Role: model.RoleTechnician,
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleTechnician, u.Role)
}

func TestLoginNoEnumerationSignal(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jordi@example.com", "correct-password")

	_, errWrongPw := f.svc.Login(context.Background(), "jordi@example.com", "wrong-password", testDevice)
	_, errNoUser := f.svc.Login(context.Background(), "ghost@example.com", "whatever", testDevice)

	require.True(t, apperr.IsKind(errWrongPw, apperr.KindUnauthorized))
	require.True(t, apperr.IsKind(errNoUser, apperr.KindUnauthorized))
	// Same kind and same generic message for both failure causes.
	require.Equal(t, errWrongPw.Error(), errNoUser.Error())
}

func TestLoginDeactivatedUserForbidden(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")
	f.users.deactivate(u.ID)

	_, err := f.svc.Login(context.Background(), "jordi@example.com", "password1", testDevice)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")

	res, err := f.svc.Login(context.Background(), "jordi@example.com", "password1", testDevice)
	require.NoError(t, err)
	require.Equal(t, u.ID, res.User.ID)
	require.Equal(t, "15m", res.ExpiresIn)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	// The refresh token is persisted bound to the device metadata.
	stored, err := f.tokens.GetByValue(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, stored.UserID)
	require.Equal(t, "go-test", stored.UserAgent)
	require.Equal(t, "10.0.0.1", stored.IPAddress)

	// The access token round-trips through the codec.
	claims, err := f.svc.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
	require.Equal(t, u.Email, claims.Email)
	require.Equal(t, u.Role, claims.Role)
}

func TestRefreshIsRepeatableWithoutRotation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jordi@example.com", "password1")
	res, err := f.svc.Login(context.Background(), "jordi@example.com", "password1", testDevice)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := f.svc.Refresh(context.Background(), res.RefreshToken, testDevice)
		require.NoError(t, err)
		require.NotEmpty(t, out.AccessToken)
		require.Equal(t, "15m", out.ExpiresIn)
	}
	// Success path leaves the stored token untouched and valid.
	_, err = f.tokens.GetByValue(context.Background(), res.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshAfterLogoutUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jordi@example.com", "password1")
	res, err := f.svc.Login(context.Background(), "jordi@example.com", "password1", testDevice)
	require.NoError(t, err)

	revoked, err := f.svc.Logout(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = f.svc.Refresh(context.Background(), res.RefreshToken, testDevice)
	require.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRefreshExpiredTokenUnauthorized(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")

	token, _, err := f.codec.NewRefreshToken(u.ID)
	require.NoError(t, err)
	// Store it already expired.
	require.NoError(t, f.tokens.Create(context.Background(), u.ID, token, "agent", "ip",
		time.Now().UTC().Add(-time.Minute)))

	_, err = f.svc.Refresh(context.Background(), token, testDevice)
	require.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRefreshDeactivatedUserNotFound(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")
	res, err := f.svc.Login(context.Background(), "jordi@example.com", "password1", testDevice)
	require.NoError(t, err)

	f.users.deactivate(u.ID)
	_, err = f.svc.Refresh(context.Background(), res.RefreshToken, testDevice)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRefreshTamperedTokenRevokedInStore(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")

	// A row whose value does not carry a valid signature: a forged or
	// tampered token that nonetheless passes the store lookup.
	forged := "eyJhbGciOiJIUzI1NiJ9.forged-payload.forged-signature"
	require.NoError(t, f.tokens.Create(context.Background(), u.ID, forged, "agent", "ip",
		time.Now().UTC().Add(time.Hour)))

	_, err := f.svc.Refresh(context.Background(), forged, testDevice)
	require.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	// The row was proactively revoked, not just rejected.
	_, err = f.tokens.GetByValue(context.Background(), forged)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NotNil(t, f.tokens.rows[forged].RevokedAt)

	// And the tampering event was emitted.
	require.Len(t, f.events.tampering, 1)
	require.Equal(t, u.ID, f.events.tampering[0].UserID)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jordi@example.com", "password1")
	res, err := f.svc.Login(context.Background(), "jordi@example.com", "password1", testDevice)
	require.NoError(t, err)

	first, err := f.svc.Logout(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	require.True(t, first)

	second, err := f.svc.Logout(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	require.False(t, second)

	// Unknown tokens are a no-op as well.
	third, err := f.svc.Logout(context.Background(), "never-issued")
	require.NoError(t, err)
	require.False(t, third)
}

func TestLogoutAllRevokesEveryDevice(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")

	const devices = 4
	var refreshTokens []string
	for i := 0; i < devices; i++ {
		res, err := f.svc.Login(context.Background(), "jordi@example.com", "password1",
			service.Device{Agent: fmt.Sprintf("device-%d", i), IP: "10.0.0.1"})
		require.NoError(t, err)
		// Each login gets its own token even within the same second.
		require.NotContains(t, refreshTokens, res.RefreshToken)
		refreshTokens = append(refreshTokens, res.RefreshToken)
	}

	sessions, err := f.svc.ActiveSessions(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, devices)

	n, err := f.svc.LogoutAll(context.Background(), u.ID)
	require.NoError(t, err)
	require.EqualValues(t, devices, n)

	for _, rt := range refreshTokens {
		_, err := f.svc.Refresh(context.Background(), rt, testDevice)
		require.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	}

	sessions, err = f.svc.ActiveSessions(context.Background(), u.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)

	// A second sweep has nothing left to revoke.
	n, err = f.svc.LogoutAll(context.Background(), u.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jordi@example.com", "password1")

	got, err := f.svc.CurrentUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)

	f.users.deactivate(u.ID)
	_, err = f.svc.CurrentUser(context.Background(), u.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.svc.CurrentUser(context.Background(), 9999)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
