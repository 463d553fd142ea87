package middleware_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/serveis-extraordinaris/backend/internal/auth"
	"github.com/serveis-extraordinaris/backend/internal/handler"
	"github.com/serveis-extraordinaris/backend/internal/middleware"
	"github.com/serveis-extraordinaris/backend/internal/model"
)

type stubUsers struct {
	byID map[uint64]model.User
}

func (s *stubUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

type authEnv struct {
	e     *echo.Echo
	codec *auth.Codec
	users *stubUsers
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(zerolog.Nop())
	return &authEnv{
		e:     e,
		codec: auth.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour),
		users: &stubUsers{byID: map[uint64]model.User{}},
	}
}

func (env *authEnv) addUser(id uint64, role string, active bool) string {
	env.users.byID[id] = model.User{
		ID: id, Email: "u@example.com", Role: role, Active: active, Name: "Unit",
	}
	token, _, err := env.codec.NewAccessToken(id, "u@example.com", role)
	if err != nil {
		panic(err)
	}
	return token
}

// whoami echoes the attached identity so tests can assert what the
// middleware resolved.
func whoami(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"anonymous": true})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id": id.ID, "email": id.Email, "role": id.Role,
	})
}

func (env *authEnv) do(target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateRoundTrip(t *testing.T) {
	env := newAuthEnv(t)
	token := env.addUser(42, model.RoleTechnician, true)
	env.e.GET("/me", whoami, middleware.Authenticate(env.codec, env.users))

	rec := env.do("/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t,
		`{"id":42,"email":"u@example.com","role":"technician"}`,
		rec.Body.String())
}

func TestAuthenticateRejections(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(1, model.RoleUser, true)
	env.e.GET("/me", whoami, middleware.Authenticate(env.codec, env.users))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwdw=="},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do("/me", tc.header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAuthenticateWrongSecretRejected(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(1, model.RoleUser, true)
	env.e.GET("/me", whoami, middleware.Authenticate(env.codec, env.users))

	other := auth.NewCodec("different-secret", "refresh-secret", 15*time.Minute, time.Hour)
	token, _, err := other.NewAccessToken(1, "u@example.com", model.RoleUser)
	require.NoError(t, err)

	rec := env.do("/me", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateDeactivatedAndMissingUser(t *testing.T) {
	env := newAuthEnv(t)
	inactive := env.addUser(7, model.RoleUser, false)
	env.e.GET("/me", whoami, middleware.Authenticate(env.codec, env.users))

	rec := env.do("/me", "Bearer "+inactive)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token for a user the store no longer has.
	ghost, _, err := env.codec.NewAccessToken(999, "ghost@example.com", model.RoleUser)
	require.NoError(t, err)
	rec = env.do("/me", "Bearer "+ghost)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuthContinuesAnonymously(t *testing.T) {
	env := newAuthEnv(t)
	token := env.addUser(3, model.RoleUser, true)
	env.e.GET("/open", whoami, middleware.OptionalAuth(env.codec, env.users))

	// Valid token attaches the identity.
	rec := env.do("/open", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":3`)

	// No token and bad token both proceed with no identity and no error.
	for _, header := range []string{"", "Bearer broken"} {
		rec := env.do("/open", header)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"anonymous":true}`, rec.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	env := newAuthEnv(t)
	adminToken := env.addUser(1, model.RoleAdmin, true)
	userToken := env.addUser(2, model.RoleUser, true)

	env.e.GET("/admin", whoami,
		middleware.Authenticate(env.codec, env.users),
		middleware.RequireRole(model.RoleAdmin))
	// RequireRole without Authenticate in front: no identity to check.
	env.e.GET("/bare", whoami, middleware.RequireRole(model.RoleAdmin))

	rec := env.do("/admin", "Bearer "+adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do("/admin", "Bearer "+userToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "FORBIDDEN")

	rec = env.do("/bare", "Bearer "+adminToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
