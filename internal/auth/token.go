// Package auth provides the token codec and password hasher used by the
// authentication service.  Access and refresh tokens are HS256 JWTs signed
// with two different secrets so that compromise of one secret cannot forge
// the other token class.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
)

// Issuer is embedded in every token and checked on verification.
const Issuer = "serveis-extraordinaris-api"

// DefaultAccessTTL is the fallback validity window applied when a configured
// duration string cannot be parsed.
const DefaultAccessTTL = 15 * time.Minute

// AccessClaims is the payload of a short-lived access token.  The subject
// carries the user id in decimal form.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token.  TokenType is
// fixed to "refresh" and checked on verification so an access token can
// never be replayed as a refresh token.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a numeric user id.
func (c *AccessClaims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// UserID parses the subject claim back into a numeric user id.
func (c *RefreshClaims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// Codec signs and verifies both token classes.  It is the only component
// holding the signing secrets.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCodec builds a Codec from the two signing secrets and the configured
// validity windows.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token validity window.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// NewAccessToken signs an access token for the user.  It returns the token
// string and its expiration time.
func (c *Codec) NewAccessToken(userID uint64, email, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(c.accessTTL)
	claims := &AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// NewRefreshToken signs a refresh token for the user with the refresh
// secret.  Each token carries a random jti: timestamps have one-second
// granularity, so without it two logins in the same second would mint
// identical strings and collide on the unique token column.
func (c *Codec) NewRefreshToken(userID uint64) (string, time.Time, error) {
	jti, err := randomID()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(c.refreshTTL)
	claims := &RefreshClaims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess validates signature, expiry and issuer of an access token.
// Every failure mode collapses to a single Unauthorized error; callers are
// told nothing about whether the token was malformed or merely expired.
func (c *Codec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return c.accessSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil || !tok.Valid {
		return nil, apperr.Unauthorized("invalid or expired access token")
	}
	return claims, nil
}

// VerifyRefresh validates signature, expiry, issuer and token type of a
// refresh token.
func (c *Codec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	tok, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return c.refreshSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil || !tok.Valid || claims.TokenType != "refresh" {
		return nil, apperr.Unauthorized("invalid or expired refresh token")
	}
	return claims, nil
}

// randomID returns a 128-bit random hex string for the jti claim.
func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var expiryPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseExpiry converts a duration string of the form "<integer><unit>" with
// unit s, m, h or d into a time.Duration.  Unparseable strings fall back to
// DefaultAccessTTL (15 minutes); the fallback is a documented default, not a
// silent error.
func ParseExpiry(s string) time.Duration {
	m := expiryPattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultAccessTTL
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return DefaultAccessTTL
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	case "d":
		return time.Duration(n) * 24 * time.Hour
	}
	return DefaultAccessTTL
}
