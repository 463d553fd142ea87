package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  The token
// column holds the signed token string exactly as handed to the client;
// lookups go by value.  A token is usable only while RevokedAt is null and
// ExpiresAt lies in the future.  UserAgent and IPAddress record the device
// that performed the login and are informational only.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  Token     – signed refresh token value (unique).
//  UserAgent – User-Agent header captured at login.
//  IPAddress – client address captured at login.
//  ExpiresAt – expiration timestamp.
//  RevokedAt – when the token was revoked (nil while active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	Token     string     // refresh_tokens.token
	UserAgent string     // refresh_tokens.user_agent
	IPAddress string     // refresh_tokens.ip_address
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Session is the outward view of an active refresh token, used by the
// session-management endpoint.  The token value itself is never echoed back.
type Session struct {
	ID        uint64    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
