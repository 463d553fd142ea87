// Package queue defines message payloads exchanged over the message broker.
package queue

// UserRegisteredEvent is published when a registration completes.  It gives
// downstream consumers (welcome mail, analytics) enough to act on without
// querying the primary database.
type UserRegisteredEvent struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenTamperingEvent is published when a refresh token present in the
// store fails cryptographic verification and gets proactively revoked.
// Security tooling can consume it to alert on forgery attempts.
type TokenTamperingEvent struct {
	UserID    uint64 `json:"user_id"`
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}
