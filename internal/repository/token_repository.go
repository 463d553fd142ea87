package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/serveis-extraordinaris/backend/internal/model"
)

// TokenRepo persists refresh tokens in the `refresh_tokens` table.  Tokens
// are stored by value; every mutation is a single conditional statement
// (`WHERE revoked=0`) so correctness never depends on multi-statement
// transactions.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Create inserts a refresh token row bound to the issuing device metadata.
func (r *TokenRepo) Create(ctx context.Context, userID uint64, token, userAgent, ipAddress string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token, user_agent, ip_address, expires_at)
		 VALUES (?,?,?,?,?)`,
		userID, token, userAgent, ipAddress, expiresAt)
	return err
}

// GetByValue returns the token row only when it is unrevoked and unexpired.
// Absent, revoked and expired tokens all come back as sql.ErrNoRows.
func (r *TokenRepo) GetByValue(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	var revokedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, token, user_agent, ip_address, expires_at, revoked_at, created_at
		 FROM refresh_tokens
		 WHERE token=? AND revoked=0 AND expires_at > UTC_TIMESTAMP()
		 LIMIT 1`,
		token).Scan(&t.ID, &t.UserID, &t.Token, &t.UserAgent, &t.IPAddress,
		&t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if revokedAt.Valid {
		rt := revokedAt.Time
		t.RevokedAt = &rt
	}
	return t, nil
}

// Revoke marks one token as revoked if it is not already.  It reports
// whether a row actually changed, which makes logout idempotent.
func (r *TokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked=1, revoked_at=UTC_TIMESTAMP()
		 WHERE token=? AND revoked=0`,
		token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllForUser revokes every unrevoked token owned by the user and
// returns how many were revoked.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked=1, revoked_at=UTC_TIMESTAMP()
		 WHERE user_id=? AND revoked=0`,
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActiveForUser returns session metadata for the user's currently valid
// tokens, newest first.  The token values themselves are not included.
func (r *TokenRepo) ListActiveForUser(ctx context.Context, userID uint64) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_agent, ip_address, created_at, expires_at
		 FROM refresh_tokens
		 WHERE user_id=? AND revoked=0 AND expires_at > UTC_TIMESTAMP()
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteExpired removes rows that can never be used again: expired or
// revoked tokens.  The periodic cleanup job drives this query.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < UTC_TIMESTAMP() OR revoked=1")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
