package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/model"
)

// TokenRepo persists refresh tokens (hash-at-rest) and implements
// auth.TokenStore.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Insert stores a refresh token row.
func (r *TokenRepo) Insert(ctx context.Context, row *model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, user_agent, ip_address, expires_at, created_at) VALUES (?,?,?,?,?,?)",
		row.UserID, row.TokenHash, row.UserAgent, row.IPAddress, row.ExpiresAt, row.CreatedAt)
	return err
}

// FindByHash returns the row for a token digest regardless of its
// revoked/expired state; liveness is the authority's call.
func (r *TokenRepo) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	var (
		row       model.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		hash).Scan(&row.ID, &row.UserID, &row.TokenHash, &row.UserAgent,
		&row.IPAddress, &row.ExpiresAt, &revokedAt, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		row.RevokedAt = &t
	}
	return &row, nil
}

// Revoke is the rotation compare-and-set: it flips revoked_at on the
// matching live row only, and reports whether a row changed. Two
// concurrent calls on one token see at most one true.
func (r *TokenRepo) Revoke(ctx context.Context, hash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every live token for a user and returns
// the count affected.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredBefore removes rows past their expiry. Only expired
// rows match, so this cannot race a rotation on a live token.
func (r *TokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActiveForUser returns the user's live tokens, newest first.
func (r *TokenRepo) ListActiveForUser(ctx context.Context, userID uint64, now time.Time) ([]model.RefreshToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, revoked_at, created_at FROM refresh_tokens WHERE user_id=? AND revoked_at IS NULL AND expires_at > ? ORDER BY created_at DESC",
		userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RefreshToken
	for rows.Next() {
		var (
			row       model.RefreshToken
			revokedAt sql.NullTime
		)
		if err := rows.Scan(&row.ID, &row.UserID, &row.TokenHash, &row.UserAgent,
			&row.IPAddress, &row.ExpiresAt, &revokedAt, &row.CreatedAt); err != nil {
			return nil, err
		}
		if revokedAt.Valid {
			t := revokedAt.Time
			row.RevokedAt = &t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
