package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table. The
// plain token value is never stored; only its SHA-256 hex digest.
// UserAgent and IPAddress are captured at issue time so active
// sessions can be listed back to the user in a recognizable form.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the raw token value.
//  UserAgent – client User-Agent at issue time (may be empty).
//  IPAddress – client IP at issue time (may be empty).
//  ExpiresAt – expiration timestamp.
//  RevokedAt – when the token was revoked (null while active).
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	UserAgent string     // refresh_tokens.user_agent
	IPAddress string     // refresh_tokens.ip_address
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Active reports whether the token is usable at the given instant:
// not revoked and not past its expiry.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
