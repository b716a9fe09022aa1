package auth

import (
	"context"
	"time"

	"github.com/sdeskhq/support-desk/internal/model"
)

// TokenStore is the persistence contract for refresh tokens. The
// implementation must make Revoke a single conditional update
// ("revoke where hash matches and not yet revoked") so that two
// concurrent refreshes of the same token cannot both win.
type TokenStore interface {
	Insert(ctx context.Context, row *model.RefreshToken) error
	// FindByHash returns ErrNotFound when no row matches.
	FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	// Revoke flips the revoked marker on a live row. It reports
	// whether a row actually changed; false means the token was
	// already revoked or never existed.
	Revoke(ctx context.Context, hash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListActiveForUser(ctx context.Context, userID uint64, now time.Time) ([]model.RefreshToken, error)
}

// UserDirectory is the slice of user storage the authority needs:
// lookups plus the last-login stamp. Implementations return
// ErrNotFound for missing rows.
type UserDirectory interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetRoleByID(ctx context.Context, id uint64) (*model.Role, error)
	UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// Session is the user-facing view of an active refresh token, for
// "active sessions" listings. The token value itself is never
// included.
type Session struct {
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
