// Package auth is the authentication and authorization core: the
// Authority is the sole issuer and validator of access and refresh
// tokens, and the permission helpers are the single place role-based
// decisions are made.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sdeskhq/support-desk/internal/model"
	"github.com/sdeskhq/support-desk/internal/utils"
)

// refreshTokenBytes is the entropy of an opaque refresh token; 48
// random bytes encode to 96 hex characters.
const refreshTokenBytes = 48

// TokenPair is what login and refresh hand back to the client.
// ExpiresIn counts seconds until the access token expires.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Authority issues, verifies, rotates and revokes tokens. It is the
// only component holding the signing secret and the only writer of
// the refresh-token store.
type Authority struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     TokenStore
	users      UserDirectory
	now        func() time.Time
}

// NewAuthority wires an Authority over the given storage contracts.
func NewAuthority(secret string, accessTTL, refreshTTL time.Duration, tokens TokenStore, users UserDirectory) *Authority {
	return &Authority{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		users:      users,
		now:        time.Now,
	}
}

// IssueTokens creates a signed access token and a persisted opaque
// refresh token for an active user. The role may be nil when the
// user's role id does not resolve; the access token then carries no
// role name and no admin flag.
func (a *Authority) IssueTokens(ctx context.Context, user *model.User, role *model.Role, userAgent, ipAddress string) (*TokenPair, error) {
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	now := a.now().UTC()

	access, err := signAccess(a.secret, newClaims(user, role, a.accessTTL, now))
	if err != nil {
		return nil, err
	}
	raw, err := utils.NewOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}
	row := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.DigestToken(raw),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: now.Add(a.refreshTTL),
		CreatedAt: now,
	}
	if err := a.tokens.Insert(ctx, row); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresIn:    int(a.accessTTL / time.Second),
	}, nil
}

// VerifyAccess checks signature and expiry of an access token. Pure
// computation, no I/O; every failure is ErrInvalidToken.
func (a *Authority) VerifyAccess(raw string) (*Claims, error) {
	return parseAccess(a.secret, raw, a.now)
}

// Refresh exchanges a live refresh token for a fresh pair. The
// presented token is revoked with a conditional update before the
// replacement is issued, so a concurrent or replayed refresh of the
// same token fails even if it raced this call past the lookup.
func (a *Authority) Refresh(ctx context.Context, rawToken, userAgent, ipAddress string) (*TokenPair, *model.User, error) {
	hash := utils.DigestToken(rawToken)

	row, err := a.tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !row.Active(a.now().UTC()) {
		return nil, nil, ErrInvalidToken
	}

	user, err := a.users.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	// Rotation point: exactly one caller may flip the revoked
	// marker. Everyone else sees a dead token from here on.
	ok, err := a.tokens.Revoke(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrInvalidToken
	}

	role, err := a.roleFor(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	pair, err := a.IssueTokens(ctx, user, role, userAgent, ipAddress)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Revoke marks a single refresh token revoked. Idempotent; reports
// whether a live row was changed.
func (a *Authority) Revoke(ctx context.Context, rawToken string) (bool, error) {
	return a.tokens.Revoke(ctx, utils.DigestToken(rawToken))
}

// RevokeAll revokes every live refresh token of a user ("logout
// everywhere") and returns how many were affected.
func (a *Authority) RevokeAll(ctx context.Context, userID uint64) (int64, error) {
	return a.tokens.RevokeAllForUser(ctx, userID)
}

// ListActiveSessions returns the non-revoked, non-expired refresh
// tokens of a user as client-safe session views.
func (a *Authority) ListActiveSessions(ctx context.Context, userID uint64) ([]Session, error) {
	rows, err := a.tokens.ListActiveForUser(ctx, userID, a.now().UTC())
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, Session{
			UserAgent: r.UserAgent,
			IPAddress: r.IPAddress,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
		})
	}
	return sessions, nil
}

// SweepExpired deletes refresh tokens past their expiry. Runs from a
// background schedule, never from the request path; it only touches
// expired rows, so it cannot race a rotation (which targets live
// ones).
func (a *Authority) SweepExpired(ctx context.Context) (int64, error) {
	return a.tokens.DeleteExpiredBefore(ctx, a.now().UTC())
}

// roleFor resolves the user's role, mapping a dangling role id to a
// nil role rather than an error.
func (a *Authority) roleFor(ctx context.Context, user *model.User) (*model.Role, error) {
	role, err := a.users.GetRoleByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}
