package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdeskhq/support-desk/internal/model"
)

const testSecret = "test-secret"

func newTestAuthority() (*Authority, *memTokenStore, *memDirectory) {
	tokens := newMemTokenStore()
	dir := newMemDirectory()
	dir.putRole(model.Role{ID: 1, Name: "admin", IsAdmin: true})
	dir.putRole(model.Role{ID: 2, Name: "agent", Permissions: []string{PermTicketsViewAll}})
	dir.putUser(model.User{ID: 10, Username: "admin", RoleID: 1, IsActive: true})
	dir.putUser(model.User{ID: 11, Username: "alice", RoleID: 2, IsActive: true})
	return NewAuthority(testSecret, 15*time.Minute, 7*24*time.Hour, tokens, dir), tokens, dir
}

func adminUser(t *testing.T, dir *memDirectory) *model.User {
	t.Helper()
	u, err := dir.GetByID(context.Background(), 10)
	require.NoError(t, err)
	return u
}

func TestIssueTokensCarriesClaims(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()

	role, err := dir.GetRoleByID(ctx, 1)
	require.NoError(t, err)

	pair, err := a.IssueTokens(ctx, adminUser(t, dir), role, "cli/1.0", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, 900, pair.ExpiresIn)
	require.Len(t, pair.RefreshToken, 96)

	claims, err := a.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	require.Equal(t, "admin", claims.RoleName)
	require.True(t, claims.Admin)
	require.NotEmpty(t, claims.ID)

	uid, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, uint64(10), uid)
}

func TestIssueTokensRejectsInactiveUser(t *testing.T) {
	a, _, dir := newTestAuthority()
	dir.setActive(10, false)

	_, err := a.IssueTokens(context.Background(), adminUser(t, dir), nil, "", "")
	require.ErrorIs(t, err, ErrInactiveUser)
}

func TestVerifyAccessExpiryBoundary(t *testing.T) {
	a, _, dir := newTestAuthority()
	base := time.Now().UTC()
	a.now = func() time.Time { return base }

	pair, err := a.IssueTokens(context.Background(), adminUser(t, dir), nil, "", "")
	require.NoError(t, err)

	a.now = func() time.Time { return base.Add(15*time.Minute - time.Second) }
	_, err = a.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	a.now = func() time.Time { return base.Add(15*time.Minute + time.Second) }
	_, err = a.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessRejectsGarbageAndForgeries(t *testing.T) {
	a, _, dir := newTestAuthority()

	_, err := a.VerifyAccess("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Signed under a different secret.
	other := NewAuthority("other-secret", 15*time.Minute, time.Hour, newMemTokenStore(), newMemDirectory())
	pair, err := other.IssueTokens(context.Background(), adminUser(t, dir), nil, "", "")
	require.NoError(t, err)
	_, err = a.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRotatesAndKillsOldToken(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()

	pair, err := a.IssueTokens(ctx, adminUser(t, dir), nil, "", "")
	require.NoError(t, err)

	next, u, err := a.Refresh(ctx, pair.RefreshToken, "cli/1.0", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, uint64(10), u.ID)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The presented token is single-use.
	_, _, err = a.Refresh(ctx, pair.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrInvalidToken)

	// The replacement still works.
	_, _, err = a.Refresh(ctx, next.RefreshToken, "", "")
	require.NoError(t, err)
}

func TestRefreshConcurrentSingleUse(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()

	pair, err := a.IssueTokens(ctx, adminUser(t, dir), nil, "", "")
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := a.Refresh(ctx, pair.RefreshToken, "", ""); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestRefreshRejectsUnknownExpiredAndInactive(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()

	_, _, err := a.Refresh(ctx, "completely-unknown", "", "")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Expired refresh token.
	base := time.Now().UTC()
	a.now = func() time.Time { return base }
	pair, err := a.IssueTokens(ctx, adminUser(t, dir), nil, "", "")
	require.NoError(t, err)
	a.now = func() time.Time { return base.Add(7*24*time.Hour + time.Minute) }
	_, _, err = a.Refresh(ctx, pair.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Deactivated owner.
	a.now = func() time.Time { return base }
	pair, err = a.IssueTokens(ctx, adminUser(t, dir), nil, "", "")
	require.NoError(t, err)
	dir.setActive(10, false)
	_, _, err = a.Refresh(ctx, pair.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrInactiveUser)
}

func TestRevokeIsIdempotent(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()

	pair, err := a.IssueTokens(ctx, adminUser(t, dir), nil, "", "")
	require.NoError(t, err)

	ok, err := a.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeAllEmptiesSessionsAndKillsTokens(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()
	u := adminUser(t, dir)

	var raws []string
	for i := 0; i < 3; i++ {
		pair, err := a.IssueTokens(ctx, u, nil, "agent", "10.0.0.1")
		require.NoError(t, err)
		raws = append(raws, pair.RefreshToken)
	}
	sessions, err := a.ListActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	n, err := a.RevokeAll(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	sessions, err = a.ListActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)

	for _, raw := range raws {
		_, _, err := a.Refresh(ctx, raw, "", "")
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestSweepExpiredRemovesOnlyExpiredRows(t *testing.T) {
	a, _, dir := newTestAuthority()
	ctx := context.Background()
	base := time.Now().UTC()

	a.now = func() time.Time { return base.Add(-8 * 24 * time.Hour) }
	_, err := a.IssueTokens(ctx, adminUser(t, dir), nil, "", "") // long expired
	require.NoError(t, err)

	a.now = func() time.Time { return base }
	live, err := a.IssueTokens(ctx, adminUser(t, dir), nil, "", "")
	require.NoError(t, err)

	n, err := a.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// The live token survived the sweep.
	_, _, err = a.Refresh(ctx, live.RefreshToken, "", "")
	require.NoError(t, err)
}
