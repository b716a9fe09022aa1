package auth

import (
	"context"
	"sync"
	"time"

	"github.com/sdeskhq/support-desk/internal/model"
)

// In-memory implementations of the storage contracts, used by the
// authority tests below.

type memTokenStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[string]*model.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{rows: make(map[string]*model.RefreshToken)}
}

func (s *memTokenStore) Insert(_ context.Context, row *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *row
	cp.ID = s.nextID
	s.rows[cp.TokenHash] = &cp
	return nil
}

func (s *memTokenStore) FindByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *memTokenStore) Revoke(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[hash]
	if !ok || row.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	return true, nil
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, row := range s.rows {
		if row.ExpiresAt.Before(cutoff) {
			delete(s.rows, hash)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) ListActiveForUser(_ context.Context, userID uint64, now time.Time) ([]model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RefreshToken
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil && now.Before(row.ExpiresAt) {
			out = append(out, *row)
		}
	}
	return out, nil
}

type memDirectory struct {
	mu    sync.Mutex
	users map[uint64]*model.User
	roles map[uint64]*model.Role
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users: make(map[uint64]*model.User),
		roles: make(map[uint64]*model.Role),
	}
}

func (d *memDirectory) GetByID(_ context.Context, id uint64) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *memDirectory) GetByUsername(_ context.Context, username string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memDirectory) GetRoleByID(_ context.Context, id uint64) (*model.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (d *memDirectory) UpdateLastLogin(_ context.Context, id uint64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

func (d *memDirectory) putUser(u model.User) { d.users[u.ID] = &u }
func (d *memDirectory) putRole(r model.Role) { d.roles[r.ID] = &r }

func (d *memDirectory) setActive(id uint64, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		u.IsActive = active
	}
}
