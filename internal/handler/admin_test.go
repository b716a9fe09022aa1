package handler_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/config"
	"github.com/sdeskhq/support-desk/internal/handler"
	"github.com/sdeskhq/support-desk/internal/model"
	"github.com/sdeskhq/support-desk/internal/repository"
	"github.com/sdeskhq/support-desk/internal/utils"
)

// memUsers implements handler.UserStore on top of the directory
// methods it already carries for the auth tests.

func (m *memUsers) Create(_ context.Context, username, email, password string, roleID uint64, cost int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return 0, repository.ErrUsernameExists
		}
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var id uint64
	for k := range m.users {
		if k > id {
			id = k
		}
	}
	id++
	m.users[id] = &model.User{
		ID: id, Username: username, Email: email,
		PasswordHash: hash, RoleID: roleID, IsActive: true,
	}
	return id, nil
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) Update(_ context.Context, id uint64, email string, roleID uint64, isActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Email, u.RoleID, u.IsActive = email, roleID, isActive
	return nil
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

// memRoles implements handler.RoleStore over the role map the
// directory holds, so the gate and the admin surface see one
// dataset.
type memRoles struct{ dir *memUsers }

func (m *memRoles) Create(_ context.Context, name string, isAdmin bool, permissions []string) (uint64, error) {
	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	var id uint64
	for k, r := range m.dir.roles {
		if r.Name == name {
			return 0, repository.ErrRoleNameExists
		}
		if k > id {
			id = k
		}
	}
	id++
	m.dir.roles[id] = &model.Role{ID: id, Name: name, IsAdmin: isAdmin, Permissions: permissions}
	return id, nil
}

func (m *memRoles) GetByID(ctx context.Context, id uint64) (*model.Role, error) {
	return m.dir.GetRoleByID(ctx, id)
}

func (m *memRoles) List(_ context.Context) ([]model.Role, error) {
	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	out := make([]model.Role, 0, len(m.dir.roles))
	for _, r := range m.dir.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRoles) Update(_ context.Context, id uint64, name string, isAdmin bool, permissions []string) error {
	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	r, ok := m.dir.roles[id]
	if !ok {
		return auth.ErrNotFound
	}
	r.Name, r.IsAdmin, r.Permissions = name, isAdmin, permissions
	return nil
}

func (m *memRoles) Delete(_ context.Context, id uint64) error {
	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	for _, u := range m.dir.users {
		if u.RoleID == id {
			return repository.ErrRoleInUse
		}
	}
	delete(m.dir.roles, id)
	return nil
}

type adminEnv struct {
	*testEnv
	userAdmin *handler.UserAdminHandler
	roleAdmin *handler.RoleAdminHandler
	roles     *memRoles
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	env := newTestEnv(t)
	cfg := config.Config{BcryptCost: 4, RequestTimeout: 2 * time.Second}
	roles := &memRoles{dir: env.users}
	return &adminEnv{
		testEnv:   env,
		userAdmin: handler.NewUserAdminHandler(cfg, env.users, roles),
		roleAdmin: handler.NewRoleAdminHandler(cfg, roles, env.users),
		roles:     roles,
	}
}

// Seeded fixture (newTestEnv): user 1 "admin" on system admin role 1
// is the only active admin; user 2 "alice" on agent role 2.

func TestUserUpdateGuardsRoleDemotionOfLastAdmin(t *testing.T) {
	env := newAdminEnv(t)

	// Moving the sole active admin to a non-admin role must fail.
	rec, c := env.doJSON(http.MethodPut, "/v1/users/1",
		map[string]any{"email": "admin@example.com", "role_id": 2, "is_active": true}, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.userAdmin.Update(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "last active admin")

	// The role must be untouched.
	u, err := env.users.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), u.RoleID)

	// With a second active admin in place the demotion goes through.
	_, err = env.users.Create(context.Background(), "backup", "backup@example.com", "pw123456", 1, 4)
	require.NoError(t, err)

	rec, c = env.doJSON(http.MethodPut, "/v1/users/1",
		map[string]any{"email": "admin@example.com", "role_id": 2, "is_active": true}, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.userAdmin.Update(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	u, err = env.users.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), u.RoleID)
}

func TestUserUpdateGuardsDeactivationOfLastAdmin(t *testing.T) {
	env := newAdminEnv(t)

	rec, c := env.doJSON(http.MethodPut, "/v1/users/1",
		map[string]any{"email": "admin@example.com", "role_id": 1, "is_active": false}, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.userAdmin.Update(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Deactivating a non-admin is always fine.
	rec, c = env.doJSON(http.MethodPut, "/v1/users/2",
		map[string]any{"email": "alice@example.com", "role_id": 2, "is_active": false}, "")
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, env.userAdmin.Update(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUserUpdateRejectsUnknownRole(t *testing.T) {
	env := newAdminEnv(t)

	rec, c := env.doJSON(http.MethodPut, "/v1/users/2",
		map[string]any{"email": "alice@example.com", "role_id": 99, "is_active": true}, "")
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, env.userAdmin.Update(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown role")
}

func TestUserDeleteGuardsLastAdmin(t *testing.T) {
	env := newAdminEnv(t)

	rec, c := env.doJSON(http.MethodDelete, "/v1/users/1", nil, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.userAdmin.Delete(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "last active admin")

	rec, c = env.doJSON(http.MethodDelete, "/v1/users/2", nil, "")
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, env.userAdmin.Delete(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRoleUpdateGuardsAdminDemotion(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	// A non-system admin role held by the only active admin.
	leadID, err := env.roles.Create(ctx, "lead", true, nil)
	require.NoError(t, err)
	require.NoError(t, env.users.Update(ctx, 1, "admin@example.com", leadID, true))

	leadParam := strconv.FormatUint(leadID, 10)
	rec, c := env.doJSON(http.MethodPut, "/v1/roles/0",
		map[string]any{"name": "lead", "is_admin": false}, "")
	c.SetParamNames("id")
	c.SetParamValues(leadParam)
	require.NoError(t, env.roleAdmin.Update(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "last active admin")

	role, err := env.roles.GetByID(ctx, leadID)
	require.NoError(t, err)
	require.True(t, role.IsAdmin)

	// Another active admin on a different role unblocks the demotion.
	_, err = env.users.Create(ctx, "backup", "backup@example.com", "pw123456", 1, 4)
	require.NoError(t, err)

	rec, c = env.doJSON(http.MethodPut, "/v1/roles/0",
		map[string]any{"name": "lead", "is_admin": false}, "")
	c.SetParamNames("id")
	c.SetParamValues(leadParam)
	require.NoError(t, env.roleAdmin.Update(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRoleUpdateRejectsSystemAdminFlip(t *testing.T) {
	env := newAdminEnv(t)

	rec, c := env.doJSON(http.MethodPut, "/v1/roles/0",
		map[string]any{"name": "admin", "is_admin": false}, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.roleAdmin.Update(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "system role")
}

func TestRoleDeleteProtections(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	// System role refuses deletion.
	rec, c := env.doJSON(http.MethodDelete, "/v1/roles/0", nil, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.roleAdmin.Delete(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// A held role answers 409.
	rec, c = env.doJSON(http.MethodDelete, "/v1/roles/0", nil, "")
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, env.roleAdmin.Delete(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	// An unheld non-system role deletes cleanly.
	id, err := env.roles.Create(ctx, "temp", false, nil)
	require.NoError(t, err)
	rec, c = env.doJSON(http.MethodDelete, "/v1/roles/0", nil, "")
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(id, 10))
	require.NoError(t, env.roleAdmin.Delete(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
