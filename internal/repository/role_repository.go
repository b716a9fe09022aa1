package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/model"
)

// RoleRepo reads and writes the 'roles' table. Permissions live in a
// JSON array column so adding a permission name never needs a
// migration.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleColumns = "id,name,is_admin,is_system,permissions,created_at,updated_at"

// Create inserts a role and returns its id.
func (r *RoleRepo) Create(ctx context.Context, name string, isAdmin bool, permissions []string) (uint64, error) {
	perms, err := marshalPermissions(permissions)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO roles (name, is_admin, is_system, permissions) VALUES (?,?,0,?)",
		strings.TrimSpace(name), isAdmin, perms)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrRoleNameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a role; auth.ErrNotFound when missing.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (*model.Role, error) {
	return scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE id=? LIMIT 1", id))
}

// List returns all roles ordered by id.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, rows.Err()
}

// Update rewrites name, admin flag and permission set. The
// system-role protections run in the handler, which has the current
// row loaded.
func (r *RoleRepo) Update(ctx context.Context, id uint64, name string, isAdmin bool, permissions []string) error {
	perms, err := marshalPermissions(permissions)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE roles SET name=?, is_admin=?, permissions=? WHERE id=?",
		strings.TrimSpace(name), isAdmin, perms, id)
	if err != nil && isDuplicate(err) {
		return ErrRoleNameExists
	}
	return err
}

// Delete removes a role. A foreign key from users.role_id restricts
// the delete while users still hold the role (MySQL error 1451).
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	if err != nil && strings.Contains(err.Error(), "1451") {
		return ErrRoleInUse
	}
	return err
}

func scanRole(s rowScanner) (*model.Role, error) {
	var (
		role  model.Role
		perms []byte
	)
	err := s.Scan(&role.ID, &role.Name, &role.IsAdmin, &role.IsSystem,
		&perms, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &role.Permissions); err != nil {
			return nil, err
		}
	}
	return &role, nil
}

func marshalPermissions(permissions []string) ([]byte, error) {
	if permissions == nil {
		permissions = []string{}
	}
	return json.Marshal(permissions)
}
