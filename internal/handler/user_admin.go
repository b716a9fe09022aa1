package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/config"
	"github.com/sdeskhq/support-desk/internal/model"
	"github.com/sdeskhq/support-desk/internal/repository"
)

// UserStore is the user storage surface of the admin CRUD,
// implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, username, email, password string, roleID uint64, cost int) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id uint64, email string, roleID uint64, isActive bool) error
	Delete(ctx context.Context, id uint64) error
}

// RoleStore is the role storage surface of the admin CRUD,
// implemented by repository.RoleRepo.
type RoleStore interface {
	Create(ctx context.Context, name string, isAdmin bool, permissions []string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
	Update(ctx context.Context, id uint64, name string, isAdmin bool, permissions []string) error
	Delete(ctx context.Context, id uint64) error
}

// UserAdminHandler serves the admin user CRUD. Any change that would
// strip the last active admin's capability (deleting, deactivating
// or demoting them to a non-admin role) is refused.
type UserAdminHandler struct {
	Cfg   config.Config
	Users UserStore
	Roles RoleStore
}

func NewUserAdminHandler(cfg config.Config, users UserStore, roles RoleStore) *UserAdminHandler {
	return &UserAdminHandler{Cfg: cfg, Users: users, Roles: roles}
}

type createUserReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   uint64 `json:"role_id"`
}

type updateUserReq struct {
	Email    string `json:"email"`
	RoleID   uint64 `json:"role_id"`
	IsActive bool   `json:"is_active"`
}

// List returns all users, sanitized.
func (h *UserAdminHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	roles, err := h.Roles.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	names := make(map[uint64]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	out := make([]userPart, 0, len(users))
	for i := range users {
		p := sanitizeUser(&users[i], nil)
		p.Role = names[users[i].RoleID]
		out = append(out, p)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// Create adds a user under an existing role.
func (h *UserAdminHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" ||
		req.Password == "" || req.RoleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password/role_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	if _, err := h.Roles.GetByID(ctx, req.RoleID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	id, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, req.RoleID, h.Cfg.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists), errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Update edits email, role and active flag. Deactivation runs the
// last-admin guard.
func (h *UserAdminHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.RoleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/role_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	newRole, err := h.Roles.GetByID(ctx, req.RoleID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	// The guard runs whenever the change could strip an active
	// admin's capability: deactivation, or moving to a non-admin
	// role. For non-admin targets it is a no-op.
	stripsAdmin := target.IsActive &&
		(!req.IsActive || (req.RoleID != target.RoleID && !newRole.IsAdmin))
	if stripsAdmin {
		if err := h.ensureLastAdminSurvives(ctx, id); err != nil {
			return respondAdminGuard(c, err)
		}
	}

	if err := h.Users.Update(ctx, id, req.Email, req.RoleID, req.IsActive); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a user after the last-admin guard passes.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.ensureLastAdminSurvives(ctx, id); err != nil {
		return respondAdminGuard(c, err)
	}
	if err := h.Users.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ensureLastAdminSurvives loads the full user and role sets and runs
// the survival check for the candidate.
func (h *UserAdminHandler) ensureLastAdminSurvives(ctx context.Context, candidateID uint64) error {
	users, err := h.Users.List(ctx)
	if err != nil {
		return err
	}
	roles, err := h.Roles.List(ctx)
	if err != nil {
		return err
	}
	if !auth.LastAdminSurvives(candidateID, users, roles) {
		return auth.ErrLastAdmin
	}
	return nil
}

func respondAdminGuard(c echo.Context, err error) error {
	if errors.Is(err, auth.ErrLastAdmin) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot remove the last active admin"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
