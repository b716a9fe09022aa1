package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/config"
	"github.com/sdeskhq/support-desk/internal/model"
	"github.com/sdeskhq/support-desk/internal/repository"
)

// RoleAdminHandler serves role CRUD. System roles refuse deletion
// and refuse flipping their admin flag; demoting any admin role is
// refused when it would leave no active admin behind.
type RoleAdminHandler struct {
	Cfg   config.Config
	Roles RoleStore
	Users UserStore
}

func NewRoleAdminHandler(cfg config.Config, roles RoleStore, users UserStore) *RoleAdminHandler {
	return &RoleAdminHandler{Cfg: cfg, Roles: roles, Users: users}
}

type roleReq struct {
	Name        string   `json:"name"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
}

type rolePart struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	IsAdmin     bool     `json:"is_admin"`
	IsSystem    bool     `json:"is_system"`
	Permissions []string `json:"permissions"`
}

func sanitizeRole(r *model.Role) rolePart {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return rolePart{ID: r.ID, Name: r.Name, IsAdmin: r.IsAdmin, IsSystem: r.IsSystem, Permissions: perms}
}

// List returns all roles.
func (h *RoleAdminHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]rolePart, 0, len(roles))
	for i := range roles {
		out = append(out, sanitizeRole(&roles[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": out})
}

// Create adds a non-system role.
func (h *RoleAdminHandler) Create(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	id, err := h.Roles.Create(ctx, req.Name, req.IsAdmin, req.Permissions)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNameExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create role failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Update rewrites a role; a system role keeps its admin flag no
// matter what the request says.
func (h *RoleAdminHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	current, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if current.IsSystem && req.IsAdmin != current.IsAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot change admin flag of a system role"})
	}
	if current.IsAdmin && !req.IsAdmin {
		users, err := h.Users.List(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		roles, err := h.Roles.List(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !auth.LastAdminSurvivesDemotion(id, users, roles) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot remove the last active admin"})
		}
	}

	if err := h.Roles.Update(ctx, id, req.Name, req.IsAdmin, req.Permissions); err != nil {
		if errors.Is(err, repository.ErrRoleNameExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a non-system role nobody holds.
func (h *RoleAdminHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	current, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if current.IsSystem {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete a system role"})
	}

	if err := h.Roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRoleInUse) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
