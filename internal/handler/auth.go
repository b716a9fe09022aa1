package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/config"
	"github.com/sdeskhq/support-desk/internal/middleware"
	"github.com/sdeskhq/support-desk/internal/model"
	"github.com/sdeskhq/support-desk/internal/queue"
	"github.com/sdeskhq/support-desk/internal/service/eventpub"
	"github.com/sdeskhq/support-desk/internal/utils"
)

// CredentialStore is the user storage the auth endpoints need: the
// directory the authority already uses plus the password write.
type CredentialStore interface {
	auth.UserDirectory
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Authority *auth.Authority
	Users     CredentialStore
}

func NewAuthHandler(cfg config.Config, authority *auth.Authority, users CredentialStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Authority: authority, Users: users}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userPart struct {
	ID          uint64     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	RoleID      uint64     `json:"role_id"`
	Role        string     `json:"role,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// tokenResp is the issuance envelope for login and refresh.
type tokenResp struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	TokenType    string   `json:"token_type"`
	User         userPart `json:"user"`
}

func sanitizeUser(u *model.User, role *model.Role) userPart {
	p := userPart{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		RoleID:      u.RoleID,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
	}
	if role != nil {
		p.Role = role.Name
	}
	return p
}

func tokenEnvelope(pair *auth.TokenPair, u *model.User, role *model.Role) tokenResp {
	return tokenResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    "Bearer",
		User:         sanitizeUser(u, role),
	}
}

// dummyPasswordHash is compared against when the username does not
// resolve, so unknown and known usernames pay the same bcrypt cost
// and response timing cannot enumerate accounts.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// Login verifies credentials and returns a fresh token pair. Any
// credential problem answers the same 401 body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			utils.VerifyPassword(dummyPasswordHash, req.Password)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	role, err := h.Users.GetRoleByID(ctx, u.RoleID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	pair, err := h.Authority.IssueTokens(ctx, u, role, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		if errors.Is(err, auth.ErrInactiveUser) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	if err := h.Users.UpdateLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		c.Logger().Warnf("login: last-login stamp failed for user %d: %v", u.ID, err)
	}

	go eventpub.PublishAuthEvent(queue.AuthEvent{
		Type: queue.EventUserLogin, UserID: u.ID, Username: u.Username,
		IPAddress: c.RealIP(), At: time.Now().UTC(),
	})

	return c.JSON(http.StatusOK, tokenEnvelope(pair, u, role))
}

// Refresh rotates a refresh token: the presented token is dead after
// this call whether or not the client ever sees the response.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	pair, u, err := h.Authority.Refresh(ctx, strings.TrimSpace(req.RefreshToken),
		c.Request().UserAgent(), c.RealIP())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInactiveUser) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	role, err := h.Users.GetRoleByID(ctx, u.RoleID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tokenEnvelope(pair, u, role))
}

// Logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	ok, err := h.Authority.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every live session of the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	n, err := h.Authority.RevokeAll(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}

	go eventpub.PublishAuthEvent(queue.AuthEvent{
		Type: queue.EventSessionsRevoked, UserID: u.ID, Username: u.Username,
		IPAddress: c.RealIP(), At: time.Now().UTC(),
	})

	return c.JSON(http.StatusOK, echo.Map{"revoked_sessions": n})
}

// Me returns the authenticated user's sanitized profile.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"valid": true,
		"user":  sanitizeUser(middleware.CurrentUser(c), middleware.CurrentRole(c)),
	})
}

// Sessions lists the caller's active refresh sessions.
func (h *AuthHandler) Sessions(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	sessions, err := h.Authority.ListActiveSessions(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// ChangePassword verifies the current password, stores the new hash
// and revokes every existing session so stolen refresh tokens die
// with the old credential.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password/new_password required"})
	}

	u := middleware.CurrentUser(c)
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if _, err := h.Authority.RevokeAll(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session revocation failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
