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
)

// TicketStore is the ticket storage surface, implemented by
// repository.TicketRepo.
type TicketStore interface {
	Create(ctx context.Context, ownerID uint64, subject, description string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	List(ctx context.Context, ownerID uint64) ([]model.Ticket, error)
	Update(ctx context.Context, id uint64, subject, description, status string) error
	Delete(ctx context.Context, id uint64) error
}

// TicketHandler is the resource-ownership collaborator: agents see
// and edit their own tickets, holders of the wide tickets.*_all
// permissions see and edit everything.
type TicketHandler struct {
	Cfg     config.Config
	Tickets TicketStore
}

func NewTicketHandler(cfg config.Config, tickets TicketStore) *TicketHandler {
	return &TicketHandler{Cfg: cfg, Tickets: tickets}
}

type ticketReq struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// List returns every ticket for wide viewers, otherwise only the
// caller's own.
func (h *TicketHandler) List(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	ownerFilter := u.ID
	if auth.HasPermission(middleware.CurrentRole(c), auth.PermTicketsViewAll) {
		ownerFilter = 0
	}
	tickets, err := h.Tickets.List(ctx, ownerFilter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// Create opens a ticket owned by the caller.
func (h *TicketHandler) Create(c echo.Context) error {
	var req ticketReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Subject) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subject required"})
	}
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	id, err := h.Tickets.Create(ctx, u.ID, req.Subject, req.Description)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create ticket failed"})
	}

	go eventpub.PublishAuthEvent(queue.AuthEvent{
		Type: queue.EventTicketCreated, UserID: u.ID, Username: u.Username,
		TicketID: id, At: time.Now().UTC(),
	})

	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Get returns one ticket when the caller owns it or may view all.
func (h *TicketHandler) Get(c echo.Context) error {
	return h.withAuthorizedTicket(c, auth.PermTicketsViewAll, func(_ context.Context, t *model.Ticket) error {
		return c.JSON(http.StatusOK, t)
	})
}

// Update rewrites a ticket when the caller owns it or may edit all.
func (h *TicketHandler) Update(c echo.Context) error {
	var req ticketReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Subject) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subject required"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = "OPEN"
	}
	return h.withAuthorizedTicket(c, auth.PermTicketsEditAll, func(ctx context.Context, t *model.Ticket) error {
		if err := h.Tickets.Update(ctx, t.ID, req.Subject, req.Description, status); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
}

// Delete removes a ticket when the caller owns it or may edit all.
func (h *TicketHandler) Delete(c echo.Context) error {
	return h.withAuthorizedTicket(c, auth.PermTicketsEditAll, func(ctx context.Context, t *model.Ticket) error {
		if err := h.Tickets.Delete(ctx, t.ID); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
}

// withAuthorizedTicket loads the ticket from the path id once, runs
// the ownership-or-wide-permission check and hands the loaded row to
// fn. A not-found from fn (a delete racing the load) answers 404
// like the initial lookup.
func (h *TicketHandler) withAuthorizedTicket(c echo.Context, widePermission string, fn func(ctx context.Context, t *model.Ticket) error) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.RequestTimeout)
	defer cancel()

	t, err := h.Tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !auth.CanAccessResource(middleware.CurrentUser(c), middleware.CurrentRole(c), widePermission, t.OwnerID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := fn(ctx, t); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ticket operation failed"})
	}
	return nil
}
