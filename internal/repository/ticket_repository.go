package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/model"
)

// TicketRepo is the minimal ticket store the authorization layer is
// exercised against; workflow fields beyond status are out of scope.
type TicketRepo struct{ DB *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{DB: db} }

const ticketColumns = "id,owner_id,subject,description,status,created_at,updated_at"

// Create inserts an open ticket owned by ownerID.
func (r *TicketRepo) Create(ctx context.Context, ownerID uint64, subject, description string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tickets (owner_id, subject, description, status) VALUES (?,?,?,'OPEN')",
		ownerID, strings.TrimSpace(subject), description)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches one ticket; auth.ErrNotFound when missing.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.OwnerID, &t.Subject, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns all tickets, or only those owned by ownerID when it
// is non-zero. Handlers pick the variant from the caller's
// permissions.
func (r *TicketRepo) List(ctx context.Context, ownerID uint64) ([]model.Ticket, error) {
	query := "SELECT " + ticketColumns + " FROM tickets ORDER BY id DESC"
	args := []any{}
	if ownerID != 0 {
		query = "SELECT " + ticketColumns + " FROM tickets WHERE owner_id=? ORDER BY id DESC"
		args = append(args, ownerID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Subject, &t.Description,
			&t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update rewrites subject, description and status.
func (r *TicketRepo) Update(ctx context.Context, id uint64, subject, description, status string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE tickets SET subject=?, description=?, status=? WHERE id=?",
		strings.TrimSpace(subject), description, status, id)
	return err
}

// Delete removes a ticket row.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM tickets WHERE id=?", id)
	return err
}
