package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/godesk-io/godesk-ce/internal/database"
	"github.com/godesk-io/godesk-ce/internal/models"
)

const ticketColumns = `
	id, subject, COALESCE(description, ''), status, COALESCE(priority, ''),
	COALESCE(team_id, ''), raised_by, COALESCE(contact, ''),
	COALESCE(resolution_details, ''), resolution_submitted,
	resolution_submitted_on, resolution_ever_submitted,
	current_resolution_version, COALESCE(sla_id, ''), response_by,
	resolution_by, COALESCE(agreement_status, ''), first_responded_on,
	resolution_date, create_time, change_time
`

// SQLTicketRepository is the SQL-backed TicketRepository. Assignees live in
// a child table kept in sync with the ticket's denormalized metadata.
type SQLTicketRepository struct {
	db *sql.DB
}

// NewSQLTicketRepository creates a ticket repository on the given connection.
func NewSQLTicketRepository(db *sql.DB) *SQLTicketRepository {
	return &SQLTicketRepository{db: db}
}

func scanTicket(row interface{ Scan(...interface{}) error }) (*models.Ticket, error) {
	t := &models.Ticket{}
	var submitted, everSubmitted int
	err := row.Scan(
		&t.ID, &t.Subject, &t.Description, &t.Status, &t.Priority,
		&t.TeamID, &t.RaisedBy, &t.Contact,
		&t.ResolutionDetails, &submitted,
		&t.ResolutionSubmittedOn, &everSubmitted,
		&t.CurrentResolutionVersion, &t.SLAID, &t.ResponseBy,
		&t.ResolutionBy, &t.AgreementStatus, &t.FirstRespondedOn,
		&t.ResolutionDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ResolutionSubmitted = submitted != 0
	t.ResolutionEverSubmitted = everSubmitted != 0
	return t, nil
}

func (r *SQLTicketRepository) Get(ctx context.Context, id string) (*models.Ticket, error) {
	query := database.ConvertPlaceholders(`SELECT ` + ticketColumns + ` FROM ticket WHERE id = $1`)

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", id, err)
	}

	if ticket.Assignees, err = r.loadAssignees(ctx, id); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *SQLTicketRepository) loadAssignees(ctx context.Context, id string) ([]string, error) {
	query := database.ConvertPlaceholders(`
		SELECT user_id FROM ticket_assignee WHERE ticket_id = $1 ORDER BY position
	`)
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("load assignees for ticket %s: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *SQLTicketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket update: %w", err)
	}
	defer tx.Rollback()

	ticket.UpdatedAt = time.Now().UTC()
	query := database.ConvertPlaceholders(`
		UPDATE ticket SET
			subject = $1, description = $2, status = $3, priority = $4,
			team_id = $5, raised_by = $6, contact = $7,
			resolution_details = $8, resolution_submitted = $9,
			resolution_submitted_on = $10, resolution_ever_submitted = $11,
			current_resolution_version = $12, sla_id = $13, response_by = $14,
			resolution_by = $15, agreement_status = $16, first_responded_on = $17,
			resolution_date = $18, change_time = $19
		WHERE id = $20
	`)
	result, err := tx.ExecContext(ctx, query,
		ticket.Subject, ticket.Description, ticket.Status, ticket.Priority,
		ticket.TeamID, ticket.RaisedBy, ticket.Contact,
		ticket.ResolutionDetails, boolToInt(ticket.ResolutionSubmitted),
		ticket.ResolutionSubmittedOn, boolToInt(ticket.ResolutionEverSubmitted),
		ticket.CurrentResolutionVersion, ticket.SLAID, ticket.ResponseBy,
		ticket.ResolutionBy, ticket.AgreementStatus, ticket.FirstRespondedOn,
		ticket.ResolutionDate, ticket.UpdatedAt, ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", ticket.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("ticket %s: %w", ticket.ID, models.ErrNotFound)
	}

	del := database.ConvertPlaceholders(`DELETE FROM ticket_assignee WHERE ticket_id = $1`)
	if _, err := tx.ExecContext(ctx, del, ticket.ID); err != nil {
		return fmt.Errorf("clear assignees for ticket %s: %w", ticket.ID, err)
	}
	ins := database.ConvertPlaceholders(`
		INSERT INTO ticket_assignee (ticket_id, user_id, position) VALUES ($1, $2, $3)
	`)
	for i, user := range ticket.Assignees {
		if _, err := tx.ExecContext(ctx, ins, ticket.ID, user, i); err != nil {
			return fmt.Errorf("insert assignee %s: %w", user, err)
		}
	}

	return tx.Commit()
}

func (r *SQLTicketRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := database.ConvertPlaceholders(`SELECT COUNT(*) FROM ticket WHERE id = $1`)
	var count int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("check ticket %s: %w", id, err)
	}
	return count > 0, nil
}

func (r *SQLTicketRepository) ListResolutionDue(ctx context.Context, before time.Time) ([]models.Ticket, error) {
	query := database.ConvertPlaceholders(`
		SELECT ` + ticketColumns + `
		FROM ticket
		WHERE agreement_status = $1 AND resolution_by IS NOT NULL AND resolution_by < $2
	`)
	rows, err := r.db.QueryContext(ctx, query, models.AgreementResolutionDue, before)
	if err != nil {
		return nil, fmt.Errorf("list due tickets: %w", err)
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLTicketRepository) AddActivity(ctx context.Context, activity *models.TicketActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	query := database.ConvertPlaceholders(`
		INSERT INTO ticket_activity (id, ticket_id, actor, message, create_time)
		VALUES ($1, $2, $3, $4, $5)
	`)
	_, err := r.db.ExecContext(ctx, query,
		activity.ID, activity.TicketID, activity.Actor, activity.Message, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity for ticket %s: %w", activity.TicketID, err)
	}
	return nil
}

func (r *SQLTicketRepository) AddComment(ctx context.Context, comment *models.TicketComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	query := database.ConvertPlaceholders(`
		INSERT INTO ticket_comment (id, ticket_id, commented_by, content, create_time)
		VALUES ($1, $2, $3, $4, $5)
	`)
	_, err := r.db.ExecContext(ctx, query,
		comment.ID, comment.TicketID, comment.CommentedBy, comment.Content, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment for ticket %s: %w", comment.TicketID, err)
	}
	return nil
}

func (r *SQLTicketRepository) ListActivities(ctx context.Context, ticketID string) ([]models.TicketActivity, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, ticket_id, COALESCE(actor, ''), message, create_time
		FROM ticket_activity WHERE ticket_id = $1 ORDER BY create_time
	`)
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list activities for ticket %s: %w", ticketID, err)
	}
	defer rows.Close()

	var out []models.TicketActivity
	for rows.Next() {
		var a models.TicketActivity
		if err := rows.Scan(&a.ID, &a.TicketID, &a.Actor, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
