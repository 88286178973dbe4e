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

// SQLResolutionRepository is the SQL-backed ResolutionRepository. Insert is
// a single conditional statement: the row lands only if the ticket's max
// version still matches the caller's expectation, so two concurrent
// submissions cannot both claim the same version number.
type SQLResolutionRepository struct {
	db *sql.DB
}

// NewSQLResolutionRepository creates a history repository on the connection.
func NewSQLResolutionRepository(db *sql.DB) *SQLResolutionRepository {
	return &SQLResolutionRepository{db: db}
}

const resolutionColumns = `
	id, ticket_id, version_number, resolution_content, submitted_by,
	submitted_on, satisfaction_status, COALESCE(satisfaction_by, ''),
	satisfaction_on, COALESCE(rejection_reason, ''), is_current_version
`

func scanResolution(row interface{ Scan(...interface{}) error }) (*models.ResolutionHistoryEntry, error) {
	e := &models.ResolutionHistoryEntry{}
	var current int
	var satisfactionOn sql.NullTime
	err := row.Scan(
		&e.ID, &e.TicketID, &e.VersionNumber, &e.Content, &e.SubmittedBy,
		&e.SubmittedOn, &e.Satisfaction, &e.SatisfactionBy,
		&satisfactionOn, &e.RejectionReason, &current,
	)
	if err != nil {
		return nil, err
	}
	if satisfactionOn.Valid {
		t := satisfactionOn.Time
		e.SatisfactionOn = &t
	}
	e.IsCurrent = current != 0
	return e, nil
}

func (r *SQLResolutionRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.ResolutionHistoryEntry, error) {
	query := database.ConvertPlaceholders(`
		SELECT ` + resolutionColumns + `
		FROM resolution_history WHERE ticket_id = $1
		ORDER BY version_number DESC
	`)
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list resolution history for %s: %w", ticketID, err)
	}
	defer rows.Close()

	var out []models.ResolutionHistoryEntry
	for rows.Next() {
		e, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *SQLResolutionRepository) Current(ctx context.Context, ticketID string) (*models.ResolutionHistoryEntry, error) {
	query := database.ConvertPlaceholders(`
		SELECT ` + resolutionColumns + `
		FROM resolution_history
		WHERE ticket_id = $1 AND is_current_version = 1
		LIMIT 1
	`)
	e, err := scanResolution(r.db.QueryRowContext(ctx, query, ticketID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current resolution for %s: %w", ticketID, err)
	}
	return e, nil
}

func (r *SQLResolutionRepository) ByVersion(ctx context.Context, ticketID string, version int) (*models.ResolutionHistoryEntry, error) {
	query := database.ConvertPlaceholders(`
		SELECT ` + resolutionColumns + `
		FROM resolution_history
		WHERE ticket_id = $1 AND version_number = $2
	`)
	e, err := scanResolution(r.db.QueryRowContext(ctx, query, ticketID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolution version %d for ticket %s: %w", version, ticketID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load resolution version %d for %s: %w", version, ticketID, err)
	}
	return e, nil
}

func (r *SQLResolutionRepository) MaxVersion(ctx context.Context, ticketID string) (int, error) {
	query := database.ConvertPlaceholders(`
		SELECT COALESCE(MAX(version_number), 0)
		FROM resolution_history WHERE ticket_id = $1
	`)
	var max int
	if err := r.db.QueryRowContext(ctx, query, ticketID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max resolution version for %s: %w", ticketID, err)
	}
	return max, nil
}

func (r *SQLResolutionRepository) Insert(ctx context.Context, entry *models.ResolutionHistoryEntry, expectedMax int) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SubmittedOn.IsZero() {
		entry.SubmittedOn = time.Now()
	}
	if entry.VersionNumber == 0 {
		entry.VersionNumber = expectedMax + 1
	}
	current := 0
	if entry.IsCurrent {
		current = 1
	}

	raw := `
		INSERT INTO resolution_history
			(id, ticket_id, version_number, resolution_content, submitted_by,
			 submitted_on, satisfaction_status, satisfaction_by, satisfaction_on,
			 rejection_reason, is_current_version)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE (SELECT COALESCE(MAX(version_number), 0)
		       FROM resolution_history WHERE ticket_id = $2) = $12
	`
	args := database.RemapArgs(raw, []interface{}{
		entry.ID, entry.TicketID, entry.VersionNumber, entry.Content,
		entry.SubmittedBy, entry.SubmittedOn, entry.Satisfaction,
		entry.SatisfactionBy, entry.SatisfactionOn, entry.RejectionReason,
		current, expectedMax,
	})

	res, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(raw), args...)
	if err != nil {
		return fmt.Errorf("insert resolution version for %s: %w", entry.TicketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert resolution version for %s: %w", entry.TicketID, err)
	}
	if n == 0 {
		return fmt.Errorf("resolution history for ticket %s moved past version %d: %w",
			entry.TicketID, expectedMax, models.ErrConflict)
	}
	return nil
}

func (r *SQLResolutionRepository) Update(ctx context.Context, entry *models.ResolutionHistoryEntry) error {
	current := 0
	if entry.IsCurrent {
		current = 1
	}
	query := database.ConvertPlaceholders(`
		UPDATE resolution_history SET
			satisfaction_status = $1, satisfaction_by = $2, satisfaction_on = $3,
			rejection_reason = $4, is_current_version = $5
		WHERE id = $6
	`)
	res, err := r.db.ExecContext(ctx, query,
		entry.Satisfaction, entry.SatisfactionBy, entry.SatisfactionOn,
		entry.RejectionReason, current, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update resolution entry %s: %w", entry.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("resolution entry %s: %w", entry.ID, models.ErrNotFound)
	}
	return nil
}

func (r *SQLResolutionRepository) ClearCurrent(ctx context.Context, ticketID, exceptID string) error {
	query := database.ConvertPlaceholders(`
		UPDATE resolution_history SET is_current_version = 0
		WHERE ticket_id = $1 AND id != $2
	`)
	if _, err := r.db.ExecContext(ctx, query, ticketID, exceptID); err != nil {
		return fmt.Errorf("clear current resolution for %s: %w", ticketID, err)
	}
	return nil
}

func (r *SQLResolutionRepository) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	query := database.ConvertPlaceholders(`
		SELECT COUNT(*) FROM resolution_history WHERE ticket_id = $1
	`)
	var n int
	if err := r.db.QueryRowContext(ctx, query, ticketID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count resolution history for %s: %w", ticketID, err)
	}
	return n, nil
}
