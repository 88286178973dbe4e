package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/godesk-io/godesk-ce/internal/database"
	"github.com/godesk-io/godesk-ce/internal/models"
)

// SQLSLARepository is the SQL-backed SLARepository. Priority allowance rows
// live in a child table keyed by policy.
type SQLSLARepository struct {
	db *sql.DB
}

// NewSQLSLARepository creates an SLA repository on the connection.
func NewSQLSLARepository(db *sql.DB) *SQLSLARepository {
	return &SQLSLARepository{db: db}
}

func (r *SQLSLARepository) Get(ctx context.Context, id string) (*models.SLAPolicy, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, name, enabled, is_default, COALESCE(apply_condition, ''), COALESCE(calendar, '')
		FROM sla_policy WHERE id = $1
	`)
	p := &models.SLAPolicy{}
	var enabled, isDefault int
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &enabled, &isDefault, &p.Condition, &p.Calendar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sla policy %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load sla policy %s: %w", id, err)
	}
	p.Enabled = enabled != 0
	p.Default = isDefault != 0

	prio := database.ConvertPlaceholders(`
		SELECT priority, first_response_time, resolution_time
		FROM sla_priority WHERE policy_id = $1 ORDER BY position
	`)
	rows, err := r.db.QueryContext(ctx, prio, id)
	if err != nil {
		return nil, fmt.Errorf("load priorities for sla %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var row models.SLAPriorityRule
		if err := rows.Scan(&row.Priority, &row.FirstResponseTime, &row.ResolutionTime); err != nil {
			return nil, err
		}
		p.Priorities = append(p.Priorities, row)
	}
	return p, rows.Err()
}
