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

// SQLRuleRepository is the SQL-backed RuleRepository. Direct members and
// group references live in child tables ordered by position, mirroring the
// ordered child rows the rule's round-robin rotation depends on.
type SQLRuleRepository struct {
	db *sql.DB
}

// NewSQLRuleRepository creates a rule repository on the given connection.
func NewSQLRuleRepository(db *sql.DB) *SQLRuleRepository {
	return &SQLRuleRepository{db: db}
}

func (r *SQLRuleRepository) Get(ctx context.Context, id string) (*models.AssignmentRule, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, name, description, disabled, priority, policy, document_type,
		       COALESCE(assign_condition, ''), COALESCE(unassign_condition, ''),
		       COALESCE(field_name, ''), COALESCE(last_user, ''),
		       COALESCE(legacy_group, ''), create_time, change_time
		FROM assignment_rule WHERE id = $1
	`)

	rule := &models.AssignmentRule{}
	var disabled int
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rule.ID, &rule.Name, &rule.Description, &disabled, &rule.Priority,
		&rule.Policy, &rule.DocumentType, &rule.AssignCondition,
		&rule.UnassignCondition, &rule.Field, &rule.LastUser,
		&rule.LegacyGroup, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment rule %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load assignment rule %s: %w", id, err)
	}
	rule.Disabled = disabled != 0

	if rule.Users, err = r.loadChildren(ctx, "assignment_rule_user", "user_id", id); err != nil {
		return nil, err
	}
	if rule.DynamicGroups, err = r.loadChildren(ctx, "assignment_rule_group", "group_id", id); err != nil {
		return nil, err
	}
	if rule.AssignmentDays, err = r.loadDays(ctx, id); err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *SQLRuleRepository) loadDays(ctx context.Context, ruleID string) ([]time.Weekday, error) {
	query := database.ConvertPlaceholders(`
		SELECT weekday FROM assignment_rule_day WHERE rule_id = $1 ORDER BY position
	`)
	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("load days for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var out []time.Weekday
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, time.Weekday(d))
	}
	return out, rows.Err()
}

func (r *SQLRuleRepository) loadChildren(ctx context.Context, table, column, ruleID string) ([]string, error) {
	query := database.ConvertPlaceholders(fmt.Sprintf(`
		SELECT %s FROM %s WHERE rule_id = $1 ORDER BY position
	`, column, table))

	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("load %s for rule %s: %w", table, ruleID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLRuleRepository) List(ctx context.Context, documentType string) ([]models.AssignmentRule, error) {
	raw := `
		SELECT id FROM assignment_rule
		WHERE ($1 = '' OR document_type = $1)
		ORDER BY priority DESC, name
	`
	args := database.RemapArgs(raw, []interface{}{documentType})

	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(raw), args...)
	if err != nil {
		return nil, fmt.Errorf("list assignment rules: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.AssignmentRule, 0, len(ids))
	for _, id := range ids {
		rule, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, nil
}

func (r *SQLRuleRepository) Save(ctx context.Context, rule *models.AssignmentRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save rule: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	disabled := 0
	if rule.Disabled {
		disabled = 1
	}

	upsert := database.ConvertPlaceholders(`
		INSERT INTO assignment_rule
			(id, name, description, disabled, priority, policy, document_type,
			 assign_condition, unassign_condition, field_name, last_user,
			 legacy_group, create_time, change_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			disabled = EXCLUDED.disabled, priority = EXCLUDED.priority,
			policy = EXCLUDED.policy, assign_condition = EXCLUDED.assign_condition,
			unassign_condition = EXCLUDED.unassign_condition,
			field_name = EXCLUDED.field_name, last_user = EXCLUDED.last_user,
			legacy_group = EXCLUDED.legacy_group, change_time = EXCLUDED.change_time
	`)
	if !database.IsPostgreSQL() {
		upsert = database.ConvertPlaceholders(`
			REPLACE INTO assignment_rule
				(id, name, description, disabled, priority, policy, document_type,
				 assign_condition, unassign_condition, field_name, last_user,
				 legacy_group, create_time, change_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`)
	}
	if _, err := tx.ExecContext(ctx, upsert,
		rule.ID, rule.Name, rule.Description, disabled, rule.Priority,
		rule.Policy, rule.DocumentType, rule.AssignCondition,
		rule.UnassignCondition, rule.Field, rule.LastUser, rule.LegacyGroup,
		rule.CreatedAt, rule.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save assignment rule %s: %w", rule.ID, err)
	}

	if err := r.replaceChildren(ctx, tx, "assignment_rule_user", "user_id", rule.ID, rule.Users); err != nil {
		return err
	}
	if err := r.replaceChildren(ctx, tx, "assignment_rule_group", "group_id", rule.ID, rule.DynamicGroups); err != nil {
		return err
	}
	if err := r.replaceDays(ctx, tx, rule.ID, rule.AssignmentDays); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLRuleRepository) replaceDays(ctx context.Context, tx *sql.Tx, ruleID string, days []time.Weekday) error {
	del := database.ConvertPlaceholders(`DELETE FROM assignment_rule_day WHERE rule_id = $1`)
	if _, err := tx.ExecContext(ctx, del, ruleID); err != nil {
		return fmt.Errorf("clear days for rule %s: %w", ruleID, err)
	}
	ins := database.ConvertPlaceholders(`
		INSERT INTO assignment_rule_day (rule_id, weekday, position) VALUES ($1, $2, $3)
	`)
	for i, d := range days {
		if _, err := tx.ExecContext(ctx, ins, ruleID, int(d), i); err != nil {
			return fmt.Errorf("insert day row for rule %s: %w", ruleID, err)
		}
	}
	return nil
}

func (r *SQLRuleRepository) replaceChildren(ctx context.Context, tx *sql.Tx, table, column, ruleID string, values []string) error {
	del := database.ConvertPlaceholders(fmt.Sprintf(`DELETE FROM %s WHERE rule_id = $1`, table))
	if _, err := tx.ExecContext(ctx, del, ruleID); err != nil {
		return fmt.Errorf("clear %s for rule %s: %w", table, ruleID, err)
	}
	ins := database.ConvertPlaceholders(fmt.Sprintf(`
		INSERT INTO %s (rule_id, %s, position) VALUES ($1, $2, $3)
	`, table, column))
	for i, v := range values {
		if _, err := tx.ExecContext(ctx, ins, ruleID, v, i); err != nil {
			return fmt.Errorf("insert %s row for rule %s: %w", table, ruleID, err)
		}
	}
	return nil
}

func (r *SQLRuleRepository) SetLastUser(ctx context.Context, ruleID, user string) error {
	query := database.ConvertPlaceholders(`
		UPDATE assignment_rule SET last_user = $1, change_time = $2 WHERE id = $3
	`)
	res, err := r.db.ExecContext(ctx, query, user, time.Now(), ruleID)
	if err != nil {
		return fmt.Errorf("update last user for rule %s: %w", ruleID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assignment rule %s: %w", ruleID, models.ErrNotFound)
	}
	return nil
}
