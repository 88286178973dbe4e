package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/godesk-io/godesk-ce/internal/database"
	"github.com/godesk-io/godesk-ce/internal/models"
)

// SQLCalendarRepository is the SQL-backed CalendarRepository. Holiday
// locations live in a child table linking to dynamic groups.
type SQLCalendarRepository struct {
	db *sql.DB
}

// NewSQLCalendarRepository creates a holiday repository on the connection.
func NewSQLCalendarRepository(db *sql.DB) *SQLCalendarRepository {
	return &SQLCalendarRepository{db: db}
}

func (r *SQLCalendarRepository) Get(ctx context.Context, id string) (*models.Holiday, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, name, holiday_date, COALESCE(holiday_type, ''), repeat_next_year
		FROM holiday WHERE id = $1
	`)
	h := &models.Holiday{}
	var repeat int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.Name, &h.Date, &h.Type, &repeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("holiday %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load holiday %s: %w", id, err)
	}
	h.RepeatNextYear = repeat != 0

	if h.Locations, err = r.loadLocations(ctx, id); err != nil {
		return nil, err
	}
	return h, nil
}

func (r *SQLCalendarRepository) loadLocations(ctx context.Context, holidayID string) ([]string, error) {
	query := database.ConvertPlaceholders(`
		SELECT group_id FROM holiday_location WHERE holiday_id = $1
	`)
	rows, err := r.db.QueryContext(ctx, query, holidayID)
	if err != nil {
		return nil, fmt.Errorf("load locations for holiday %s: %w", holidayID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return nil, err
		}
		out = append(out, groupID)
	}
	return out, rows.Err()
}

func (r *SQLCalendarRepository) HolidaysOn(ctx context.Context, date time.Time) ([]models.Holiday, error) {
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	raw := `
		SELECT id FROM holiday WHERE holiday_date >= $1 AND holiday_date < $2
	`
	args := database.RemapArgs(raw, []interface{}{dayStart, dayEnd})
	return r.byIDs(ctx, database.ConvertPlaceholders(raw), args)
}

func (r *SQLCalendarRepository) List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error) {
	raw := `SELECT id FROM holiday`
	var (
		clauses []string
		args    []interface{}
		n       int
	)
	if from != nil {
		n++
		clauses = append(clauses, fmt.Sprintf("holiday_date >= $%d", n))
		args = append(args, *from)
	}
	if to != nil {
		n++
		clauses = append(clauses, fmt.Sprintf("holiday_date <= $%d", n))
		args = append(args, *to)
	}
	if len(clauses) > 0 {
		raw += " WHERE " + strings.Join(clauses, " AND ")
	}
	raw += " ORDER BY holiday_date"
	return r.byIDs(ctx, database.ConvertPlaceholders(raw), args)
}

func (r *SQLCalendarRepository) byIDs(ctx context.Context, query string, args []interface{}) ([]models.Holiday, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
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

	out := make([]models.Holiday, 0, len(ids))
	for _, id := range ids {
		h, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, nil
}

func (r *SQLCalendarRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin holiday insert: %w", err)
	}
	defer tx.Rollback()

	query := database.ConvertPlaceholders(`
		INSERT INTO holiday (id, name, holiday_date, holiday_type, repeat_next_year)
		VALUES ($1, $2, $3, $4, $5)
	`)
	_, err = tx.ExecContext(ctx, query,
		holiday.ID, holiday.Name, holiday.Date, holiday.Type, boolToInt(holiday.RepeatNextYear))
	if err != nil {
		return fmt.Errorf("insert holiday %s: %w", holiday.Name, err)
	}
	if err := r.saveLocations(ctx, tx, holiday); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLCalendarRepository) Update(ctx context.Context, holiday *models.Holiday) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin holiday update: %w", err)
	}
	defer tx.Rollback()

	query := database.ConvertPlaceholders(`
		UPDATE holiday SET name = $1, holiday_date = $2, holiday_type = $3, repeat_next_year = $4
		WHERE id = $5
	`)
	result, err := tx.ExecContext(ctx, query,
		holiday.Name, holiday.Date, holiday.Type, boolToInt(holiday.RepeatNextYear), holiday.ID)
	if err != nil {
		return fmt.Errorf("update holiday %s: %w", holiday.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("holiday %s: %w", holiday.ID, models.ErrNotFound)
	}

	del := database.ConvertPlaceholders(`DELETE FROM holiday_location WHERE holiday_id = $1`)
	if _, err := tx.ExecContext(ctx, del, holiday.ID); err != nil {
		return fmt.Errorf("clear locations for holiday %s: %w", holiday.ID, err)
	}
	if err := r.saveLocations(ctx, tx, holiday); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLCalendarRepository) saveLocations(ctx context.Context, tx *sql.Tx, holiday *models.Holiday) error {
	ins := database.ConvertPlaceholders(`
		INSERT INTO holiday_location (holiday_id, group_id) VALUES ($1, $2)
	`)
	for _, groupID := range holiday.Locations {
		if _, err := tx.ExecContext(ctx, ins, holiday.ID, groupID); err != nil {
			return fmt.Errorf("insert location %s: %w", groupID, err)
		}
	}
	return nil
}

func (r *SQLCalendarRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin holiday delete: %w", err)
	}
	defer tx.Rollback()

	del := database.ConvertPlaceholders(`DELETE FROM holiday_location WHERE holiday_id = $1`)
	if _, err := tx.ExecContext(ctx, del, id); err != nil {
		return fmt.Errorf("clear locations for holiday %s: %w", id, err)
	}
	query := database.ConvertPlaceholders(`DELETE FROM holiday WHERE id = $1`)
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete holiday %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("holiday %s: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}

// SQLGroupRepository is the SQL-backed GroupRepository. Membership rows
// keep their position so rotation order is stable.
type SQLGroupRepository struct {
	db *sql.DB
}

// NewSQLGroupRepository creates a group repository on the connection.
func NewSQLGroupRepository(db *sql.DB) *SQLGroupRepository {
	return &SQLGroupRepository{db: db}
}

func (r *SQLGroupRepository) Get(ctx context.Context, id string) (*models.DynamicGroup, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, name, COALESCE(code, ''), COALESCE(description, ''), is_default, create_time
		FROM dynamic_group WHERE id = $1
	`)
	g := &models.DynamicGroup{}
	var isDefault int
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Code, &g.Description, &isDefault, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dynamic group %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load dynamic group %s: %w", id, err)
	}
	g.Default = isDefault != 0

	members := database.ConvertPlaceholders(`
		SELECT user_id FROM dynamic_group_member WHERE group_id = $1 ORDER BY position
	`)
	rows, err := r.db.QueryContext(ctx, members, id)
	if err != nil {
		return nil, fmt.Errorf("load members for group %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		g.Members = append(g.Members, user)
	}
	return g, rows.Err()
}

func (r *SQLGroupRepository) List(ctx context.Context) ([]models.DynamicGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM dynamic_group ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list dynamic groups: %w", err)
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

	out := make([]models.DynamicGroup, 0, len(ids))
	for _, id := range ids {
		g, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

func (r *SQLGroupRepository) Save(ctx context.Context, group *models.DynamicGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
		group.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group save: %w", err)
	}
	defer tx.Rollback()

	var query string
	if database.IsPostgreSQL() {
		query = `
			INSERT INTO dynamic_group (id, name, code, description, is_default, create_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, code = EXCLUDED.code,
				description = EXCLUDED.description, is_default = EXCLUDED.is_default
		`
	} else {
		query = database.ConvertPlaceholders(`
			REPLACE INTO dynamic_group (id, name, code, description, is_default, create_time)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
	}
	created := group.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, query,
		group.ID, group.Name, group.Code, group.Description, boolToInt(group.Default), created)
	if err != nil {
		return fmt.Errorf("save dynamic group %s: %w", group.Name, err)
	}

	del := database.ConvertPlaceholders(`DELETE FROM dynamic_group_member WHERE group_id = $1`)
	if _, err := tx.ExecContext(ctx, del, group.ID); err != nil {
		return fmt.Errorf("clear members for group %s: %w", group.ID, err)
	}
	ins := database.ConvertPlaceholders(`
		INSERT INTO dynamic_group_member (group_id, user_id, position) VALUES ($1, $2, $3)
	`)
	for i, user := range group.Members {
		if _, err := tx.ExecContext(ctx, ins, group.ID, user, i); err != nil {
			return fmt.Errorf("insert member %s: %w", user, err)
		}
	}
	return tx.Commit()
}
