package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/godesk-io/godesk-ce/internal/database"
	"github.com/godesk-io/godesk-ce/internal/models"
)

// SQLDirectoryRepository is the SQL-backed DirectoryRepository. It also
// implements TeamRepository; team membership lives in the same directory
// schema. Queries go through the sqlx query builder with ? placeholders,
// so they run unchanged on every supported driver.
type SQLDirectoryRepository struct {
	qb *database.QueryBuilder
}

// NewSQLDirectoryRepository creates a directory repository on the connection.
func NewSQLDirectoryRepository(db *sql.DB) *SQLDirectoryRepository {
	return &SQLDirectoryRepository{qb: database.NewQueryBuilder(db)}
}

type userRow struct {
	Email    string `db:"email"`
	FullName string `db:"full_name"`
	Image    string `db:"image"`
}

type employeeRow struct {
	ID       string `db:"id"`
	UserID   string `db:"user_id"`
	Name     string `db:"name"`
	Location string `db:"location"`
}

type leaveRow struct {
	ID         string    `db:"id"`
	EmployeeID string    `db:"employee_id"`
	FromDate   time.Time `db:"from_date"`
	ToDate     time.Time `db:"to_date"`
	Status     string    `db:"status"`
	Cancelled  int       `db:"cancelled"`
}

// GetUser returns (nil, nil) for unknown emails; a missing directory entry
// is not an error to availability checks.
func (r *SQLDirectoryRepository) GetUser(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	err := r.qb.GetContext(ctx, &row, `
		SELECT email, COALESCE(full_name, '') AS full_name, COALESCE(image, '') AS image
		FROM users WHERE email = ?
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", email, err)
	}
	return &models.User{Email: row.Email, FullName: row.FullName, Image: row.Image}, nil
}

// EmployeeByUser returns (nil, nil) when the user has no employee record.
func (r *SQLDirectoryRepository) EmployeeByUser(ctx context.Context, email string) (*models.Employee, error) {
	var row employeeRow
	err := r.qb.GetContext(ctx, &row, `
		SELECT id, user_id, COALESCE(name, '') AS name, COALESCE(location, '') AS location
		FROM employee WHERE user_id = ?
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load employee for %s: %w", email, err)
	}
	return &models.Employee{ID: row.ID, UserID: row.UserID, Name: row.Name, Location: row.Location}, nil
}

// LeaveRecords returns the employee's leave records that span the given day.
func (r *SQLDirectoryRepository) LeaveRecords(ctx context.Context, employeeID string, on time.Time) ([]models.LeaveRecord, error) {
	y, m, d := on.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var rows []leaveRow
	err := r.qb.SelectContext(ctx, &rows, `
		SELECT id, employee_id, from_date, to_date, COALESCE(status, '') AS status, cancelled
		FROM leave_record
		WHERE employee_id = ? AND from_date <= ? AND to_date >= ?
		ORDER BY from_date
	`, employeeID, day.AddDate(0, 0, 1), day.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("load leave records for %s: %w", employeeID, err)
	}

	out := make([]models.LeaveRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.LeaveRecord{
			ID:         row.ID,
			EmployeeID: row.EmployeeID,
			FromDate:   row.FromDate,
			ToDate:     row.ToDate,
			Status:     models.LeaveStatus(row.Status),
			Cancelled:  row.Cancelled != 0,
		}
		if rec.Covers(on) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Members returns the ordered member emails of a helpdesk team.
func (r *SQLDirectoryRepository) Members(ctx context.Context, teamID string) ([]string, error) {
	var members []string
	err := r.qb.SelectContext(ctx, &members, `
		SELECT user_id FROM team_member WHERE team_id = ? ORDER BY position
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("load members for team %s: %w", teamID, err)
	}
	return members, nil
}
