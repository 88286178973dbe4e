package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// QueryBuilder wraps the standard sql.DB with sqlx scanning and placeholder
// rebinding so repositories can write queries once and run them on any
// supported driver.
type QueryBuilder struct {
	db *sqlx.DB
}

// NewQueryBuilder creates a QueryBuilder from an existing *sql.DB connection.
func NewQueryBuilder(db *sql.DB) *QueryBuilder {
	return &QueryBuilder{db: sqlx.NewDb(db, Driver())}
}

// DB returns the underlying sqlx.DB.
func (qb *QueryBuilder) DB() *sqlx.DB {
	return qb.db
}

// Rebind converts ? placeholders to the active driver's format.
func (qb *QueryBuilder) Rebind(query string) string {
	return qb.db.Rebind(query)
}

// SelectContext executes a query and scans all rows into dest.
func (qb *QueryBuilder) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return qb.db.SelectContext(ctx, dest, qb.Rebind(query), args...)
}

// GetContext executes a query expecting a single row.
func (qb *QueryBuilder) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return qb.db.GetContext(ctx, dest, qb.Rebind(query), args...)
}

// ExecContext executes a statement without returning rows.
func (qb *QueryBuilder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return qb.db.ExecContext(ctx, qb.Rebind(query), args...)
}

// In expands slice arguments for IN clauses and rebinds the result.
func (qb *QueryBuilder) In(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return qb.Rebind(q), a, nil
}
