package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the DDL statements that bring an empty database up to the
// current layout. Statements are idempotent and written in the portable
// subset all three supported drivers accept, so there is no separate
// migration track per driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ticket (
		id VARCHAR(191) PRIMARY KEY,
		subject VARCHAR(512) NOT NULL,
		description TEXT,
		status VARCHAR(64) NOT NULL,
		priority VARCHAR(64),
		team_id VARCHAR(191),
		raised_by VARCHAR(191) NOT NULL,
		contact VARCHAR(191),
		resolution_details TEXT,
		resolution_submitted INTEGER NOT NULL DEFAULT 0,
		resolution_submitted_on TIMESTAMP NULL,
		resolution_ever_submitted INTEGER NOT NULL DEFAULT 0,
		current_resolution_version INTEGER NOT NULL DEFAULT 0,
		sla_id VARCHAR(191),
		response_by TIMESTAMP NULL,
		resolution_by TIMESTAMP NULL,
		agreement_status VARCHAR(64),
		first_responded_on TIMESTAMP NULL,
		resolution_date TIMESTAMP NULL,
		create_time TIMESTAMP NOT NULL,
		change_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_assignee (
		ticket_id VARCHAR(191) NOT NULL,
		user_id VARCHAR(191) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (ticket_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_activity (
		id VARCHAR(191) PRIMARY KEY,
		ticket_id VARCHAR(191) NOT NULL,
		actor VARCHAR(191),
		message TEXT NOT NULL,
		create_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_comment (
		id VARCHAR(191) PRIMARY KEY,
		ticket_id VARCHAR(191) NOT NULL,
		commented_by VARCHAR(191) NOT NULL,
		content TEXT NOT NULL,
		create_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resolution_history (
		id VARCHAR(191) PRIMARY KEY,
		ticket_id VARCHAR(191) NOT NULL,
		version_number INTEGER NOT NULL,
		resolution_content TEXT NOT NULL,
		submitted_by VARCHAR(191) NOT NULL,
		submitted_on TIMESTAMP NOT NULL,
		satisfaction_status VARCHAR(64) NOT NULL,
		satisfaction_by VARCHAR(191),
		satisfaction_on TIMESTAMP NULL,
		rejection_reason TEXT,
		is_current_version INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT uq_resolution_version UNIQUE (ticket_id, version_number)
	)`,
	`CREATE TABLE IF NOT EXISTS assignment_rule (
		id VARCHAR(191) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		disabled INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		policy VARCHAR(64),
		document_type VARCHAR(64) NOT NULL,
		assign_condition TEXT,
		unassign_condition TEXT,
		field_name VARCHAR(191),
		last_user VARCHAR(191),
		legacy_group VARCHAR(191),
		create_time TIMESTAMP NOT NULL,
		change_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assignment_rule_user (
		rule_id VARCHAR(191) NOT NULL,
		user_id VARCHAR(191) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (rule_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS assignment_rule_day (
		rule_id VARCHAR(191) NOT NULL,
		weekday INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (rule_id, weekday)
	)`,
	`CREATE TABLE IF NOT EXISTS assignment_rule_group (
		rule_id VARCHAR(191) NOT NULL,
		group_id VARCHAR(191) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (rule_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS work_item (
		id VARCHAR(191) PRIMARY KEY,
		document_type VARCHAR(64) NOT NULL,
		document_id VARCHAR(191) NOT NULL,
		user_id VARCHAR(191) NOT NULL,
		description TEXT,
		open INTEGER NOT NULL DEFAULT 1,
		create_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dynamic_group (
		id VARCHAR(191) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		code VARCHAR(64),
		description TEXT,
		is_default INTEGER NOT NULL DEFAULT 0,
		create_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dynamic_group_member (
		group_id VARCHAR(191) NOT NULL,
		user_id VARCHAR(191) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS holiday (
		id VARCHAR(191) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		holiday_date TIMESTAMP NOT NULL,
		holiday_type VARCHAR(64),
		repeat_next_year INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS holiday_location (
		holiday_id VARCHAR(191) NOT NULL,
		group_id VARCHAR(191) NOT NULL,
		PRIMARY KEY (holiday_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		email VARCHAR(191) PRIMARY KEY,
		full_name VARCHAR(255),
		image VARCHAR(512)
	)`,
	`CREATE TABLE IF NOT EXISTS employee (
		id VARCHAR(191) PRIMARY KEY,
		user_id VARCHAR(191) NOT NULL,
		name VARCHAR(255),
		location VARCHAR(191)
	)`,
	`CREATE TABLE IF NOT EXISTS leave_record (
		id VARCHAR(191) PRIMARY KEY,
		employee_id VARCHAR(191) NOT NULL,
		from_date TIMESTAMP NOT NULL,
		to_date TIMESTAMP NOT NULL,
		status VARCHAR(64),
		cancelled INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS team_member (
		team_id VARCHAR(191) NOT NULL,
		user_id VARCHAR(191) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sla_policy (
		id VARCHAR(191) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		is_default INTEGER NOT NULL DEFAULT 0,
		apply_condition TEXT,
		calendar VARCHAR(191)
	)`,
	`CREATE TABLE IF NOT EXISTS sla_priority (
		policy_id VARCHAR(191) NOT NULL,
		priority VARCHAR(64) NOT NULL,
		first_response_time INTEGER NOT NULL DEFAULT 0,
		resolution_time INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL,
		PRIMARY KEY (policy_id, priority)
	)`,
	`CREATE INDEX idx_work_item_document ON work_item (document_type, document_id, open)`,
	`CREATE INDEX idx_work_item_user ON work_item (document_type, user_id, open)`,
	`CREATE INDEX idx_resolution_ticket ON resolution_history (ticket_id, is_current_version)`,
	`CREATE INDEX idx_ticket_agreement ON ticket (agreement_status, resolution_by)`,
	`CREATE INDEX idx_leave_employee ON leave_record (employee_id, from_date, to_date)`,
	`CREATE INDEX idx_holiday_date ON holiday (holiday_date)`,
}

// Migrate applies the schema. Index statements may already exist on reruns;
// those failures are ignored since MySQL has no CREATE INDEX IF NOT EXISTS.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isIndexStatement(stmt) {
				continue
			}
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isIndexStatement(stmt string) bool {
	return len(stmt) > 12 && stmt[:12] == "CREATE INDEX"
}
