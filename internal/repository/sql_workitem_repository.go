package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/godesk-io/godesk-ce/internal/database"
	"github.com/godesk-io/godesk-ce/internal/models"
)

// SQLWorkItemRepository is the SQL-backed WorkItemRepository.
type SQLWorkItemRepository struct {
	db *sql.DB
}

// NewSQLWorkItemRepository creates a work-item repository on the connection.
func NewSQLWorkItemRepository(db *sql.DB) *SQLWorkItemRepository {
	return &SQLWorkItemRepository{db: db}
}

func (r *SQLWorkItemRepository) OpenByDocument(ctx context.Context, docType, docID string) ([]models.WorkItem, error) {
	query := database.ConvertPlaceholders(`
		SELECT id, document_type, document_id, user_id, COALESCE(description, ''),
		       create_time
		FROM work_item
		WHERE document_type = $1 AND document_id = $2 AND open = 1
		ORDER BY create_time
	`)
	rows, err := r.db.QueryContext(ctx, query, docType, docID)
	if err != nil {
		return nil, fmt.Errorf("list open work items for %s %s: %w", docType, docID, err)
	}
	defer rows.Close()

	var out []models.WorkItem
	for rows.Next() {
		it := models.WorkItem{Open: true}
		if err := rows.Scan(&it.ID, &it.DocumentType, &it.DocumentID, &it.UserID,
			&it.Description, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *SQLWorkItemRepository) CountOpenByUser(ctx context.Context, docType, user string) (int, error) {
	query := database.ConvertPlaceholders(`
		SELECT COUNT(*) FROM work_item
		WHERE document_type = $1 AND user_id = $2 AND open = 1
	`)
	var n int
	if err := r.db.QueryRowContext(ctx, query, docType, user).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open work items for %s: %w", user, err)
	}
	return n, nil
}

func (r *SQLWorkItemRepository) ClearForDocument(ctx context.Context, docType, docID string) error {
	query := database.ConvertPlaceholders(`
		UPDATE work_item SET open = 0, close_time = $1
		WHERE document_type = $2 AND document_id = $3 AND open = 1
	`)
	if _, err := r.db.ExecContext(ctx, query, time.Now(), docType, docID); err != nil {
		return fmt.Errorf("clear work items for %s %s: %w", docType, docID, err)
	}
	return nil
}

// CreateIfAbsent inserts the work item unless an identical open one already
// exists. The guard and the insert are one statement so there is no window
// between check and create.
func (r *SQLWorkItemRepository) CreateIfAbsent(ctx context.Context, item *models.WorkItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.Open = true

	raw := `
		INSERT INTO work_item (id, document_type, document_id, user_id, description, open, create_time)
		SELECT $1, $2, $3, $4, $5, 1, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM work_item
			WHERE document_type = $2 AND document_id = $3 AND user_id = $4 AND open = 1
		)
	`
	args := database.RemapArgs(raw, []interface{}{
		item.ID, item.DocumentType, item.DocumentID, item.UserID,
		item.Description, item.CreatedAt,
	})

	res, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(raw), args...)
	if err != nil {
		return false, fmt.Errorf("create work item for %s %s: %w", item.DocumentType, item.DocumentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create work item for %s %s: %w", item.DocumentType, item.DocumentID, err)
	}
	return n > 0, nil
}
