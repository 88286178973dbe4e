package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/godesk-io/godesk-ce/internal/models"
)

// MemoryWorkItemRepository is an in-memory WorkItemRepository. CreateIfAbsent
// checks and inserts under one lock, matching the conditional-insert
// semantics of the SQL implementation.
type MemoryWorkItemRepository struct {
	mu    sync.RWMutex
	items map[string]*models.WorkItem
}

// NewMemoryWorkItemRepository creates an empty in-memory work-item store.
func NewMemoryWorkItemRepository() *MemoryWorkItemRepository {
	return &MemoryWorkItemRepository{items: make(map[string]*models.WorkItem)}
}

func (r *MemoryWorkItemRepository) OpenByDocument(ctx context.Context, docType, docID string) ([]models.WorkItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.WorkItem
	for _, it := range r.items {
		if it.Open && it.DocumentType == docType && it.DocumentID == docID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (r *MemoryWorkItemRepository) CountOpenByUser(ctx context.Context, docType, user string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, it := range r.items {
		if it.Open && it.DocumentType == docType && it.UserID == user {
			n++
		}
	}
	return n, nil
}

func (r *MemoryWorkItemRepository) ClearForDocument(ctx context.Context, docType, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, it := range r.items {
		if it.Open && it.DocumentType == docType && it.DocumentID == docID {
			it.Open = false
			it.ClosedAt = &now
		}
	}
	return nil
}

func (r *MemoryWorkItemRepository) CreateIfAbsent(ctx context.Context, item *models.WorkItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.Open && it.DocumentType == item.DocumentType &&
			it.DocumentID == item.DocumentID && it.UserID == item.UserID {
			return false, nil
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.Open = true
	stored := *item
	r.items[item.ID] = &stored
	return true, nil
}
