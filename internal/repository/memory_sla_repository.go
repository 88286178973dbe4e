package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/godesk-io/godesk-ce/internal/models"
)

// MemorySLARepository is an in-memory SLARepository.
type MemorySLARepository struct {
	mu       sync.RWMutex
	policies map[string]*models.SLAPolicy
}

// NewMemorySLARepository creates an empty in-memory SLA store.
func NewMemorySLARepository() *MemorySLARepository {
	return &MemorySLARepository{policies: make(map[string]*models.SLAPolicy)}
}

// Seed stores a policy directly, for test setup.
func (r *MemorySLARepository) Seed(policy *models.SLAPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *policy
	r.policies[policy.ID] = &stored
}

func (r *MemorySLARepository) Get(ctx context.Context, id string) (*models.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, fmt.Errorf("sla policy %s: %w", id, models.ErrNotFound)
	}
	out := *p
	return &out, nil
}
