package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/godesk-io/godesk-ce/internal/models"
)

// MemoryRuleRepository is an in-memory RuleRepository.
type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*models.AssignmentRule
}

// NewMemoryRuleRepository creates an empty in-memory rule store.
func NewMemoryRuleRepository() *MemoryRuleRepository {
	return &MemoryRuleRepository{rules: make(map[string]*models.AssignmentRule)}
}

func (r *MemoryRuleRepository) Get(ctx context.Context, id string) (*models.AssignmentRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, fmt.Errorf("assignment rule %s: %w", id, models.ErrNotFound)
	}
	out := *rule
	return &out, nil
}

func (r *MemoryRuleRepository) List(ctx context.Context, documentType string) ([]models.AssignmentRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AssignmentRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if documentType == "" || rule.DocumentType == documentType {
			out = append(out, *rule)
		}
	}
	// Highest priority first, name as tiebreak for determinism.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRuleRepository) Save(ctx context.Context, rule *models.AssignmentRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
		rule.CreatedAt = time.Now()
	}
	rule.UpdatedAt = time.Now()
	stored := *rule
	r.rules[rule.ID] = &stored
	return nil
}

func (r *MemoryRuleRepository) SetLastUser(ctx context.Context, ruleID, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleID]
	if !ok {
		return fmt.Errorf("assignment rule %s: %w", ruleID, models.ErrNotFound)
	}
	rule.LastUser = user
	rule.UpdatedAt = time.Now()
	return nil
}
