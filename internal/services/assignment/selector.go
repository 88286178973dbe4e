package assignment

import (
	"context"
	"fmt"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// Strategy picks one user from an already-filtered candidate pool. The
// pool is never empty when Pick is called.
type Strategy interface {
	Pick(ctx context.Context, rule *models.AssignmentRule, pool []string) (string, error)
}

// FieldResolver resolves the Based On Field policy: it returns the user
// named by a document field. The default implementation reads the field
// from the ticket; richer resolution is an external concern.
type FieldResolver interface {
	ResolveField(ctx context.Context, docType, docID, field string) (string, error)
}

// RoundRobinStrategy rotates through the filtered pool using the rule's
// persisted LastUser cursor.
//
// The rotation runs over the filtered pool, not the configured member
// list: when the user after the cursor is unavailable today, their next
// available colleague is picked instead of nobody.
type RoundRobinStrategy struct{}

func (RoundRobinStrategy) Pick(ctx context.Context, rule *models.AssignmentRule, pool []string) (string, error) {
	last := rule.LastUser
	if last == "" || last == pool[len(pool)-1] {
		return pool[0], nil
	}
	for i, user := range pool {
		if user == last {
			return pool[i+1], nil
		}
	}
	// Stale cursor: the remembered user is no longer in the pool.
	return pool[0], nil
}

// LoadBalancingStrategy picks the pool member with the fewest open work
// items for the rule's document type. Ties go to the earliest pool
// position, so the result is stable for equal counts.
type LoadBalancingStrategy struct {
	WorkItems repository.WorkItemRepository
}

func (s LoadBalancingStrategy) Pick(ctx context.Context, rule *models.AssignmentRule, pool []string) (string, error) {
	selected := ""
	best := -1
	for _, user := range pool {
		count, err := s.WorkItems.CountOpenByUser(ctx, rule.DocumentType, user)
		if err != nil {
			return "", fmt.Errorf("count open work for %s: %w", user, err)
		}
		if best < 0 || count < best {
			best = count
			selected = user
		}
	}
	return selected, nil
}

// BasedOnFieldStrategy delegates to a FieldResolver and validates that the
// resolved user is in the pool.
type BasedOnFieldStrategy struct {
	Resolver FieldResolver
	DocID    string
}

func (s BasedOnFieldStrategy) Pick(ctx context.Context, rule *models.AssignmentRule, pool []string) (string, error) {
	if s.Resolver == nil {
		return "", fmt.Errorf("no field resolver configured for rule %s", rule.ID)
	}
	user, err := s.Resolver.ResolveField(ctx, rule.DocumentType, s.DocID, rule.Field)
	if err != nil {
		return "", fmt.Errorf("resolve field %q: %w", rule.Field, err)
	}
	for _, candidate := range pool {
		if candidate == user {
			return user, nil
		}
	}
	return "", fmt.Errorf("field %q names %s, who is not an available candidate", rule.Field, user)
}
