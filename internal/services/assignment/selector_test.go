package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

func TestRoundRobinStrategy(t *testing.T) {
	ctx := context.Background()
	pool := []string{"a@x.com", "b@x.com", "c@x.com"}

	t.Run("first pick with no cursor", func(t *testing.T) {
		rule := &models.AssignmentRule{Policy: models.PolicyRoundRobin}
		user, err := RoundRobinStrategy{}.Pick(ctx, rule, pool)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", user)
	})

	t.Run("cycles through the pool", func(t *testing.T) {
		rule := &models.AssignmentRule{Policy: models.PolicyRoundRobin}
		var got []string
		for i := 0; i < 6; i++ {
			user, err := RoundRobinStrategy{}.Pick(ctx, rule, pool)
			require.NoError(t, err)
			rule.LastUser = user
			got = append(got, user)
		}
		assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com", "a@x.com", "b@x.com", "c@x.com"}, got)
	})

	t.Run("wraps from last element", func(t *testing.T) {
		rule := &models.AssignmentRule{LastUser: "c@x.com"}
		user, err := RoundRobinStrategy{}.Pick(ctx, rule, pool)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", user)
	})

	t.Run("stale cursor falls back to first", func(t *testing.T) {
		rule := &models.AssignmentRule{LastUser: "gone@x.com"}
		user, err := RoundRobinStrategy{}.Pick(ctx, rule, pool)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", user)
	})

	t.Run("rotation runs over the filtered pool", func(t *testing.T) {
		// b dropped out (on leave); after a, the next available is c.
		rule := &models.AssignmentRule{LastUser: "a@x.com"}
		user, err := RoundRobinStrategy{}.Pick(ctx, rule, []string{"a@x.com", "c@x.com"})
		require.NoError(t, err)
		assert.Equal(t, "c@x.com", user)
	})
}

func TestLoadBalancingStrategy(t *testing.T) {
	ctx := context.Background()
	items := repository.NewMemoryWorkItemRepository()
	now := time.Now()
	seed := func(doc, user string) {
		_, err := items.CreateIfAbsent(ctx, &models.WorkItem{
			DocumentType: "Ticket",
			DocumentID:   doc,
			UserID:       user,
			Open:         true,
			CreatedAt:    now,
		})
		require.NoError(t, err)
	}
	seed("T-1", "a@x.com")
	seed("T-2", "a@x.com")
	seed("T-3", "b@x.com")
	seed("T-4", "c@x.com")

	rule := &models.AssignmentRule{Policy: models.PolicyLoadBalancing, DocumentType: "Ticket"}
	s := LoadBalancingStrategy{WorkItems: items}

	t.Run("picks the least loaded", func(t *testing.T) {
		user, err := s.Pick(ctx, rule, []string{"a@x.com", "b@x.com"})
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", user)
	})

	t.Run("ties break by pool order", func(t *testing.T) {
		// b and c both hold one open item; b comes first in the pool.
		user, err := s.Pick(ctx, rule, []string{"a@x.com", "b@x.com", "c@x.com"})
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", user)
	})

	t.Run("user with no open work wins", func(t *testing.T) {
		user, err := s.Pick(ctx, rule, []string{"a@x.com", "idle@x.com"})
		require.NoError(t, err)
		assert.Equal(t, "idle@x.com", user)
	})
}

type staticFieldResolver struct {
	user string
	err  error
}

func (r staticFieldResolver) ResolveField(ctx context.Context, docType, docID, field string) (string, error) {
	return r.user, r.err
}

func TestBasedOnFieldStrategy(t *testing.T) {
	ctx := context.Background()
	rule := &models.AssignmentRule{Policy: models.PolicyBasedOnField, Field: "account_manager"}
	pool := []string{"a@x.com", "b@x.com"}

	t.Run("resolved user in pool", func(t *testing.T) {
		s := BasedOnFieldStrategy{Resolver: staticFieldResolver{user: "b@x.com"}, DocID: "T-1"}
		user, err := s.Pick(ctx, rule, pool)
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", user)
	})

	t.Run("resolved user not in pool", func(t *testing.T) {
		s := BasedOnFieldStrategy{Resolver: staticFieldResolver{user: "other@x.com"}, DocID: "T-1"}
		_, err := s.Pick(ctx, rule, pool)
		assert.Error(t, err)
	})

	t.Run("missing resolver", func(t *testing.T) {
		s := BasedOnFieldStrategy{DocID: "T-1"}
		_, err := s.Pick(ctx, rule, pool)
		assert.Error(t, err)
	})
}
