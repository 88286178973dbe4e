package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godesk-io/godesk-ce/internal/cache"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

func TestResolveMembers(t *testing.T) {
	ctx := context.Background()
	groups := repository.NewMemoryGroupRepository()
	resolver := NewGroupResolver(groups, nil, 0, nil)

	require.NoError(t, groups.Save(ctx, &models.DynamicGroup{
		ID:      "support",
		Name:    "Support",
		Members: []string{"a@x.com", "b@x.com", "a@x.com", ""},
	}))

	t.Run("de-duplicates preserving order", func(t *testing.T) {
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, resolver.ResolveMembers(ctx, "support"))
	})

	t.Run("unknown group resolves to empty", func(t *testing.T) {
		assert.Empty(t, resolver.ResolveMembers(ctx, "deleted-group"))
	})

	t.Run("empty id resolves to empty", func(t *testing.T) {
		assert.Empty(t, resolver.ResolveMembers(ctx, ""))
	})
}

func TestResolveMembersCaching(t *testing.T) {
	ctx := context.Background()
	groups := repository.NewMemoryGroupRepository()
	resolver := NewGroupResolver(groups, cache.NewLocalCache(), time.Minute, nil)

	require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "support", Name: "Support", Members: []string{"a@x.com"}}))
	assert.Equal(t, []string{"a@x.com"}, resolver.ResolveMembers(ctx, "support"))

	// A membership change is invisible until the cache is invalidated.
	require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "support", Name: "Support", Members: []string{"b@x.com"}}))
	assert.Equal(t, []string{"a@x.com"}, resolver.ResolveMembers(ctx, "support"))

	resolver.Invalidate(ctx, "support")
	assert.Equal(t, []string{"b@x.com"}, resolver.ResolveMembers(ctx, "support"))
}

func TestBuildPool(t *testing.T) {
	ctx := context.Background()
	groups := repository.NewMemoryGroupRepository()
	resolver := NewGroupResolver(groups, nil, 0, nil)

	require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "tier1", Name: "Tier 1", Members: []string{"b@x.com", "c@x.com"}}))
	require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "tier2", Name: "Tier 2", Members: []string{"c@x.com", "d@x.com"}}))
	require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "legacy", Name: "Legacy", Members: []string{"z@x.com"}}))

	t.Run("direct members first, then groups in order, globally de-duplicated", func(t *testing.T) {
		rule := &models.AssignmentRule{
			Users:         []string{"a@x.com", "b@x.com"},
			DynamicGroups: []string{"tier1", "tier2"},
		}
		assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}, BuildPool(ctx, resolver, rule))
	})

	t.Run("legacy group ignored when pool is non-empty", func(t *testing.T) {
		rule := &models.AssignmentRule{Users: []string{"a@x.com"}, LegacyGroup: "legacy"}
		assert.Equal(t, []string{"a@x.com"}, BuildPool(ctx, resolver, rule))
	})

	t.Run("legacy group used when pool is empty", func(t *testing.T) {
		rule := &models.AssignmentRule{LegacyGroup: "legacy"}
		assert.Equal(t, []string{"z@x.com"}, BuildPool(ctx, resolver, rule))
	})

	t.Run("all sources empty is terminal, not an error", func(t *testing.T) {
		rule := &models.AssignmentRule{DynamicGroups: []string{"deleted"}}
		assert.Empty(t, BuildPool(ctx, resolver, rule))
	})
}
