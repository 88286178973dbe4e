package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/godesk-io/godesk-ce/internal/cache"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// GroupResolver expands dynamic groups into concrete member lists.
// Membership is cached; unknown or deleted groups resolve to an empty list
// rather than an error so rules referencing stale groups keep working.
type GroupResolver struct {
	groups repository.GroupRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *log.Logger
}

// NewGroupResolver creates a resolver over the group store. cache may be
// nil to disable caching.
func NewGroupResolver(groups repository.GroupRepository, c cache.Cache, ttl time.Duration, logger *log.Logger) *GroupResolver {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &GroupResolver{groups: groups, cache: c, ttl: ttl, logger: logger}
}

// ResolveMembers returns the group's members, de-duplicated preserving
// first-seen order. Missing groups and lookup failures yield an empty list.
func (r *GroupResolver) ResolveMembers(ctx context.Context, groupID string) []string {
	if groupID == "" {
		return nil
	}

	cacheKey := "group-members:" + groupID
	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, cacheKey); ok {
			var members []string
			if err := json.Unmarshal(raw, &members); err == nil {
				return members
			}
		}
	}

	group, err := r.groups.Get(ctx, groupID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			r.logger.Printf("resolve dynamic group %s failed: %v", groupID, err)
		}
		return nil
	}

	members := dedupe(group.Members, nil)

	if r.cache != nil {
		if raw, err := json.Marshal(members); err == nil {
			r.cache.Set(ctx, cacheKey, raw, r.ttl)
		}
	}
	return members
}

// Invalidate drops the cached membership for a group.
func (r *GroupResolver) Invalidate(ctx context.Context, groupID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, "group-members:"+groupID)
	}
}

// BuildPool merges a rule's assignment sources into one ordered,
// de-duplicated candidate list: direct members first in listed order, then
// each dynamic-group reference in listed order. The legacy single-group
// field is consulted only when everything else produced no candidates. An
// empty result means the rule has no candidates; that is terminal, not an
// error.
func BuildPool(ctx context.Context, resolver *GroupResolver, rule *models.AssignmentRule) []string {
	seen := make(map[string]struct{})
	pool := dedupe(rule.Users, seen)

	for _, groupID := range rule.DynamicGroups {
		for _, member := range resolver.ResolveMembers(ctx, groupID) {
			if _, ok := seen[member]; ok {
				continue
			}
			seen[member] = struct{}{}
			pool = append(pool, member)
		}
	}

	if len(pool) == 0 && rule.LegacyGroup != "" {
		pool = resolver.ResolveMembers(ctx, rule.LegacyGroup)
	}
	return pool
}

// dedupe removes duplicates preserving first-seen order. seen may be nil
// or a shared map for cross-source de-duplication.
func dedupe(values []string, seen map[string]struct{}) []string {
	if seen == nil {
		seen = make(map[string]struct{}, len(values))
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
