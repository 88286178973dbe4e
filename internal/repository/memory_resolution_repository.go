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

// MemoryResolutionRepository is an in-memory ResolutionRepository. The
// optimistic version check in Insert runs under the repository lock, which
// makes it a faithful stand-in for the SQL implementation's conditional
// insert.
type MemoryResolutionRepository struct {
	mu      sync.RWMutex
	entries map[string][]*models.ResolutionHistoryEntry // ticketID -> entries
}

// NewMemoryResolutionRepository creates an empty in-memory history store.
func NewMemoryResolutionRepository() *MemoryResolutionRepository {
	return &MemoryResolutionRepository{
		entries: make(map[string][]*models.ResolutionHistoryEntry),
	}
}

func (r *MemoryResolutionRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.ResolutionHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.entries[ticketID]
	out := make([]models.ResolutionHistoryEntry, 0, len(list))
	for _, e := range list {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (r *MemoryResolutionRepository) Current(ctx context.Context, ticketID string) (*models.ResolutionHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[ticketID] {
		if e.IsCurrent {
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryResolutionRepository) ByVersion(ctx context.Context, ticketID string, version int) (*models.ResolutionHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[ticketID] {
		if e.VersionNumber == version {
			out := *e
			return &out, nil
		}
	}
	return nil, fmt.Errorf("resolution version %d for ticket %s: %w", version, ticketID, models.ErrNotFound)
}

func (r *MemoryResolutionRepository) MaxVersion(ctx context.Context, ticketID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxVersionLocked(ticketID), nil
}

func (r *MemoryResolutionRepository) maxVersionLocked(ticketID string) int {
	max := 0
	for _, e := range r.entries[ticketID] {
		if e.VersionNumber > max {
			max = e.VersionNumber
		}
	}
	return max
}

func (r *MemoryResolutionRepository) Insert(ctx context.Context, entry *models.ResolutionHistoryEntry, expectedMax int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if got := r.maxVersionLocked(entry.TicketID); got != expectedMax {
		return fmt.Errorf("resolution history for ticket %s moved from version %d to %d: %w",
			entry.TicketID, expectedMax, got, models.ErrConflict)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SubmittedOn.IsZero() {
		entry.SubmittedOn = time.Now()
	}
	if entry.VersionNumber == 0 {
		entry.VersionNumber = expectedMax + 1
	}
	stored := *entry
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], &stored)
	return nil
}

func (r *MemoryResolutionRepository) Update(ctx context.Context, entry *models.ResolutionHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries[entry.TicketID] {
		if e.ID == entry.ID {
			stored := *entry
			r.entries[entry.TicketID][i] = &stored
			return nil
		}
	}
	return fmt.Errorf("resolution entry %s: %w", entry.ID, models.ErrNotFound)
}

func (r *MemoryResolutionRepository) ClearCurrent(ctx context.Context, ticketID, exceptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[ticketID] {
		if e.ID != exceptID {
			e.IsCurrent = false
		}
	}
	return nil
}

func (r *MemoryResolutionRepository) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[ticketID]), nil
}
