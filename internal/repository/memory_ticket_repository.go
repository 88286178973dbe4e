package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/godesk-io/godesk-ce/internal/models"
)

// MemoryTicketRepository is an in-memory TicketRepository used by tests and
// DB-less deployments.
type MemoryTicketRepository struct {
	mu         sync.RWMutex
	tickets    map[string]*models.Ticket
	activities map[string][]models.TicketActivity
	comments   map[string][]models.TicketComment
}

// NewMemoryTicketRepository creates an empty in-memory ticket repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets:    make(map[string]*models.Ticket),
		activities: make(map[string][]models.TicketActivity),
		comments:   make(map[string][]models.TicketComment),
	}
}

// Seed stores a ticket directly, for test setup.
func (r *MemoryTicketRepository) Seed(ticket *models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *ticket
	r.tickets[ticket.ID] = &stored
}

func (r *MemoryTicketRepository) Get(ctx context.Context, id string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return fmt.Errorf("ticket %s: %w", ticket.ID, models.ErrNotFound)
	}
	ticket.UpdatedAt = time.Now()
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *MemoryTicketRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tickets[id]
	return ok, nil
}

func (r *MemoryTicketRepository) ListResolutionDue(ctx context.Context, before time.Time) ([]models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Ticket
	for _, t := range r.tickets {
		if t.AgreementStatus != models.AgreementResolutionDue {
			continue
		}
		if t.ResolutionBy != nil && t.ResolutionBy.Before(before) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *MemoryTicketRepository) AddActivity(ctx context.Context, activity *models.TicketActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	r.activities[activity.TicketID] = append(r.activities[activity.TicketID], *activity)
	return nil
}

func (r *MemoryTicketRepository) AddComment(ctx context.Context, comment *models.TicketComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	r.comments[comment.TicketID] = append(r.comments[comment.TicketID], *comment)
	return nil
}

func (r *MemoryTicketRepository) ListActivities(ctx context.Context, ticketID string) ([]models.TicketActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TicketActivity, len(r.activities[ticketID]))
	copy(out, r.activities[ticketID])
	return out, nil
}

// Comments returns recorded comments, for test assertions.
func (r *MemoryTicketRepository) Comments(ticketID string) []models.TicketComment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TicketComment, len(r.comments[ticketID]))
	copy(out, r.comments[ticketID])
	return out
}
