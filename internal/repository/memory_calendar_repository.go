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

// MemoryCalendarRepository is an in-memory CalendarRepository.
type MemoryCalendarRepository struct {
	mu       sync.RWMutex
	holidays map[string]*models.Holiday
}

// NewMemoryCalendarRepository creates an empty in-memory holiday store.
func NewMemoryCalendarRepository() *MemoryCalendarRepository {
	return &MemoryCalendarRepository{holidays: make(map[string]*models.Holiday)}
}

func (r *MemoryCalendarRepository) Get(ctx context.Context, id string) (*models.Holiday, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.holidays[id]
	if !ok {
		return nil, fmt.Errorf("holiday %s: %w", id, models.ErrNotFound)
	}
	out := *h
	return &out, nil
}

func (r *MemoryCalendarRepository) HolidaysOn(ctx context.Context, date time.Time) ([]models.Holiday, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	y, m, d := date.Date()
	var out []models.Holiday
	for _, h := range r.holidays {
		hy, hm, hd := h.Date.Date()
		if hy == y && hm == m && hd == d {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (r *MemoryCalendarRepository) List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Holiday, 0, len(r.holidays))
	for _, h := range r.holidays {
		if from != nil && h.Date.Before(*from) {
			continue
		}
		if to != nil && h.Date.After(*to) {
			continue
		}
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *MemoryCalendarRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	stored := *holiday
	r.holidays[holiday.ID] = &stored
	return nil
}

func (r *MemoryCalendarRepository) Update(ctx context.Context, holiday *models.Holiday) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holidays[holiday.ID]; !ok {
		return fmt.Errorf("holiday %s: %w", holiday.ID, models.ErrNotFound)
	}
	stored := *holiday
	r.holidays[holiday.ID] = &stored
	return nil
}

func (r *MemoryCalendarRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holidays[id]; !ok {
		return fmt.Errorf("holiday %s: %w", id, models.ErrNotFound)
	}
	delete(r.holidays, id)
	return nil
}

// MemoryGroupRepository is an in-memory GroupRepository.
type MemoryGroupRepository struct {
	mu     sync.RWMutex
	groups map[string]*models.DynamicGroup
}

// NewMemoryGroupRepository creates an empty in-memory group store.
func NewMemoryGroupRepository() *MemoryGroupRepository {
	return &MemoryGroupRepository{groups: make(map[string]*models.DynamicGroup)}
}

func (r *MemoryGroupRepository) Get(ctx context.Context, id string) (*models.DynamicGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, fmt.Errorf("dynamic group %s: %w", id, models.ErrNotFound)
	}
	out := *g
	out.Members = append([]string(nil), g.Members...)
	return &out, nil
}

func (r *MemoryGroupRepository) List(ctx context.Context) ([]models.DynamicGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.DynamicGroup, 0, len(r.groups))
	for _, g := range r.groups {
		cp := *g
		cp.Members = append([]string(nil), g.Members...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryGroupRepository) Save(ctx context.Context, group *models.DynamicGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group.ID == "" {
		group.ID = uuid.NewString()
		group.CreatedAt = time.Now()
	}
	stored := *group
	stored.Members = append([]string(nil), group.Members...)
	r.groups[group.ID] = &stored
	return nil
}
