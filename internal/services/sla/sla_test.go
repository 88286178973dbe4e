package sla

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

func seedPolicy(slas *repository.MemorySLARepository) {
	slas.Seed(&models.SLAPolicy{
		ID:      "default",
		Name:    "Default",
		Enabled: true,
		Priorities: []models.SLAPriorityRule{
			{Priority: "High", FirstResponseTime: 60, ResolutionTime: 240},
			{Priority: "Low", FirstResponseTime: 480, ResolutionTime: 2880},
		},
	})
}

func TestRestartResolution(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("sets deadline from priority allowance", func(t *testing.T) {
		slas := repository.NewMemorySLARepository()
		seedPolicy(slas)
		r := NewRestarter(slas, nil, nil)

		ticket := &models.Ticket{ID: "T-1", SLAID: "default", Priority: "High"}
		r.RestartResolution(ctx, ticket, now)

		require.NotNil(t, ticket.ResolutionBy)
		assert.Equal(t, now.Add(4*time.Hour), *ticket.ResolutionBy)
		assert.Equal(t, models.AgreementResolutionDue, ticket.AgreementStatus)
		assert.Nil(t, ticket.ResolutionDate)
	})

	t.Run("unknown priority leaves the ticket untouched", func(t *testing.T) {
		slas := repository.NewMemorySLARepository()
		seedPolicy(slas)
		r := NewRestarter(slas, nil, nil)

		ticket := &models.Ticket{ID: "T-1", SLAID: "default", Priority: "Whatever"}
		r.RestartResolution(ctx, ticket, now)
		assert.Nil(t, ticket.ResolutionBy)
		assert.Empty(t, ticket.AgreementStatus)
	})

	t.Run("missing sla is swallowed", func(t *testing.T) {
		slas := repository.NewMemorySLARepository()
		r := NewRestarter(slas, nil, nil)

		ticket := &models.Ticket{ID: "T-1", SLAID: "gone", Priority: "High"}
		r.RestartResolution(ctx, ticket, now)
		assert.Nil(t, ticket.ResolutionBy)
	})

	t.Run("no sla on the ticket is a no-op", func(t *testing.T) {
		r := NewRestarter(repository.NewMemorySLARepository(), nil, nil)
		ticket := &models.Ticket{ID: "T-1", Priority: "High"}
		r.RestartResolution(ctx, ticket, now)
		assert.Nil(t, ticket.ResolutionBy)
	})
}

func TestBusinessCalendar(t *testing.T) {
	t.Run("nil calendar is plain addition", func(t *testing.T) {
		var c *BusinessCalendar
		from := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, from.Add(90*time.Minute), c.AddWorkingMinutes(from, 90))
	})

	t.Run("working hours roll over to the next workday", func(t *testing.T) {
		c, err := NewBusinessCalendar(&Schedule{
			Workdays: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
			Start:    "09:00",
			End:      "17:00",
		})
		require.NoError(t, err)

		// Friday 16:00 + 2 working hours lands Monday 10:00.
		from := time.Date(2026, 3, 13, 16, 0, 0, 0, time.UTC)
		got := c.AddWorkingMinutes(from, 120)
		assert.Equal(t, time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("bad schedule values are rejected", func(t *testing.T) {
		_, err := NewBusinessCalendar(&Schedule{Workdays: []string{"Funday"}})
		assert.Error(t, err)

		_, err = NewBusinessCalendar(&Schedule{Start: "17:00", End: "09:00"})
		assert.Error(t, err)

		_, err = NewBusinessCalendar(&Schedule{Holidays: []string{"not-a-date"}})
		assert.Error(t, err)
	})
}

func TestMonitorSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tickets := repository.NewMemoryTicketRepository()
	tickets.Seed(&models.Ticket{ID: "late", Status: models.StatusOpen, AgreementStatus: models.AgreementResolutionDue, ResolutionBy: &past})
	tickets.Seed(&models.Ticket{ID: "on-track", Status: models.StatusOpen, AgreementStatus: models.AgreementResolutionDue, ResolutionBy: &future})
	tickets.Seed(&models.Ticket{ID: "done", Status: models.StatusResolved, AgreementStatus: models.AgreementFulfilled, ResolutionBy: &past})

	m := NewMonitor(tickets, nil)
	assert.Equal(t, 1, m.Sweep(ctx, now))

	late, err := tickets.Get(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, models.AgreementResolutionOverdue, late.AgreementStatus)

	onTrack, err := tickets.Get(ctx, "on-track")
	require.NoError(t, err)
	assert.Equal(t, models.AgreementResolutionDue, onTrack.AgreementStatus)

	// Second sweep finds nothing new.
	assert.Equal(t, 0, m.Sweep(ctx, now))
}
