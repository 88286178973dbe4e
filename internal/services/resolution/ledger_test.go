package resolution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
	"github.com/godesk-io/godesk-ce/internal/services/sla"
)

var (
	agent    = models.Actor{Email: "agent@x.com", Roles: []string{models.RoleAgent}}
	customer = models.Actor{Email: "customer@x.com", Roles: []string{models.RoleCustomer}}
	stranger = models.Actor{Email: "stranger@x.com", Roles: []string{models.RoleCustomer}}
)

type ledgerFixture struct {
	tickets *repository.MemoryTicketRepository
	history *repository.MemoryResolutionRepository
	slas    *repository.MemorySLARepository
	ledger  *Ledger
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		tickets: repository.NewMemoryTicketRepository(),
		history: repository.NewMemoryResolutionRepository(),
		slas:    repository.NewMemorySLARepository(),
	}
	restarter := sla.NewRestarter(f.slas, nil, nil)
	f.ledger = NewLedger(f.tickets, f.history, restarter, nil, nil)
	return f
}

func (f *ledgerFixture) seedTicket(id string, status models.TicketStatus) {
	f.tickets.Seed(&models.Ticket{
		ID:       id,
		Subject:  "Cannot log in",
		Status:   status,
		RaisedBy: "customer@x.com",
	})
}

func (f *ledgerFixture) currentEntry(t *testing.T, ticketID string) *models.ResolutionHistoryEntry {
	t.Helper()
	current, err := f.history.Current(context.Background(), ticketID)
	require.NoError(t, err)
	require.NotNil(t, current)
	return current
}

func countCurrent(t *testing.T, f *ledgerFixture, ticketID string) int {
	t.Helper()
	entries, err := f.history.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.IsCurrent {
			n++
		}
	}
	return n
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("first submission creates version 1 and resolves the ticket", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-1", models.StatusOpen)

		entry, err := f.ledger.Submit(ctx, agent, "T-1", "<p>Reset the password</p>")
		require.NoError(t, err)
		assert.Equal(t, 1, entry.VersionNumber)
		assert.True(t, entry.IsCurrent)
		assert.Equal(t, models.SatisfactionPending, entry.Satisfaction)
		assert.Equal(t, "agent@x.com", entry.SubmittedBy)

		ticket, err := f.tickets.Get(ctx, "T-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusResolved, ticket.Status)
		assert.True(t, ticket.ResolutionSubmitted)
		assert.True(t, ticket.ResolutionEverSubmitted)
		assert.Equal(t, 1, ticket.CurrentResolutionVersion)
		assert.NotNil(t, ticket.ResolutionSubmittedOn)
	})

	t.Run("identical pending content is an idempotent no-op", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-1", models.StatusOpen)

		first, err := f.ledger.Submit(ctx, agent, "T-1", "<p>Reset the password</p>")
		require.NoError(t, err)
		second, err := f.ledger.Submit(ctx, agent, "T-1", "<p>Reset the password</p>")
		require.NoError(t, err)

		assert.Equal(t, first.VersionNumber, second.VersionNumber)
		count, err := f.history.CountByTicket(ctx, "T-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("changed content appends a new current version", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-1", models.StatusOpen)

		_, err := f.ledger.Submit(ctx, agent, "T-1", "<p>First try</p>")
		require.NoError(t, err)
		entry, err := f.ledger.Submit(ctx, agent, "T-1", "<p>Second try</p>")
		require.NoError(t, err)

		assert.Equal(t, 2, entry.VersionNumber)
		assert.Equal(t, 1, countCurrent(t, f, "T-1"))
		assert.Equal(t, "<p>Second try</p>", f.currentEntry(t, "T-1").Content)
	})

	t.Run("pre-history resolution text is backfilled, not lost", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.tickets.Seed(&models.Ticket{
			ID:                "T-1",
			Subject:           "Old ticket",
			Status:            models.StatusReplied,
			RaisedBy:          "customer@x.com",
			ResolutionDetails: "<p>Legacy text</p>",
		})

		entry, err := f.ledger.Submit(ctx, agent, "T-1", "<p>New text</p>")
		require.NoError(t, err)
		assert.Equal(t, 2, entry.VersionNumber)

		legacy, err := f.history.ByVersion(ctx, "T-1", 1)
		require.NoError(t, err)
		assert.Equal(t, "<p>Legacy text</p>", legacy.Content)
		assert.False(t, legacy.IsCurrent)
		assert.Equal(t, 1, countCurrent(t, f, "T-1"))
	})

	t.Run("markdown is rendered and scripts stripped", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-1", models.StatusOpen)

		entry, err := f.ledger.Submit(ctx, agent, "T-1", "**bold** fix<script>alert(1)</script>")
		require.NoError(t, err)
		assert.Contains(t, entry.Content, "<strong>bold</strong>")
		assert.NotContains(t, entry.Content, "<script>")
	})

	t.Run("empty content is a validation error", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-1", models.StatusOpen)

		_, err := f.ledger.Submit(ctx, agent, "T-1", "  <p> </p> ")
		assert.True(t, models.IsValidation(err))
	})

	t.Run("customers cannot submit", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-1", models.StatusOpen)

		_, err := f.ledger.Submit(ctx, customer, "T-1", "<p>text</p>")
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	})
}

func TestRejectAndSatisfy(t *testing.T) {
	ctx := context.Background()

	t.Run("reject reopens work and clears submission state", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-2", models.StatusOpen)
		_, err := f.ledger.Submit(ctx, agent, "T-2", "<p>Fixed</p>")
		require.NoError(t, err)

		require.NoError(t, f.ledger.Reject(ctx, customer, "T-2", "incomplete"))

		entry := f.currentEntry(t, "T-2")
		assert.Equal(t, models.SatisfactionNotSatisfied, entry.Satisfaction)
		assert.Equal(t, "customer@x.com", entry.SatisfactionBy)
		assert.Equal(t, "incomplete", entry.RejectionReason)
		assert.NotNil(t, entry.SatisfactionOn)

		ticket, err := f.tickets.Get(ctx, "T-2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusReplied, ticket.Status)
		assert.False(t, ticket.ResolutionSubmitted)
		assert.Nil(t, ticket.ResolutionSubmittedOn)
		assert.Empty(t, ticket.ResolutionDetails)
		assert.True(t, ticket.ResolutionEverSubmitted)
	})

	t.Run("reject restarts the resolution deadline", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.slas.Seed(&models.SLAPolicy{
			ID:         "default",
			Priorities: []models.SLAPriorityRule{{Priority: "High", ResolutionTime: 120}},
		})
		f.tickets.Seed(&models.Ticket{
			ID:       "T-2",
			Subject:  "s",
			Status:   models.StatusOpen,
			RaisedBy: "customer@x.com",
			Priority: "High",
			SLAID:    "default",
		})
		_, err := f.ledger.Submit(ctx, agent, "T-2", "<p>Fixed</p>")
		require.NoError(t, err)

		require.NoError(t, f.ledger.Reject(ctx, customer, "T-2", "nope"))

		ticket, err := f.tickets.Get(ctx, "T-2")
		require.NoError(t, err)
		require.NotNil(t, ticket.ResolutionBy)
		assert.Equal(t, models.AgreementResolutionDue, ticket.AgreementStatus)
	})

	t.Run("satisfy stamps the current version and keeps the ticket resolved", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-2", models.StatusOpen)
		_, err := f.ledger.Submit(ctx, agent, "T-2", "<p>Fixed</p>")
		require.NoError(t, err)

		require.NoError(t, f.ledger.Satisfy(ctx, customer, "T-2"))

		entry := f.currentEntry(t, "T-2")
		assert.Equal(t, models.SatisfactionSatisfied, entry.Satisfaction)

		ticket, err := f.tickets.Get(ctx, "T-2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusResolved, ticket.Status)
	})

	t.Run("only the raiser, contact or an admin may judge", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-2", models.StatusOpen)
		_, err := f.ledger.Submit(ctx, agent, "T-2", "<p>Fixed</p>")
		require.NoError(t, err)

		assert.ErrorIs(t, f.ledger.Reject(ctx, stranger, "T-2", "nope"), models.ErrPermissionDenied)
		assert.ErrorIs(t, f.ledger.Satisfy(ctx, stranger, "T-2"), models.ErrPermissionDenied)
		assert.NoError(t, f.ledger.Satisfy(ctx, models.Actor{Email: "root@x.com", Roles: []string{models.RoleAdmin}}, "T-2"))
	})

	t.Run("reject requires a resolved or closed ticket", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-2", models.StatusOpen)
		err := f.ledger.Reject(ctx, customer, "T-2", "nope")
		assert.True(t, models.IsValidation(err))
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedTicket("T-2", models.StatusOpen)
		_, err := f.ledger.Submit(ctx, agent, "T-2", "<p>Fixed</p>")
		require.NoError(t, err)
		assert.True(t, models.IsValidation(f.ledger.Reject(ctx, customer, "T-2", "  ")))
	})
}

func TestVersionMonotonicity(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedTicket("T-3", models.StatusOpen)

	for i := 1; i <= 5; i++ {
		entry, err := f.ledger.Submit(ctx, agent, "T-3", fmt.Sprintf("<p>attempt %d</p>", i))
		require.NoError(t, err)
		assert.Equal(t, i, entry.VersionNumber)
		require.NoError(t, f.ledger.Reject(ctx, customer, "T-3", "try again"))
	}

	entries, err := f.history.ListByTicket(ctx, "T-3")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, 5-i, e.VersionNumber, "versions are strictly increasing and never reused")
	}
	assert.Equal(t, 1, countCurrent(t, f, "T-3"))
}

func TestSubmitRejectResubmitScenario(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedTicket("T2", models.StatusOpen)

	entry, err := f.ledger.Submit(ctx, agent, "T2", "<p>Fixed</p>")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.VersionNumber)

	require.NoError(t, f.ledger.Reject(ctx, customer, "T2", "incomplete"))
	v1, err := f.history.ByVersion(ctx, "T2", 1)
	require.NoError(t, err)
	assert.Equal(t, models.SatisfactionNotSatisfied, v1.Satisfaction)

	ticket, err := f.tickets.Get(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, ticket.Status)
	assert.Empty(t, ticket.ResolutionDetails)

	entry, err = f.ledger.Submit(ctx, agent, "T2", "<p>Fixed v2</p>")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.VersionNumber)

	ticket, err = f.tickets.Get(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, ticket.Status)

	entries, err := f.history.ListByTicket(ctx, "T2")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, countCurrent(t, f, "T2"))
}

// Two racing submissions both read the same version counter; the optimistic
// insert lets exactly one through and fails the loser with a conflict.
func TestConcurrentSubmissionRace(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedTicket("T-4", models.StatusOpen)

	const writers = 2
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.Submit(ctx, agent, "T-4", fmt.Sprintf("<p>writer %d</p>", i))
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if errors.Is(err, models.ErrConflict) {
			conflicts++
		} else {
			require.NoError(t, err)
		}
	}
	// Both may also serialize cleanly; what must never happen is a reused
	// version number or two current entries.
	entries, err := f.history.ListByTicket(ctx, "T-4")
	require.NoError(t, err)
	seen := make(map[int]bool)
	for _, e := range entries {
		assert.False(t, seen[e.VersionNumber], "version %d reused", e.VersionNumber)
		seen[e.VersionNumber] = true
	}
	assert.Equal(t, 1, countCurrent(t, f, "T-4"))
	assert.Equal(t, len(entries)+conflicts, writers)
}

func TestHistoryAndCompare(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedTicket("T-5", models.StatusOpen)

	_, err := f.ledger.Submit(ctx, agent, "T-5", "<p>one</p>")
	require.NoError(t, err)
	require.NoError(t, f.ledger.Reject(ctx, customer, "T-5", "again"))
	_, err = f.ledger.Submit(ctx, agent, "T-5", "<p>two</p>")
	require.NoError(t, err)

	t.Run("history is newest first", func(t *testing.T) {
		entries, err := f.ledger.History(ctx, "T-5")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 2, entries[0].VersionNumber)
		assert.Equal(t, 1, entries[1].VersionNumber)
	})

	t.Run("history of a missing ticket is not found", func(t *testing.T) {
		_, err := f.ledger.History(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("compare returns both versions", func(t *testing.T) {
		a, b, err := f.ledger.Compare(ctx, "T-5", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, "<p>one</p>", a.Content)
		assert.Equal(t, "<p>two</p>", b.Content)
	})

	t.Run("compare requires both versions", func(t *testing.T) {
		_, _, err := f.ledger.Compare(ctx, "T-5", 0, 2)
		assert.True(t, models.IsValidation(err))
	})
}
