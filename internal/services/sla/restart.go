package sla

import (
	"context"
	"log"
	"time"

	"github.com/godesk-io/godesk-ce/internal/metrics"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// Restarter recomputes a ticket's resolution deadline after a rejection or
// reopen. It is best-effort: every failure is logged and swallowed so SLA
// math never blocks the status transition that triggered it.
type Restarter struct {
	slas     repository.SLARepository
	calendar *BusinessCalendar
	logger   *log.Logger
}

// NewRestarter wires the restart logic. calendar may be nil for 24x7.
func NewRestarter(slas repository.SLARepository, calendar *BusinessCalendar, logger *log.Logger) *Restarter {
	if logger == nil {
		logger = log.Default()
	}
	return &Restarter{slas: slas, calendar: calendar, logger: logger}
}

// RestartResolution mutates the ticket's ResolutionBy and AgreementStatus
// in place from the priority allowance of its SLA. The caller persists the
// ticket. The ticket is left untouched when anything fails.
func (r *Restarter) RestartResolution(ctx context.Context, ticket *models.Ticket, now time.Time) {
	if ticket.SLAID == "" {
		return
	}

	policy, err := r.slas.Get(ctx, ticket.SLAID)
	if err != nil {
		r.fail(ticket, "load sla %s: %v", ticket.SLAID, err)
		return
	}
	allowance := policy.AllowanceFor(ticket.Priority)
	if allowance <= 0 {
		r.fail(ticket, "sla %s has no resolution allowance for priority %q", ticket.SLAID, ticket.Priority)
		return
	}

	due := r.calendar.AddWorkingMinutes(now, allowance)
	ticket.ResolutionBy = &due
	ticket.ResolutionDate = nil

	// A deadline already in the past should not happen, but a bad clock or
	// zero allowance must not crash the transition.
	if due.After(now) {
		ticket.AgreementStatus = models.AgreementResolutionDue
		metrics.SLARestarts.WithLabelValues("due").Inc()
	} else {
		ticket.AgreementStatus = models.AgreementResolutionOverdue
		metrics.SLARestarts.WithLabelValues("overdue").Inc()
	}
}

func (r *Restarter) fail(ticket *models.Ticket, format string, args ...interface{}) {
	r.logger.Printf("sla restart for ticket "+ticket.ID+" skipped: "+format, args...)
	metrics.SLARestarts.WithLabelValues("failed").Inc()
}
