// Package resolution maintains the append-only version history of ticket
// resolutions and the closure workflow built on top of it.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/godesk-io/godesk-ce/internal/metrics"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/notifications"
	"github.com/godesk-io/godesk-ce/internal/repository"
	"github.com/godesk-io/godesk-ce/internal/services/sla"
	"github.com/godesk-io/godesk-ce/internal/utils"
)

// Ledger owns resolution versioning. Every submission appends a version;
// entries are never deleted and at most one entry per ticket is current.
type Ledger struct {
	tickets   repository.TicketRepository
	history   repository.ResolutionRepository
	restarter *sla.Restarter
	sanitizer *utils.HTMLSanitizer
	notify    *notifications.Dispatcher
	logger    *log.Logger
}

// NewLedger wires the ledger. restarter and notify may be nil.
func NewLedger(
	tickets repository.TicketRepository,
	history repository.ResolutionRepository,
	restarter *sla.Restarter,
	notify *notifications.Dispatcher,
	logger *log.Logger,
) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{
		tickets:   tickets,
		history:   history,
		restarter: restarter,
		sanitizer: utils.NewHTMLSanitizer(),
		notify:    notify,
		logger:    logger,
	}
}

// Submit records a new resolution version and moves the ticket to Resolved.
//
// Submitting content identical to the current pending version is an
// idempotent no-op: no version is appended, only the ticket's submission
// timestamp refreshes. A pre-history resolutionDetails value is backfilled
// as a non-current version so no text is ever lost.
func (l *Ledger) Submit(ctx context.Context, actor models.Actor, ticketID, content string) (*models.ResolutionHistoryEntry, error) {
	if !actor.IsAgent() {
		return nil, fmt.Errorf("submit resolution: %w", models.ErrPermissionDenied)
	}
	if strings.TrimSpace(utils.StripHTML(content)) == "" {
		return nil, models.NewValidationError("content", "resolution content cannot be empty")
	}

	ticket, err := l.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}

	clean := l.clean(content)
	now := time.Now().UTC()

	current, err := l.history.Current(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load current resolution: %w", err)
	}
	if current != nil && current.Content == clean && current.Satisfaction == models.SatisfactionPending {
		ticket.ResolutionSubmittedOn = &now
		if err := l.tickets.Update(ctx, ticket); err != nil {
			return nil, fmt.Errorf("refresh submission timestamp: %w", err)
		}
		metrics.ResolutionSubmissions.WithLabelValues("idempotent_noop").Inc()
		return current, nil
	}

	maxVersion, err := l.history.MaxVersion(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("read version counter: %w", err)
	}

	// Tickets resolved before versioning existed carry text only on the
	// ticket row. Preserve it as version 1 before the new version lands.
	if maxVersion == 0 && ticket.ResolutionDetails != "" && ticket.ResolutionDetails != clean {
		backfill := &models.ResolutionHistoryEntry{
			TicketID:     ticketID,
			Content:      ticket.ResolutionDetails,
			SubmittedBy:  actor.Email,
			SubmittedOn:  now,
			Satisfaction: models.SatisfactionPending,
			IsCurrent:    false,
		}
		if err := l.history.Insert(ctx, backfill, 0); err != nil {
			return nil, fmt.Errorf("backfill pre-history resolution: %w", err)
		}
		maxVersion = backfill.VersionNumber
	}

	entry := &models.ResolutionHistoryEntry{
		TicketID:     ticketID,
		Content:      clean,
		SubmittedBy:  actor.Email,
		SubmittedOn:  now,
		Satisfaction: models.SatisfactionPending,
		IsCurrent:    true,
	}
	if err := l.history.Insert(ctx, entry, maxVersion); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("concurrent resolution submission on ticket %s: %w", ticketID, err)
		}
		return nil, fmt.Errorf("append resolution version: %w", err)
	}
	if err := l.history.ClearCurrent(ctx, ticketID, entry.ID); err != nil {
		return nil, fmt.Errorf("demote previous version: %w", err)
	}

	ticket.ResolutionDetails = clean
	ticket.ResolutionSubmitted = true
	ticket.ResolutionSubmittedOn = &now
	ticket.ResolutionEverSubmitted = true
	ticket.CurrentResolutionVersion = entry.VersionNumber
	ticket.Status = models.StatusResolved
	if err := l.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("sync ticket resolution fields: %w", err)
	}

	l.record(ctx, ticketID, actor.Email, fmt.Sprintf("submitted resolution version %d", entry.VersionNumber))
	metrics.ResolutionSubmissions.WithLabelValues("submit").Inc()
	l.notify.Notify(notifications.Event{
		Kind:     "ticket.resolution_submitted",
		TicketID: ticketID,
		Actor:    actor.Email,
	}, recipients(ticket), "Resolution submitted for "+ticket.Subject, clean)

	return entry, nil
}

// Reject marks the current resolution not satisfied, reopens work on the
// ticket and restarts its resolution deadline.
func (l *Ledger) Reject(ctx context.Context, actor models.Actor, ticketID, reason string) error {
	ticket, err := l.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if !canJudge(actor, ticket) {
		return fmt.Errorf("reject resolution: %w", models.ErrPermissionDenied)
	}
	if ticket.Status != models.StatusResolved && ticket.Status != models.StatusClosed {
		return models.NewValidationError("status", "only a resolved or closed ticket can have its resolution rejected")
	}
	if !ticket.ResolutionEverSubmitted {
		return models.NewValidationError("status", "ticket has no submitted resolution")
	}
	if strings.TrimSpace(reason) == "" {
		return models.NewValidationError("reason", "rejection reason cannot be empty")
	}

	current, err := l.history.Current(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load current resolution: %w", err)
	}
	if current == nil {
		return models.NewValidationError("status", "ticket has no current resolution version")
	}

	now := time.Now().UTC()
	current.Satisfaction = models.SatisfactionNotSatisfied
	current.SatisfactionBy = actor.Email
	current.SatisfactionOn = &now
	current.RejectionReason = reason
	if err := l.history.Update(ctx, current); err != nil {
		return fmt.Errorf("update resolution version %d: %w", current.VersionNumber, err)
	}

	ticket.Status = models.StatusReplied
	ticket.ResolutionSubmitted = false
	ticket.ResolutionSubmittedOn = nil
	ticket.ResolutionDetails = ""
	if l.restarter != nil {
		l.restarter.RestartResolution(ctx, ticket, now)
	}
	if err := l.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("sync ticket after rejection: %w", err)
	}

	l.record(ctx, ticketID, actor.Email, fmt.Sprintf("rejected resolution version %d: %s", current.VersionNumber, reason))
	metrics.ResolutionSubmissions.WithLabelValues("reject").Inc()
	l.notify.Notify(notifications.Event{
		Kind:     "ticket.resolution_rejected",
		TicketID: ticketID,
		Actor:    actor.Email,
		Message:  reason,
	}, ticket.Assignees, "Resolution rejected for "+ticket.Subject, reason)
	return nil
}

// Satisfy marks the current resolution accepted. The ticket stays Resolved.
func (l *Ledger) Satisfy(ctx context.Context, actor models.Actor, ticketID string) error {
	ticket, err := l.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if !canJudge(actor, ticket) {
		return fmt.Errorf("accept resolution: %w", models.ErrPermissionDenied)
	}
	if ticket.Status != models.StatusResolved {
		return models.NewValidationError("status", "only a resolved ticket can have its resolution accepted")
	}
	if !ticket.ResolutionEverSubmitted {
		return models.NewValidationError("status", "ticket has no submitted resolution")
	}

	current, err := l.history.Current(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load current resolution: %w", err)
	}
	if current == nil {
		return models.NewValidationError("status", "ticket has no current resolution version")
	}

	now := time.Now().UTC()
	current.Satisfaction = models.SatisfactionSatisfied
	current.SatisfactionBy = actor.Email
	current.SatisfactionOn = &now
	if err := l.history.Update(ctx, current); err != nil {
		return fmt.Errorf("update resolution version %d: %w", current.VersionNumber, err)
	}

	l.record(ctx, ticketID, actor.Email, fmt.Sprintf("accepted resolution version %d", current.VersionNumber))
	metrics.ResolutionSubmissions.WithLabelValues("satisfy").Inc()
	l.notify.Notify(notifications.Event{
		Kind:     "ticket.resolution_accepted",
		TicketID: ticketID,
		Actor:    actor.Email,
	}, ticket.Assignees, "Resolution accepted for "+ticket.Subject, "")
	return nil
}

// History returns all resolution versions of a ticket, newest first.
func (l *Ledger) History(ctx context.Context, ticketID string) ([]models.ResolutionHistoryEntry, error) {
	exists, err := l.tickets.Exists(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("check ticket %s: %w", ticketID, err)
	}
	if !exists {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, models.ErrNotFound)
	}
	return l.history.ListByTicket(ctx, ticketID)
}

// Compare returns two versions of a ticket's resolution for diffing.
func (l *Ledger) Compare(ctx context.Context, ticketID string, a, b int) (*models.ResolutionHistoryEntry, *models.ResolutionHistoryEntry, error) {
	if a <= 0 || b <= 0 {
		return nil, nil, models.NewValidationError("versions", "both comparison versions are required")
	}
	first, err := l.history.ByVersion(ctx, ticketID, a)
	if err != nil {
		return nil, nil, fmt.Errorf("load version %d: %w", a, err)
	}
	second, err := l.history.ByVersion(ctx, ticketID, b)
	if err != nil {
		return nil, nil, fmt.Errorf("load version %d: %w", b, err)
	}
	return first, second, nil
}

func (l *Ledger) clean(content string) string {
	if !utils.IsHTML(content) {
		content = utils.MarkdownToHTML(content)
	}
	return l.sanitizer.Sanitize(content)
}

func (l *Ledger) record(ctx context.Context, ticketID, actor, message string) {
	err := l.tickets.AddActivity(ctx, &models.TicketActivity{
		TicketID: ticketID,
		Actor:    actor,
		Message:  message,
	})
	if err != nil {
		l.logger.Printf("record activity on ticket %s failed: %v", ticketID, err)
	}
}

// canJudge reports whether the actor may accept or reject a resolution:
// the raiser, the named contact, or an administrator.
func canJudge(actor models.Actor, ticket *models.Ticket) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Email != "" && (actor.Email == ticket.RaisedBy || actor.Email == ticket.Contact)
}

func recipients(ticket *models.Ticket) []string {
	var out []string
	if ticket.RaisedBy != "" {
		out = append(out, ticket.RaisedBy)
	}
	if ticket.Contact != "" && ticket.Contact != ticket.RaisedBy {
		out = append(out, ticket.Contact)
	}
	return out
}
