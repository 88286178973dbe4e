package resolution

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/notifications"
	"github.com/godesk-io/godesk-ce/internal/repository"
	"github.com/godesk-io/godesk-ce/internal/services/sla"
)

// Workflow drives the closure lifecycle: an agent requests closure, the
// customer confirms or declines, and either side can reopen.
type Workflow struct {
	tickets   repository.TicketRepository
	teams     repository.TeamRepository
	restarter *sla.Restarter
	notify    *notifications.Dispatcher
	logger    *log.Logger
}

// NewWorkflow wires the closure workflow. teams, restarter and notify may
// be nil.
func NewWorkflow(
	tickets repository.TicketRepository,
	teams repository.TeamRepository,
	restarter *sla.Restarter,
	notify *notifications.Dispatcher,
	logger *log.Logger,
) *Workflow {
	if logger == nil {
		logger = log.Default()
	}
	return &Workflow{
		tickets:   tickets,
		teams:     teams,
		restarter: restarter,
		notify:    notify,
		logger:    logger,
	}
}

// RequestClosure puts the ticket into Pending Closure, waiting for the
// customer to confirm or decline.
func (w *Workflow) RequestClosure(ctx context.Context, actor models.Actor, ticketID, comment string) error {
	ticket, err := w.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if !w.canManage(ctx, actor, ticket) {
		return fmt.Errorf("request closure: %w", models.ErrPermissionDenied)
	}
	if !ticket.CanTransition(models.StatusPendingClosure) {
		return models.NewValidationError("status", fmt.Sprintf("cannot request closure of a %s ticket", ticket.Status))
	}

	ticket.Status = models.StatusPendingClosure
	if err := w.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}

	if strings.TrimSpace(comment) != "" {
		w.comment(ctx, ticketID, actor.Email, comment)
	}
	w.record(ctx, ticketID, actor.Email, "requested ticket closure")
	w.notify.Notify(notifications.Event{
		Kind:     "ticket.closure_requested",
		TicketID: ticketID,
		Actor:    actor.Email,
	}, recipients(ticket), "Closure requested for "+ticket.Subject, comment)
	return nil
}

// Close finishes the ticket. Customers confirm a pending closure; admins
// and the agents working the ticket may close directly.
func (w *Workflow) Close(ctx context.Context, actor models.Actor, ticketID string) error {
	ticket, err := w.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if !canJudge(actor, ticket) && !w.canManage(ctx, actor, ticket) {
		return fmt.Errorf("close ticket: %w", models.ErrPermissionDenied)
	}
	if !ticket.CanTransition(models.StatusClosed) {
		return models.NewValidationError("status", fmt.Sprintf("cannot close a %s ticket", ticket.Status))
	}

	now := time.Now().UTC()
	ticket.Status = models.StatusClosed
	if ticket.ResolutionDate == nil {
		ticket.ResolutionDate = &now
	}
	if err := w.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}

	w.record(ctx, ticketID, actor.Email, "closed the ticket")
	w.notify.Notify(notifications.Event{
		Kind:     "ticket.closed",
		TicketID: ticketID,
		Actor:    actor.Email,
	}, recipients(ticket), "Ticket closed: "+ticket.Subject, "")
	return nil
}

// DeclineClosure sends a Pending Closure ticket back to the agents.
func (w *Workflow) DeclineClosure(ctx context.Context, actor models.Actor, ticketID, comment string) error {
	ticket, err := w.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if !canJudge(actor, ticket) {
		return fmt.Errorf("decline closure: %w", models.ErrPermissionDenied)
	}
	if ticket.Status != models.StatusPendingClosure {
		return models.NewValidationError("status", "ticket is not pending closure")
	}

	ticket.Status = models.StatusReplied
	if err := w.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}

	if strings.TrimSpace(comment) != "" {
		w.comment(ctx, ticketID, actor.Email, comment)
	}
	w.record(ctx, ticketID, actor.Email, "declined ticket closure")
	w.notify.Notify(notifications.Event{
		Kind:     "ticket.closure_declined",
		TicketID: ticketID,
		Actor:    actor.Email,
		Message:  comment,
	}, ticket.Assignees, "Closure declined for "+ticket.Subject, comment)
	return nil
}

// Reopen brings a resolved or closed ticket back and restarts its
// resolution deadline.
func (w *Workflow) Reopen(ctx context.Context, actor models.Actor, ticketID, comment string) error {
	ticket, err := w.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if !canJudge(actor, ticket) && !w.canManage(ctx, actor, ticket) {
		return fmt.Errorf("reopen ticket: %w", models.ErrPermissionDenied)
	}
	if !ticket.CanTransition(models.StatusReopened) {
		return models.NewValidationError("status", fmt.Sprintf("cannot reopen a %s ticket", ticket.Status))
	}

	now := time.Now().UTC()
	ticket.Status = models.StatusReopened
	ticket.ResolutionSubmitted = false
	ticket.ResolutionSubmittedOn = nil
	ticket.ResolutionDate = nil
	if w.restarter != nil {
		w.restarter.RestartResolution(ctx, ticket, now)
	}
	if err := w.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}

	if strings.TrimSpace(comment) != "" {
		w.comment(ctx, ticketID, actor.Email, comment)
	}
	w.record(ctx, ticketID, actor.Email, "reopened the ticket")
	w.notify.Notify(notifications.Event{
		Kind:     "ticket.reopened",
		TicketID: ticketID,
		Actor:    actor.Email,
		Message:  comment,
	}, ticket.Assignees, "Ticket reopened: "+ticket.Subject, comment)
	return nil
}

// Permissions describes what the actor may do to a ticket right now. The
// UI uses this to decide which workflow buttons to show.
type Permissions struct {
	CanSubmitResolution bool `json:"can_submit_resolution"`
	CanJudgeResolution  bool `json:"can_judge_resolution"`
	CanRequestClosure   bool `json:"can_request_closure"`
	CanClose            bool `json:"can_close"`
	CanReopen           bool `json:"can_reopen"`
}

// PermissionsFor computes the actor's capabilities on the ticket.
func (w *Workflow) PermissionsFor(ctx context.Context, actor models.Actor, ticket *models.Ticket) Permissions {
	manage := w.canManage(ctx, actor, ticket)
	judge := canJudge(actor, ticket)
	return Permissions{
		CanSubmitResolution: actor.IsAgent() && ticket.Status != models.StatusClosed,
		CanJudgeResolution:  judge && ticket.ResolutionEverSubmitted && ticket.Status == models.StatusResolved,
		CanRequestClosure:   manage && ticket.CanTransition(models.StatusPendingClosure),
		CanClose:            (judge || manage) && ticket.CanTransition(models.StatusClosed),
		CanReopen:           (judge || manage) && ticket.CanTransition(models.StatusReopened),
	}
}

// canManage reports whether the actor works this ticket: administrators,
// agent managers, assigned agents, and members of the ticket's team.
func (w *Workflow) canManage(ctx context.Context, actor models.Actor, ticket *models.Ticket) bool {
	if actor.IsAdmin() || actor.HasRole(models.RoleAgentManager) {
		return true
	}
	if !actor.IsAgent() {
		return false
	}
	if ticket.IsAssignedTo(actor.Email) {
		return true
	}
	if w.teams == nil || ticket.TeamID == "" {
		return false
	}
	members, err := w.teams.Members(ctx, ticket.TeamID)
	if err != nil {
		w.logger.Printf("team lookup for %s failed: %v", ticket.TeamID, err)
		return false
	}
	for _, m := range members {
		if m == actor.Email {
			return true
		}
	}
	return false
}

func (w *Workflow) record(ctx context.Context, ticketID, actor, message string) {
	err := w.tickets.AddActivity(ctx, &models.TicketActivity{
		TicketID: ticketID,
		Actor:    actor,
		Message:  message,
	})
	if err != nil {
		w.logger.Printf("record activity on ticket %s failed: %v", ticketID, err)
	}
}

func (w *Workflow) comment(ctx context.Context, ticketID, actor, content string) {
	err := w.tickets.AddComment(ctx, &models.TicketComment{
		TicketID:    ticketID,
		CommentedBy: actor,
		Content:     content,
	})
	if err != nil {
		w.logger.Printf("record comment on ticket %s failed: %v", ticketID, err)
	}
}
