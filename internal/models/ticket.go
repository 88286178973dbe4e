package models

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen           TicketStatus = "Open"
	StatusReplied        TicketStatus = "Replied"
	StatusResolved       TicketStatus = "Resolved"
	StatusClosed         TicketStatus = "Closed"
	StatusReopened       TicketStatus = "Reopened"
	StatusPendingClosure TicketStatus = "Pending Closure"
)

// AgreementStatus tracks where the ticket stands against its SLA.
type AgreementStatus string

const (
	AgreementFirstResponseDue AgreementStatus = "First Response Due"
	AgreementResolutionDue    AgreementStatus = "Resolution Due"
	AgreementResolutionOverdue AgreementStatus = "Resolution Overdue"
	AgreementFulfilled        AgreementStatus = "Fulfilled"
	AgreementFailed           AgreementStatus = "Failed"
)

// Ticket carries the fields the assignment and resolution engines read and
// write. Creation, conversation threads and custom fields are owned by the
// surrounding application.
type Ticket struct {
	ID       string       `json:"id"`
	Subject  string       `json:"subject"`
	Description string    `json:"description,omitempty"`
	Status   TicketStatus `json:"status"`
	Priority string       `json:"priority"`
	TeamID   string       `json:"team_id,omitempty"`

	RaisedBy string `json:"raised_by"`
	Contact  string `json:"contact,omitempty"`

	// Assignees is the denormalized list of currently assigned users,
	// kept in sync with open work items.
	Assignees []string `json:"assignees"`

	// Resolution state. ResolutionDetails holds the text of the current
	// version; the full history lives in ResolutionHistoryEntry rows.
	ResolutionDetails        string     `json:"resolution_details,omitempty"`
	ResolutionSubmitted      bool       `json:"resolution_submitted"`
	ResolutionSubmittedOn    *time.Time `json:"resolution_submitted_on,omitempty"`
	ResolutionEverSubmitted  bool       `json:"resolution_ever_submitted"`
	CurrentResolutionVersion int        `json:"current_resolution_version"`

	// SLA fields.
	SLAID            string          `json:"sla_id,omitempty"`
	ResponseBy       *time.Time      `json:"response_by,omitempty"`
	ResolutionBy     *time.Time      `json:"resolution_by,omitempty"`
	AgreementStatus  AgreementStatus `json:"agreement_status,omitempty"`
	FirstRespondedOn *time.Time      `json:"first_responded_on,omitempty"`
	ResolutionDate   *time.Time      `json:"resolution_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAssignedTo reports whether the user is among the ticket's assignees.
func (t *Ticket) IsAssignedTo(user string) bool {
	for _, a := range t.Assignees {
		if a == user {
			return true
		}
	}
	return false
}

// statusTransitions enumerates the permitted lifecycle moves. Reopening is
// always available from the terminal-ish states; Pending Closure can be
// requested from any non-closed state and resolves to Closed or back to
// Replied.
var statusTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:           {StatusReplied, StatusResolved, StatusClosed, StatusPendingClosure},
	StatusReplied:        {StatusOpen, StatusResolved, StatusClosed, StatusPendingClosure},
	StatusResolved:       {StatusReplied, StatusClosed, StatusReopened, StatusPendingClosure},
	StatusClosed:         {StatusReopened},
	StatusReopened:       {StatusReplied, StatusResolved, StatusClosed, StatusPendingClosure},
	StatusPendingClosure: {StatusClosed, StatusReplied, StatusReopened},
}

// CanTransition reports whether moving from the ticket's current status to
// next is a permitted lifecycle transition.
func (t *Ticket) CanTransition(next TicketStatus) bool {
	for _, s := range statusTransitions[t.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TicketActivity is one audit line on a ticket (resolution rejected,
// reopened, closure requested and so on).
type TicketActivity struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Actor     string    `json:"actor,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketComment is a visible comment on a ticket, recorded by the closure
// workflow alongside status changes.
type TicketComment struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	CommentedBy string    `json:"commented_by"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// SLAPolicy is the per-priority allowance table a ticket's SLA refers to.
// Times are minutes of working time.
type SLAPolicy struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Enabled    bool              `json:"enabled"`
	Default    bool              `json:"default"`
	Condition  string            `json:"condition,omitempty"`
	Calendar   string            `json:"calendar,omitempty"`
	Priorities []SLAPriorityRule `json:"priorities"`
}

// SLAPriorityRule is one row of the allowance table.
type SLAPriorityRule struct {
	Priority          string `json:"priority"`
	FirstResponseTime int    `json:"first_response_time"` // minutes
	ResolutionTime    int    `json:"resolution_time"`     // minutes
}

// AllowanceFor returns the resolution allowance in minutes for a priority,
// or 0 when the SLA has no row for it.
func (s *SLAPolicy) AllowanceFor(priority string) int {
	for _, p := range s.Priorities {
		if p.Priority == priority {
			return p.ResolutionTime
		}
	}
	return 0
}
