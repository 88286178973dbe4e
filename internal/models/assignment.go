package models

import "time"

// AssignmentPolicy selects the strategy used to pick the next assignee.
type AssignmentPolicy string

const (
	PolicyRoundRobin    AssignmentPolicy = "Round Robin"
	PolicyLoadBalancing AssignmentPolicy = "Load Balancing"
	PolicyBasedOnField  AssignmentPolicy = "Based On Field"
)

// AssignmentRule describes how to pick a user to own a ticket. Direct
// members and dynamic-group references together form the candidate pool;
// LastUser is the round-robin cursor and is persisted so rotation survives
// across processes.
type AssignmentRule struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Disabled     bool             `json:"disabled"`
	Priority     int              `json:"priority"`
	Policy       AssignmentPolicy `json:"policy"`
	DocumentType string           `json:"document_type"` // fixed to "Ticket" in this deployment

	// Users is the ordered direct member list. Order is significant for
	// round-robin rotation.
	Users []string `json:"users"`

	// DynamicGroups references named groups whose members extend the pool,
	// in listed order. LegacyGroup is the single-group field older rules
	// used; it is consulted only when the pool is otherwise empty.
	DynamicGroups []string `json:"dynamic_groups"`
	LegacyGroup   string   `json:"legacy_group,omitempty"`

	// AssignCondition is a boolean expression evaluated against the
	// document before the rule applies. Empty means always.
	AssignCondition   string `json:"assign_condition,omitempty"`
	UnassignCondition string `json:"unassign_condition,omitempty"`

	// Field names the document field holding the assignee when Policy is
	// Based On Field.
	Field string `json:"field,omitempty"`

	// LastUser is the most recently assigned user.
	LastUser string `json:"last_user,omitempty"`

	// AssignmentDays restricts which weekdays the rule fires on. Empty
	// means every day.
	AssignmentDays []time.Weekday `json:"assignment_days,omitempty"`

	// HolidayLists names holiday calendars attached to this rule.
	HolidayLists []string `json:"holiday_lists,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesOn reports whether the rule is allowed to fire on the given date's
// weekday.
func (r *AssignmentRule) AppliesOn(date time.Time) bool {
	if len(r.AssignmentDays) == 0 {
		return true
	}
	for _, d := range r.AssignmentDays {
		if d == date.Weekday() {
			return true
		}
	}
	return false
}

// DynamicGroup is a named, resolvable set of users used as an assignment
// source. Historical data carries two membership shapes; both are mapped to
// Members at the data-access boundary so callers see one schema.
type DynamicGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	Default     bool      `json:"default"`
	Members     []string  `json:"members"` // ordered user emails
	CreatedAt   time.Time `json:"created_at"`
}

// Holiday is a single non-working day. Each linked location names a dynamic
// group; members of any linked group are excluded from assignment on the
// holiday's date. A holiday with no locations applies to everyone.
type Holiday struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	Type           string    `json:"type,omitempty"`
	RepeatNextYear bool      `json:"repeat_next_year"`
	Locations      []string  `json:"locations"` // dynamic group IDs
}

// AvailabilityVerdict is the outcome of an exclusion check. Indeterminate
// means the check itself failed and the user is treated as included, so the
// fail-open policy is visible to callers and tests rather than implicit.
type AvailabilityVerdict int

const (
	VerdictIncluded AvailabilityVerdict = iota
	VerdictExcluded
	VerdictIndeterminateTreatAsIncluded
)

func (v AvailabilityVerdict) String() string {
	switch v {
	case VerdictExcluded:
		return "excluded"
	case VerdictIndeterminateTreatAsIncluded:
		return "indeterminate"
	default:
		return "included"
	}
}

// Assignable reports whether the user may receive work under this verdict.
func (v AvailabilityVerdict) Assignable() bool {
	return v != VerdictExcluded
}

// WorkItem is one open assignment of a document to a user. It mirrors the
// denormalized assignee metadata kept on the ticket itself.
type WorkItem struct {
	ID           string     `json:"id"`
	DocumentType string     `json:"document_type"`
	DocumentID   string     `json:"document_id"`
	UserID       string     `json:"user_id"`
	Description  string     `json:"description,omitempty"`
	Open         bool       `json:"open"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}
