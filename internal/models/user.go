package models

import "time"

// User is an account referenced by email. The directory that owns user
// records lives outside this service; only the identifier and display
// fields are carried here.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Image    string `json:"image,omitempty"`
}

// Role names recognised by the workflow authorization checks.
const (
	RoleAdmin        = "admin"
	RoleAgentManager = "agent_manager"
	RoleAgent        = "agent"
	RoleCustomer     = "customer"
)

// Actor is the authenticated principal performing an operation, extracted
// from the JWT claims by the auth middleware.
type Actor struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the actor carries the named role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor is a system administrator.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// IsAgent reports whether the actor can act as an agent. Admins and agent
// managers qualify.
func (a Actor) IsAgent() bool {
	return a.IsAdmin() || a.HasRole(RoleAgentManager) || a.HasRole(RoleAgent)
}

// Employee links a user account to an HR employee record. Leave records are
// keyed by employee, not by user, so the assignment engine resolves through
// this mapping.
type Employee struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"` // user email
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// LeaveStatus is the approval state of a leave record.
type LeaveStatus string

const (
	LeaveStatusOpen      LeaveStatus = "Open"
	LeaveStatusApproved  LeaveStatus = "Approved"
	LeaveStatusRejected  LeaveStatus = "Rejected"
	LeaveStatusCancelled LeaveStatus = "Cancelled"
)

// LeaveRecord is a date range during which an employee is away. Open and
// Approved records that are not cancelled make the employee unavailable for
// assignment on every day in [FromDate, ToDate].
type LeaveRecord struct {
	ID         string      `json:"id"`
	EmployeeID string      `json:"employee_id"`
	FromDate   time.Time   `json:"from_date"`
	ToDate     time.Time   `json:"to_date"`
	Status     LeaveStatus `json:"status"`
	Cancelled  bool        `json:"cancelled"`
}

// Covers reports whether the leave record spans the given date. Comparison
// is by calendar day; the time-of-day component of the bounds is ignored.
func (l LeaveRecord) Covers(date time.Time) bool {
	d := toDay(date)
	return !d.Before(toDay(l.FromDate)) && !d.After(toDay(l.ToDate))
}

// Blocks reports whether the record makes the employee unavailable on date.
func (l LeaveRecord) Blocks(date time.Time) bool {
	if l.Cancelled {
		return false
	}
	if l.Status != LeaveStatusOpen && l.Status != LeaveStatusApproved {
		return false
	}
	return l.Covers(date)
}

func toDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
