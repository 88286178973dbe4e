package repository

import (
	"context"
	"time"

	"github.com/godesk-io/godesk-ce/internal/models"
)

// TicketRepository is the store for ticket records. The engine only needs
// point reads, field writes and existence checks; listing and search stay
// with the surrounding application.
type TicketRepository interface {
	Get(ctx context.Context, id string) (*models.Ticket, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	Exists(ctx context.Context, id string) (bool, error)
	ListResolutionDue(ctx context.Context, before time.Time) ([]models.Ticket, error)
	AddActivity(ctx context.Context, activity *models.TicketActivity) error
	AddComment(ctx context.Context, comment *models.TicketComment) error
	ListActivities(ctx context.Context, ticketID string) ([]models.TicketActivity, error)
}

// ResolutionRepository stores the append-only resolution version history.
//
// Insert takes the caller's view of the highest existing version number and
// fails with models.ErrConflict when another writer got there first. This is
// the serialization point that closes the read-max-then-insert race between
// concurrent submissions on the same ticket.
type ResolutionRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]models.ResolutionHistoryEntry, error)
	Current(ctx context.Context, ticketID string) (*models.ResolutionHistoryEntry, error)
	ByVersion(ctx context.Context, ticketID string, version int) (*models.ResolutionHistoryEntry, error)
	MaxVersion(ctx context.Context, ticketID string) (int, error)
	Insert(ctx context.Context, entry *models.ResolutionHistoryEntry, expectedMax int) error
	Update(ctx context.Context, entry *models.ResolutionHistoryEntry) error
	ClearCurrent(ctx context.Context, ticketID, exceptID string) error
	CountByTicket(ctx context.Context, ticketID string) (int, error)
}

// RuleRepository stores assignment rules, including the persisted
// round-robin cursor.
type RuleRepository interface {
	Get(ctx context.Context, id string) (*models.AssignmentRule, error)
	List(ctx context.Context, documentType string) ([]models.AssignmentRule, error)
	Save(ctx context.Context, rule *models.AssignmentRule) error
	SetLastUser(ctx context.Context, ruleID, user string) error
}

// GroupRepository resolves dynamic groups. Get returns models.ErrNotFound
// for unknown IDs; callers that want empty-membership semantics translate
// that themselves.
type GroupRepository interface {
	Get(ctx context.Context, id string) (*models.DynamicGroup, error)
	List(ctx context.Context) ([]models.DynamicGroup, error)
	Save(ctx context.Context, group *models.DynamicGroup) error
}

// CalendarRepository stores holiday records.
type CalendarRepository interface {
	Get(ctx context.Context, id string) (*models.Holiday, error)
	HolidaysOn(ctx context.Context, date time.Time) ([]models.Holiday, error)
	List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error)
	Create(ctx context.Context, holiday *models.Holiday) error
	Update(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id string) error
}

// DirectoryRepository maps users to employees and employees to their leave
// records. Both lookups return (nil, nil) when no mapping exists; absence is
// normal, not an error.
type DirectoryRepository interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
	EmployeeByUser(ctx context.Context, email string) (*models.Employee, error)
	LeaveRecords(ctx context.Context, employeeID string, on time.Time) ([]models.LeaveRecord, error)
}

// WorkItemRepository stores open assignment records.
//
// CreateIfAbsent is a single conditional insert keyed on (document type,
// document, user, open); it reports false without error when an identical
// open assignment already exists.
type WorkItemRepository interface {
	OpenByDocument(ctx context.Context, docType, docID string) ([]models.WorkItem, error)
	CountOpenByUser(ctx context.Context, docType, user string) (int, error)
	ClearForDocument(ctx context.Context, docType, docID string) error
	CreateIfAbsent(ctx context.Context, item *models.WorkItem) (bool, error)
}

// SLARepository reads SLA policies for deadline recomputation.
type SLARepository interface {
	Get(ctx context.Context, id string) (*models.SLAPolicy, error)
}

// TeamRepository resolves helpdesk team membership for workflow
// authorization checks.
type TeamRepository interface {
	Members(ctx context.Context, teamID string) ([]string, error)
}
