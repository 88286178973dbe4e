package models

import "time"

// SatisfactionStatus is the customer's verdict on one resolution version.
type SatisfactionStatus string

const (
	SatisfactionPending      SatisfactionStatus = "Pending"
	SatisfactionSatisfied    SatisfactionStatus = "Satisfied"
	SatisfactionNotSatisfied SatisfactionStatus = "Not Satisfied"
)

// ResolutionHistoryEntry is one immutable version of a ticket's proposed
// resolution plus its satisfaction outcome. Entries are append-only; at most
// one entry per ticket is the current version at any time.
type ResolutionHistoryEntry struct {
	ID             string             `json:"id"`
	TicketID       string             `json:"ticket_id"`
	VersionNumber  int                `json:"version_number"`
	Content        string             `json:"resolution_content"`
	SubmittedBy    string             `json:"submitted_by"`
	SubmittedOn    time.Time          `json:"submitted_on"`
	Satisfaction   SatisfactionStatus `json:"satisfaction_status"`
	SatisfactionBy string             `json:"satisfaction_by,omitempty"`
	SatisfactionOn *time.Time         `json:"satisfaction_on,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	IsCurrent      bool               `json:"is_current_version"`
}
