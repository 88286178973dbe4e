package assignment

import (
	"context"
	"fmt"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// TicketFieldResolver reads assignee fields straight off the ticket record
// for the Based On Field policy.
type TicketFieldResolver struct {
	Tickets repository.TicketRepository
}

func (r *TicketFieldResolver) ResolveField(ctx context.Context, docType, docID, field string) (string, error) {
	ticket, err := r.Tickets.Get(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("load %s %s: %w", docType, docID, err)
	}
	switch field {
	case "raised_by":
		return ticket.RaisedBy, nil
	case "contact":
		return ticket.Contact, nil
	default:
		return "", fmt.Errorf("field %q: %w", field, models.NewValidationError("field", "not an assignee field"))
	}
}
