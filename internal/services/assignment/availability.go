// Package assignment implements the candidate selection engine: pool
// building from rule members and dynamic groups, per-date availability
// exclusion, and the selection strategies.
package assignment

import (
	"context"
	"log"
	"time"

	"github.com/godesk-io/godesk-ce/internal/metrics"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// AvailabilityOracle decides whether a user is excluded from assignment on
// a given date, due to leave or a holiday linked to one of their groups.
//
// The oracle fails open: any lookup failure yields
// VerdictIndeterminateTreatAsIncluded rather than blocking assignment.
// Indeterminate results are logged and counted so the policy stays visible.
type AvailabilityOracle struct {
	directory repository.DirectoryRepository
	calendar  repository.CalendarRepository
	groups    *GroupResolver
	logger    *log.Logger
}

// NewAvailabilityOracle creates an oracle over the given stores.
func NewAvailabilityOracle(directory repository.DirectoryRepository, calendar repository.CalendarRepository, groups *GroupResolver, logger *log.Logger) *AvailabilityOracle {
	if logger == nil {
		logger = log.Default()
	}
	return &AvailabilityOracle{
		directory: directory,
		calendar:  calendar,
		groups:    groups,
		logger:    logger,
	}
}

// Check returns the availability verdict for user on date. It never returns
// an error; failures are folded into the verdict.
func (o *AvailabilityOracle) Check(ctx context.Context, user string, date time.Time) models.AvailabilityVerdict {
	if v := o.checkLeave(ctx, user, date); v != models.VerdictIncluded {
		return v
	}
	return o.checkHolidays(ctx, user, date)
}

func (o *AvailabilityOracle) checkLeave(ctx context.Context, user string, date time.Time) models.AvailabilityVerdict {
	employee, err := o.directory.EmployeeByUser(ctx, user)
	if err != nil {
		return o.indeterminate("employee lookup for %s failed: %v", user, err)
	}
	if employee == nil {
		// No employee mapping means no leave records can apply.
		return models.VerdictIncluded
	}

	leaves, err := o.directory.LeaveRecords(ctx, employee.ID, date)
	if err != nil {
		return o.indeterminate("leave lookup for %s failed: %v", user, err)
	}
	for _, l := range leaves {
		if l.Blocks(date) {
			return models.VerdictExcluded
		}
	}
	return models.VerdictIncluded
}

func (o *AvailabilityOracle) checkHolidays(ctx context.Context, user string, date time.Time) models.AvailabilityVerdict {
	holidays, err := o.calendar.HolidaysOn(ctx, date)
	if err != nil {
		return o.indeterminate("holiday lookup for %s failed: %v", date.Format("2006-01-02"), err)
	}

	for _, h := range holidays {
		// A holiday without locations applies to everyone.
		if len(h.Locations) == 0 {
			return models.VerdictExcluded
		}
		for _, groupID := range h.Locations {
			for _, member := range o.groups.ResolveMembers(ctx, groupID) {
				if member == user {
					return models.VerdictExcluded
				}
			}
		}
	}
	return models.VerdictIncluded
}

func (o *AvailabilityOracle) indeterminate(format string, args ...interface{}) models.AvailabilityVerdict {
	o.logger.Printf("availability check indeterminate: "+format, args...)
	metrics.AvailabilityIndeterminate.Inc()
	return models.VerdictIndeterminateTreatAsIncluded
}
