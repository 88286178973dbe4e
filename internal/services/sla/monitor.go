package sla

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/godesk-io/godesk-ce/internal/metrics"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// Monitor periodically sweeps tickets whose resolution deadline has passed
// and flips their agreement status to overdue. The sweep is a safety net;
// the restart path already marks a deadline overdue when it computes one in
// the past.
type Monitor struct {
	tickets repository.TicketRepository
	cron    *cron.Cron
	logger  *log.Logger
}

// NewMonitor creates a monitor over the ticket store.
func NewMonitor(tickets repository.TicketRepository, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		tickets: tickets,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start schedules the sweep on the given cron expression (for example
// "*/5 * * * *") and begins running it.
func (m *Monitor) Start(spec string) error {
	_, err := m.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.Sweep(ctx, time.Now())
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

// Sweep marks every ticket with an expired resolution deadline overdue.
// It returns the number of tickets updated.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) int {
	due, err := m.tickets.ListResolutionDue(ctx, now)
	if err != nil {
		m.logger.Printf("sla sweep: list tickets failed: %v", err)
		return 0
	}

	updated := 0
	for i := range due {
		t := due[i]
		t.AgreementStatus = models.AgreementResolutionOverdue
		if err := m.tickets.Update(ctx, &t); err != nil {
			m.logger.Printf("sla sweep: mark ticket %s overdue failed: %v", t.ID, err)
			continue
		}
		metrics.SLARestarts.WithLabelValues("overdue").Inc()
		updated++
	}
	if updated > 0 {
		m.logger.Printf("sla sweep: marked %d tickets resolution overdue", updated)
	}
	return updated
}
