// Package metrics exposes Prometheus instrumentation for the assignment
// and resolution engines. Fail-open paths are counted here so the swallowed
// errors stay observable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignmentsTotal counts completed assignments by policy.
	AssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godesk",
		Subsystem: "assignment",
		Name:      "assignments_total",
		Help:      "Completed assignments by policy.",
	}, []string{"policy"})

	// AssignmentsSkipped counts assignment attempts that produced no
	// assignee, by reason (no_candidates, all_excluded, condition_false,
	// condition_error).
	AssignmentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godesk",
		Subsystem: "assignment",
		Name:      "assignments_skipped_total",
		Help:      "Assignment attempts that produced no assignee, by reason.",
	}, []string{"reason"})

	// AvailabilityIndeterminate counts exclusion checks that failed and
	// fell open to included.
	AvailabilityIndeterminate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "godesk",
		Subsystem: "assignment",
		Name:      "availability_indeterminate_total",
		Help:      "Availability checks that failed and were treated as included.",
	})

	// ResolutionSubmissions counts ledger operations by kind (submit,
	// reject, satisfy, idempotent_noop).
	ResolutionSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godesk",
		Subsystem: "resolution",
		Name:      "operations_total",
		Help:      "Resolution ledger operations by kind.",
	}, []string{"kind"})

	// SLARestarts counts deadline recomputations by outcome (due, overdue,
	// failed).
	SLARestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godesk",
		Subsystem: "sla",
		Name:      "restarts_total",
		Help:      "SLA deadline recomputations by outcome.",
	}, []string{"outcome"})

	// NotificationFailures counts dropped best-effort notifications.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "godesk",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Notifications that failed to send and were dropped.",
	})
)
