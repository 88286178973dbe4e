package assignment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/godesk-io/godesk-ce/internal/metrics"
	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

// Outcome reports what an assignment attempt did.
type Outcome struct {
	RuleID   string `json:"rule_id"`
	Assigned bool   `json:"assigned"`
	User     string `json:"user,omitempty"`
	// Reason explains a non-assignment: rule_disabled, off_day,
	// condition_false, condition_error, no_candidates, all_excluded,
	// unassigned.
	Reason string `json:"reason,omitempty"`
}

// Service orchestrates one assignment attempt: rule gating, condition
// evaluation, pool building, availability filtering, strategy selection and
// the work-item side effects.
type Service struct {
	rules     repository.RuleRepository
	tickets   repository.TicketRepository
	workItems repository.WorkItemRepository
	oracle    *AvailabilityOracle
	resolver  *GroupResolver
	evaluator *ConditionEvaluator
	fields    FieldResolver
	logger    *log.Logger
}

// NewService wires the assignment engine. fields may be nil when no rule
// uses the Based On Field policy.
func NewService(
	rules repository.RuleRepository,
	tickets repository.TicketRepository,
	workItems repository.WorkItemRepository,
	oracle *AvailabilityOracle,
	resolver *GroupResolver,
	evaluator *ConditionEvaluator,
	fields FieldResolver,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		rules:     rules,
		tickets:   tickets,
		workItems: workItems,
		oracle:    oracle,
		resolver:  resolver,
		evaluator: evaluator,
		fields:    fields,
		logger:    logger,
	}
}

// ApplyRules runs every enabled rule for the ticket's document type in
// priority order and stops at the first rule that assigns or unassigns.
// Rules that error or do not match are skipped; a bad rule must never abort
// the operation that triggered assignment.
func (s *Service) ApplyRules(ctx context.Context, ticketID string, now time.Time) (*Outcome, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}

	rules, err := s.rules.List(ctx, "Ticket")
	if err != nil {
		return nil, fmt.Errorf("list assignment rules: %w", err)
	}

	last := &Outcome{Assigned: false, Reason: "no_rules"}
	for i := range rules {
		outcome := s.apply(ctx, &rules[i], ticket, now)
		if outcome.Assigned || outcome.Reason == "unassigned" {
			return outcome, nil
		}
		last = outcome
	}
	return last, nil
}

// Assign runs a single rule against a ticket. Callers that already hold the
// rule (admin "run now" endpoints) use this; ApplyRules is the lifecycle
// entry point.
func (s *Service) Assign(ctx context.Context, ruleID, ticketID string, now time.Time) (*Outcome, error) {
	rule, err := s.rules.Get(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("load rule %s: %w", ruleID, err)
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	return s.apply(ctx, rule, ticket, now), nil
}

func (s *Service) apply(ctx context.Context, rule *models.AssignmentRule, ticket *models.Ticket, now time.Time) *Outcome {
	outcome := &Outcome{RuleID: rule.ID}

	if rule.Disabled {
		outcome.Reason = "rule_disabled"
		return outcome
	}
	if !rule.AppliesOn(now) {
		outcome.Reason = "off_day"
		return outcome
	}

	doc := ticketContext(ticket)

	if rule.UnassignCondition != "" {
		matched, err := s.evaluator.Evaluate(rule.UnassignCondition, doc)
		if err != nil {
			s.logger.Printf("rule %s unassign condition failed: %v", rule.ID, err)
		} else if matched {
			if err := s.unassign(ctx, rule, ticket); err != nil {
				s.logger.Printf("rule %s unassign failed: %v", rule.ID, err)
				outcome.Reason = "unassign_error"
				return outcome
			}
			outcome.Reason = "unassigned"
			return outcome
		}
	}

	matched, err := s.evaluator.Evaluate(rule.AssignCondition, doc)
	if err != nil {
		// A malformed expression must not abort the operation that
		// triggered assignment. Log, count, move on.
		s.logger.Printf("rule %s assign condition failed: %v", rule.ID, err)
		metrics.AssignmentsSkipped.WithLabelValues("condition_error").Inc()
		outcome.Reason = "condition_error"
		return outcome
	}
	if !matched {
		metrics.AssignmentsSkipped.WithLabelValues("condition_false").Inc()
		outcome.Reason = "condition_false"
		return outcome
	}

	pool := BuildPool(ctx, s.resolver, rule)
	if len(pool) == 0 {
		metrics.AssignmentsSkipped.WithLabelValues("no_candidates").Inc()
		outcome.Reason = "no_candidates"
		return outcome
	}

	available := make([]string, 0, len(pool))
	for _, user := range pool {
		if s.oracle.Check(ctx, user, now).Assignable() {
			available = append(available, user)
		}
	}
	if len(available) == 0 {
		// Never fall back to excluded users. A rule whose members are all
		// on leave produces no assignment.
		s.logger.Printf("rule %s: all %d candidates excluded on %s", rule.ID, len(pool), now.Format("2006-01-02"))
		metrics.AssignmentsSkipped.WithLabelValues("all_excluded").Inc()
		outcome.Reason = "all_excluded"
		return outcome
	}

	selected, err := s.strategyFor(rule, ticket.ID).Pick(ctx, rule, available)
	if err != nil {
		s.logger.Printf("rule %s selection failed: %v", rule.ID, err)
		metrics.AssignmentsSkipped.WithLabelValues("condition_error").Inc()
		outcome.Reason = "selection_error"
		return outcome
	}

	if err := s.commit(ctx, rule, ticket, selected, now); err != nil {
		s.logger.Printf("rule %s: assign %s to ticket %s failed: %v", rule.ID, selected, ticket.ID, err)
		outcome.Reason = "commit_error"
		return outcome
	}

	metrics.AssignmentsTotal.WithLabelValues(string(rule.Policy)).Inc()
	outcome.Assigned = true
	outcome.User = selected
	return outcome
}

func (s *Service) strategyFor(rule *models.AssignmentRule, docID string) Strategy {
	switch rule.Policy {
	case models.PolicyLoadBalancing:
		return LoadBalancingStrategy{WorkItems: s.workItems}
	case models.PolicyBasedOnField:
		return BasedOnFieldStrategy{Resolver: s.fields, DocID: docID}
	default:
		return RoundRobinStrategy{}
	}
}

// commit applies the assignment side effects: clear earlier open work
// items, create the new one, sync the ticket's assignee metadata and
// advance the round-robin cursor. The conditional insert doubles as the
// duplicate-assignment guard; when it reports an existing open item for the
// same user the cursor still advances so rotation stays honest.
func (s *Service) commit(ctx context.Context, rule *models.AssignmentRule, ticket *models.Ticket, user string, now time.Time) error {
	if err := s.workItems.ClearForDocument(ctx, rule.DocumentType, ticket.ID); err != nil {
		return fmt.Errorf("clear open work items: %w", err)
	}

	created, err := s.workItems.CreateIfAbsent(ctx, &models.WorkItem{
		DocumentType: rule.DocumentType,
		DocumentID:   ticket.ID,
		UserID:       user,
		Description:  workItemDescription(ticket),
		Open:         true,
		CreatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("create work item: %w", err)
	}
	if !created {
		s.logger.Printf("rule %s: ticket %s already assigned to %s, skipping duplicate", rule.ID, ticket.ID, user)
	}

	ticket.Assignees = []string{user}
	ticket.UpdatedAt = now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("sync ticket assignees: %w", err)
	}

	if rule.Policy == models.PolicyRoundRobin || rule.Policy == "" {
		if err := s.rules.SetLastUser(ctx, rule.ID, user); err != nil {
			return fmt.Errorf("advance round-robin cursor: %w", err)
		}
		rule.LastUser = user
	}
	return nil
}

func (s *Service) unassign(ctx context.Context, rule *models.AssignmentRule, ticket *models.Ticket) error {
	if err := s.workItems.ClearForDocument(ctx, rule.DocumentType, ticket.ID); err != nil {
		return fmt.Errorf("clear open work items: %w", err)
	}
	ticket.Assignees = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("sync ticket assignees: %w", err)
	}
	return nil
}

// ticketContext is the document view rule conditions run against.
func ticketContext(t *models.Ticket) map[string]interface{} {
	return NormalizeDates(map[string]interface{}{
		"id":               t.ID,
		"subject":          t.Subject,
		"status":           string(t.Status),
		"priority":         t.Priority,
		"team":             t.TeamID,
		"raised_by":        t.RaisedBy,
		"contact":          t.Contact,
		"agreement_status": string(t.AgreementStatus),
		"response_by":      t.ResponseBy,
		"resolution_by":    t.ResolutionBy,
		"created_at":       t.CreatedAt,
	}).(map[string]interface{})
}

// workItemDescription builds the human-readable summary shown on a user's
// open-work list.
func workItemDescription(t *models.Ticket) string {
	desc := t.Description
	if len(desc) > 200 {
		desc = desc[:200]
	}
	return fmt.Sprintf("Subject: %s | Description: %s", t.Subject, desc)
}
