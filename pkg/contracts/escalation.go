// Package contracts defines the shared data model of the plan artifact gate:
// citations and orchestration metadata consumed from the pipeline, quality
// scores and review actions produced by the gate, and the Escalation, Unknown,
// Handoff and audit records that track unresolved work.
//
// Escalations, Unknowns and Handoffs are append-only audit entities: their
// status transitions in place and they are never physically deleted.
package contracts

import "time"

// EscalationPriority orders the human-review queue.
type EscalationPriority string

const (
	EscalationPriorityUrgent EscalationPriority = "urgent"
	EscalationPriorityHigh   EscalationPriority = "high"
	EscalationPriorityMedium EscalationPriority = "medium"
	EscalationPriorityLow    EscalationPriority = "low"
)

// Rank returns the queue rank of the priority; lower ranks are served first.
// Unrecognized priorities sort after low.
func (p EscalationPriority) Rank() int {
	switch p {
	case EscalationPriorityUrgent:
		return 0
	case EscalationPriorityHigh:
		return 1
	case EscalationPriorityMedium:
		return 2
	case EscalationPriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the defined priorities.
func (p EscalationPriority) Valid() bool {
	return p.Rank() < 4
}

// EscalationStatus tracks the lifecycle of an escalation:
// pending -> in_review -> {resolved, rejected}.
type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "pending"
	EscalationStatusInReview EscalationStatus = "in_review"
	EscalationStatusResolved EscalationStatus = "resolved"
	EscalationStatusRejected EscalationStatus = "rejected"
)

// IsTerminal reports whether the status is a sink state.
func (s EscalationStatus) IsTerminal() bool {
	return s == EscalationStatusResolved || s == EscalationStatusRejected
}

// Escalation is a request for human review of a gate decision.
// Once assigned it is exclusively owned by ToSupervisorID until it reaches a
// terminal status.
type Escalation struct {
	ID             string             `json:"id"`
	DecisionID     string             `json:"decision_id"`
	TenantID       string             `json:"tenant_id,omitempty"`
	RunID          string             `json:"run_id,omitempty"`
	Phase          string             `json:"phase,omitempty"`
	FromOperatorID string             `json:"from_operator_id"`
	ToSupervisorID string             `json:"to_supervisor_id,omitempty"`
	Reason         string             `json:"reason"`
	Priority       EscalationPriority `json:"priority"`
	Status         EscalationStatus   `json:"status"`
	Resolution     string             `json:"resolution,omitempty"`
	ResolvedBy     string             `json:"resolved_by,omitempty"`

	// Orphaned is set by the caller when the originating run was cancelled.
	// The escalation stays addressable for audit.
	Orphaned bool `json:"orphaned,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ResolutionTime returns the time between creation and resolution, and false
// if the escalation has not been resolved.
func (e *Escalation) ResolutionTime() (time.Duration, bool) {
	if e.Status != EscalationStatusResolved || e.ResolvedAt == nil {
		return 0, false
	}
	return e.ResolvedAt.Sub(e.CreatedAt), true
}
