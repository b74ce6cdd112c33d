package contracts

import "time"

// UnknownPriority ranks open knowledge gaps.
type UnknownPriority string

const (
	UnknownPriorityCritical UnknownPriority = "critical"
	UnknownPriorityHigh     UnknownPriority = "high"
	UnknownPriorityMedium   UnknownPriority = "medium"
	UnknownPriorityLow      UnknownPriority = "low"
)

// Rank returns the ordering rank of the priority; critical is 0.
// Unrecognized priorities sort after low.
func (p UnknownPriority) Rank() int {
	switch p {
	case UnknownPriorityCritical:
		return 0
	case UnknownPriorityHigh:
		return 1
	case UnknownPriorityMedium:
		return 2
	case UnknownPriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the defined priorities.
func (p UnknownPriority) Valid() bool {
	return p.Rank() < 4
}

// UnknownStatus is the lifecycle of an Unknown: open -> investigating -> answered.
type UnknownStatus string

const (
	UnknownStatusOpen          UnknownStatus = "open"
	UnknownStatusInvestigating UnknownStatus = "investigating"
	UnknownStatusAnswered      UnknownStatus = "answered"
)

// IsResolved reports whether the unknown no longer blocks the run.
func (s UnknownStatus) IsResolved() bool {
	return s == UnknownStatusAnswered
}

// Unknown is an open knowledge gap discovered during a phase.
type Unknown struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id,omitempty"`
	RunID           string          `json:"run_id"`
	PhaseDiscovered string          `json:"phase_discovered"`
	Category        string          `json:"category"`
	Priority        UnknownPriority `json:"priority"`
	Status          UnknownStatus   `json:"status"`
	Question        string          `json:"question"`
	Context         string          `json:"context,omitempty"`

	InvestigatedBy  string   `json:"investigated_by,omitempty"`
	Answer          string   `json:"answer,omitempty"`
	AnsweredInPhase string   `json:"answered_in_phase,omitempty"`
	AnsweredBy      string   `json:"answered_by,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`

	Orphaned bool `json:"orphaned,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// HandoffStatus progresses monotonically: pending -> accepted -> completed.
type HandoffStatus string

const (
	HandoffStatusPending   HandoffStatus = "pending"
	HandoffStatusAccepted  HandoffStatus = "accepted"
	HandoffStatusCompleted HandoffStatus = "completed"
)

// Stage returns the position of the status in the handoff progression.
func (s HandoffStatus) Stage() int {
	switch s {
	case HandoffStatusPending:
		return 0
	case HandoffStatusAccepted:
		return 1
	case HandoffStatusCompleted:
		return 2
	default:
		return -1
	}
}

// Handoff is a unit of work or data passed from one phase to another.
type Handoff struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id,omitempty"`
	RunID        string         `json:"run_id"`
	FromPhase    string         `json:"from_phase"`
	ToPhase      string         `json:"to_phase"`
	Status       HandoffStatus  `json:"status"`
	Data         map[string]any `json:"data,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
