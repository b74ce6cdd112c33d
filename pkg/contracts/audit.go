// Audit chain types
package contracts

import "time"

// AuditEventType names the gate decision or state transition recorded in the chain.
type AuditEventType string

const (
	AuditEventGateEvaluated        AuditEventType = "gate.evaluated"
	AuditEventEscalationCreated    AuditEventType = "escalation.created"
	AuditEventEscalationAssigned   AuditEventType = "escalation.assigned"
	AuditEventEscalationResolved   AuditEventType = "escalation.resolved"
	AuditEventEscalationRejected   AuditEventType = "escalation.rejected"
	AuditEventUnknownCreated       AuditEventType = "unknown.created"
	AuditEventUnknownInvestigating AuditEventType = "unknown.investigating"
	AuditEventUnknownAnswered      AuditEventType = "unknown.answered"
	AuditEventHandoffCreated       AuditEventType = "handoff.created"
	AuditEventHandoffAdvanced      AuditEventType = "handoff.advanced"
	AuditEventRunOrphaned          AuditEventType = "run.orphaned"
)

// GenesisHash is the previous hash of the first entry of every tenant chain.
const GenesisHash = "genesis"

// AuditChainEntry is one immutable, hash-linked ledger entry.
//
// CurrentHash = hex(SHA256(PreviousHash + EventData + Timestamp + ActorID)),
// with Timestamp rendered as RFC 3339 (nanoseconds, UTC). For i > 0,
// entry[i].PreviousHash == entry[i-1].CurrentHash.
type AuditChainEntry struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Sequence     uint64         `json:"sequence"`
	EventType    AuditEventType `json:"event_type"`
	EventData    string         `json:"event_data"` // canonical JSON (RFC 8785)
	PreviousHash string         `json:"previous_hash"`
	CurrentHash  string         `json:"current_hash"`
	Timestamp    time.Time      `json:"timestamp"`
	ActorID      string         `json:"actor_id"`
}

// HashTimestamp is the timestamp form that enters the entry hash.
func (e *AuditChainEntry) HashTimestamp() string {
	return e.Timestamp.UTC().Format(time.RFC3339Nano)
}
