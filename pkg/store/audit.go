package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/plangate/pkg/audit"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

const auditColumns = `id, tenant_id, sequence, event_type, event_data, previous_hash, current_hash, timestamp, actor_id`

// AuditStore implements audit.Store over SQL. The unique
// (tenant_id, previous_hash) constraint rejects a second writer on the same
// chain head.
type AuditStore struct {
	db *DB
}

var _ audit.Store = (*AuditStore)(nil)

func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, e *contracts.AuditChainEntry) error {
	query := `INSERT INTO audit_entries (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.exec(ctx, query,
		e.ID, e.TenantID, int64(e.Sequence), string(e.EventType), e.EventData,
		e.PreviousHash, e.CurrentHash, formatTime(e.Timestamp), e.ActorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q previous hash %s: %w", e.TenantID, e.PreviousHash, audit.ErrConflict)
		}
		return persistenceError("append audit entry", err)
	}
	return nil
}

func (s *AuditStore) Head(ctx context.Context, tenantID string) (*contracts.AuditChainEntry, error) {
	row := s.db.queryRow(ctx, `SELECT `+auditColumns+` FROM audit_entries
		WHERE tenant_id = $1 ORDER BY sequence DESC LIMIT 1`, tenantID)
	e, err := scanAuditEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("read audit head", err)
	}
	return e, nil
}

func (s *AuditStore) List(ctx context.Context, q audit.Query) ([]contracts.AuditChainEntry, error) {
	w := &where{}
	w.add("tenant_id = ?", q.TenantID)
	if !q.Since.IsZero() {
		w.add("timestamp >= ?", formatTime(q.Since))
	}
	if !q.Until.IsZero() {
		w.add("timestamp <= ?", formatTime(q.Until))
	}
	query := `SELECT ` + auditColumns + ` FROM audit_entries` + w.String() + ` ORDER BY sequence`
	args := w.args
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list audit entries", err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.AuditChainEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, persistenceError("list audit entries", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list audit entries", err)
	}
	return out, nil
}

func scanAuditEntry(row scanner) (*contracts.AuditChainEntry, error) {
	var (
		e         contracts.AuditChainEntry
		seq       int64
		eventType string
		ts        string
	)
	if err := row.Scan(&e.ID, &e.TenantID, &seq, &eventType, &e.EventData,
		&e.PreviousHash, &e.CurrentHash, &ts, &e.ActorID); err != nil {
		return nil, err
	}
	e.Sequence = uint64(seq)
	e.EventType = contracts.AuditEventType(eventType)
	var err error
	if e.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	return &e, nil
}
