package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/escalation"
)

const escalationColumns = `id, decision_id, tenant_id, run_id, phase, from_operator_id, to_supervisor_id,
	reason, priority, status, resolution, resolved_by, orphaned, created_at, updated_at, assigned_at, resolved_at`

// EscalationStore implements escalation.Store over SQL.
type EscalationStore struct {
	db *DB
}

var _ escalation.Store = (*EscalationStore)(nil)

func NewEscalationStore(db *DB) *EscalationStore {
	return &EscalationStore{db: db}
}

func (s *EscalationStore) Create(ctx context.Context, e *contracts.Escalation) error {
	query := `INSERT INTO escalations (` + escalationColumns + `, priority_rank)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := s.db.exec(ctx, query,
		e.ID, e.DecisionID, e.TenantID, e.RunID, e.Phase, e.FromOperatorID, e.ToSupervisorID,
		e.Reason, string(e.Priority), string(e.Status), e.Resolution, e.ResolvedBy, e.Orphaned,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt), formatTimePtr(e.AssignedAt), formatTimePtr(e.ResolvedAt),
		e.Priority.Rank(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("escalation %q already exists: %w", e.ID, escalation.ErrConflict)
		}
		return persistenceError("create escalation", err)
	}
	return nil
}

func (s *EscalationStore) Get(ctx context.Context, id string) (*contracts.Escalation, error) {
	row := s.db.queryRow(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = $1`, id)
	e, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escalation %q: %w", id, escalation.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("get escalation", err)
	}
	return e, nil
}

// Update replaces the mutable columns of e, except orphaned, if its stored
// status is one of from.
func (s *EscalationStore) Update(ctx context.Context, e *contracts.Escalation, from ...contracts.EscalationStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("escalation %q: no expected status: %w", e.ID, escalation.ErrConflict)
	}
	w := &where{offset: 7}
	w.add("id = ?", e.ID)
	w.in("status", strs(from))
	args := append([]any{
		e.ToSupervisorID, string(e.Status), e.Resolution, e.ResolvedBy,
		formatTime(e.UpdatedAt), formatTimePtr(e.AssignedAt), formatTimePtr(e.ResolvedAt),
	}, w.args...)
	query := `UPDATE escalations SET to_supervisor_id = $1, status = $2, resolution = $3, resolved_by = $4,
		updated_at = $5, assigned_at = $6, resolved_at = $7` + w.String()

	res, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return persistenceError("update escalation", err)
	}
	return s.checkApplied(ctx, res, e.ID)
}

// MarkOrphaned sets the orphaned flag of one escalation if its stored status
// is one of from.
func (s *EscalationStore) MarkOrphaned(ctx context.Context, id string, at time.Time, from ...contracts.EscalationStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("escalation %q: no expected status: %w", id, escalation.ErrConflict)
	}
	w := &where{offset: 1}
	w.add("id = ?", id)
	w.in("status", strs(from))
	query := `UPDATE escalations SET orphaned = TRUE, updated_at = $1` + w.String()

	res, err := s.db.exec(ctx, query, append([]any{formatTime(at)}, w.args...)...)
	if err != nil {
		return persistenceError("orphan escalation", err)
	}
	return s.checkApplied(ctx, res, id)
}

func (s *EscalationStore) checkApplied(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("update escalation", err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.queryRow(ctx, `SELECT status FROM escalations WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("escalation %q: %w", id, escalation.ErrNotFound)
	}
	if err != nil {
		return persistenceError("update escalation", err)
	}
	return fmt.Errorf("escalation %q is %s: %w", id, status, escalation.ErrConflict)
}

// List returns matching escalations in queue order.
func (s *EscalationStore) List(ctx context.Context, f escalation.Filter) ([]*contracts.Escalation, error) {
	w := &where{}
	if f.TenantID != "" {
		w.add("tenant_id = ?", f.TenantID)
	}
	if f.RunID != "" {
		w.add("run_id = ?", f.RunID)
	}
	if f.SupervisorID != "" {
		w.add("to_supervisor_id = ?", f.SupervisorID)
	}
	if !f.CreatedAfter.IsZero() {
		w.add("created_at >= ?", formatTime(f.CreatedAfter))
	}
	w.in("status", strs(f.Statuses))

	query := `SELECT ` + escalationColumns + ` FROM escalations` + w.String() +
		` ORDER BY priority_rank, created_at, id`
	rows, err := s.db.query(ctx, query, w.args...)
	if err != nil {
		return nil, persistenceError("list escalations", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, persistenceError("list escalations", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list escalations", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEscalation(row scanner) (*contracts.Escalation, error) {
	var (
		e                    contracts.Escalation
		priority, status     string
		createdAt, updatedAt string
		assignedAt           sql.NullString
		resolvedAt           sql.NullString
	)
	err := row.Scan(&e.ID, &e.DecisionID, &e.TenantID, &e.RunID, &e.Phase, &e.FromOperatorID, &e.ToSupervisorID,
		&e.Reason, &priority, &status, &e.Resolution, &e.ResolvedBy, &e.Orphaned,
		&createdAt, &updatedAt, &assignedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	e.Priority = contracts.EscalationPriority(priority)
	e.Status = contracts.EscalationStatus(status)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if e.AssignedAt, err = parseTimePtr(assignedAt); err != nil {
		return nil, err
	}
	if e.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
