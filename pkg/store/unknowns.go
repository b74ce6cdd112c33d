package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/unknowns"
)

const unknownColumns = `id, tenant_id, run_id, phase_discovered, category, priority, status, question, context,
	investigated_by, answer, answered_in_phase, answered_by, confidence, orphaned, created_at, updated_at, answered_at`

const handoffColumns = `id, tenant_id, run_id, from_phase, to_phase, status, data, dependencies,
	created_at, updated_at, accepted_at, completed_at`

// UnknownStore implements unknowns.Store over SQL.
type UnknownStore struct {
	db *DB
}

var _ unknowns.Store = (*UnknownStore)(nil)

func NewUnknownStore(db *DB) *UnknownStore {
	return &UnknownStore{db: db}
}

func (s *UnknownStore) CreateUnknown(ctx context.Context, u *contracts.Unknown) error {
	query := `INSERT INTO unknowns (` + unknownColumns + `, priority_rank)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := s.db.exec(ctx, query,
		u.ID, u.TenantID, u.RunID, u.PhaseDiscovered, u.Category, string(u.Priority), string(u.Status),
		u.Question, u.Context, u.InvestigatedBy, u.Answer, u.AnsweredInPhase, u.AnsweredBy,
		nullFloat(u.Confidence), u.Orphaned, formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
		formatTimePtr(u.AnsweredAt), u.Priority.Rank(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("unknown %q already exists: %w", u.ID, unknowns.ErrConflict)
		}
		return persistenceError("create unknown", err)
	}
	return nil
}

func (s *UnknownStore) GetUnknown(ctx context.Context, id string) (*contracts.Unknown, error) {
	row := s.db.queryRow(ctx, `SELECT `+unknownColumns+` FROM unknowns WHERE id = $1`, id)
	u, err := scanUnknown(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unknown %q: %w", id, unknowns.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("get unknown", err)
	}
	return u, nil
}

func (s *UnknownStore) UpdateUnknown(ctx context.Context, u *contracts.Unknown, from ...contracts.UnknownStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("unknown %q: no expected status: %w", u.ID, unknowns.ErrConflict)
	}
	w := &where{offset: 8}
	w.add("id = ?", u.ID)
	w.in("status", strs(from))
	args := append([]any{
		string(u.Status), u.InvestigatedBy, u.Answer, u.AnsweredInPhase, u.AnsweredBy,
		nullFloat(u.Confidence), formatTime(u.UpdatedAt), formatTimePtr(u.AnsweredAt),
	}, w.args...)
	query := `UPDATE unknowns SET status = $1, investigated_by = $2, answer = $3, answered_in_phase = $4,
		answered_by = $5, confidence = $6, updated_at = $7, answered_at = $8` + w.String()

	res, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return persistenceError("update unknown", err)
	}
	return s.checkApplied(ctx, res, "unknowns", "unknown", u.ID)
}

func (s *UnknownStore) MarkUnknownOrphaned(ctx context.Context, id string, at time.Time, from ...contracts.UnknownStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("unknown %q: no expected status: %w", id, unknowns.ErrConflict)
	}
	w := &where{offset: 1}
	w.add("id = ?", id)
	w.in("status", strs(from))
	query := `UPDATE unknowns SET orphaned = TRUE, updated_at = $1` + w.String()

	res, err := s.db.exec(ctx, query, append([]any{formatTime(at)}, w.args...)...)
	if err != nil {
		return persistenceError("orphan unknown", err)
	}
	return s.checkApplied(ctx, res, "unknowns", "unknown", id)
}

func (s *UnknownStore) ListUnknowns(ctx context.Context, f unknowns.UnknownFilter) ([]*contracts.Unknown, error) {
	w := &where{}
	if f.RunID != "" {
		w.add("run_id = ?", f.RunID)
	}
	w.in("status", strs(f.Statuses))
	w.in("priority", strs(f.Priorities))

	rows, err := s.db.query(ctx, `SELECT `+unknownColumns+` FROM unknowns`+w.String()+
		` ORDER BY priority_rank, created_at, id`, w.args...)
	if err != nil {
		return nil, persistenceError("list unknowns", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Unknown
	for rows.Next() {
		u, err := scanUnknown(rows)
		if err != nil {
			return nil, persistenceError("list unknowns", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list unknowns", err)
	}
	return out, nil
}

func (s *UnknownStore) CreateHandoff(ctx context.Context, h *contracts.Handoff) error {
	data, deps, err := encodeHandoff(h)
	if err != nil {
		return err
	}
	query := `INSERT INTO handoffs (` + handoffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = s.db.exec(ctx, query,
		h.ID, h.TenantID, h.RunID, h.FromPhase, h.ToPhase, string(h.Status), data, deps,
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt), formatTimePtr(h.AcceptedAt), formatTimePtr(h.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("handoff %q already exists: %w", h.ID, unknowns.ErrConflict)
		}
		return persistenceError("create handoff", err)
	}
	return nil
}

func (s *UnknownStore) GetHandoff(ctx context.Context, id string) (*contracts.Handoff, error) {
	row := s.db.queryRow(ctx, `SELECT `+handoffColumns+` FROM handoffs WHERE id = $1`, id)
	h, err := scanHandoff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("handoff %q: %w", id, unknowns.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("get handoff", err)
	}
	return h, nil
}

func (s *UnknownStore) UpdateHandoff(ctx context.Context, h *contracts.Handoff, from ...contracts.HandoffStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("handoff %q: no expected status: %w", h.ID, unknowns.ErrConflict)
	}
	w := &where{offset: 4}
	w.add("id = ?", h.ID)
	w.in("status", strs(from))
	args := append([]any{
		string(h.Status), formatTime(h.UpdatedAt), formatTimePtr(h.AcceptedAt), formatTimePtr(h.CompletedAt),
	}, w.args...)
	query := `UPDATE handoffs SET status = $1, updated_at = $2, accepted_at = $3, completed_at = $4` + w.String()

	res, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return persistenceError("update handoff", err)
	}
	return s.checkApplied(ctx, res, "handoffs", "handoff", h.ID)
}

func (s *UnknownStore) ListHandoffs(ctx context.Context, f unknowns.HandoffFilter) ([]*contracts.Handoff, error) {
	w := &where{}
	if f.RunID != "" {
		w.add("run_id = ?", f.RunID)
	}
	if f.ToPhase != "" {
		w.add("to_phase = ?", f.ToPhase)
	}
	w.in("status", strs(f.Statuses))

	rows, err := s.db.query(ctx, `SELECT `+handoffColumns+` FROM handoffs`+w.String()+
		` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, persistenceError("list handoffs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, persistenceError("list handoffs", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list handoffs", err)
	}
	return out, nil
}

// checkApplied distinguishes a missing row from a lost compare-and-set.
func (s *UnknownStore) checkApplied(ctx context.Context, res sql.Result, table, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("update "+kind, err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.queryRow(ctx, `SELECT status FROM `+table+` WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, unknowns.ErrNotFound)
	}
	if err != nil {
		return persistenceError("update "+kind, err)
	}
	return fmt.Errorf("%s %q is %s: %w", kind, id, status, unknowns.ErrConflict)
}

func scanUnknown(row scanner) (*contracts.Unknown, error) {
	var (
		u                    contracts.Unknown
		priority, status     string
		confidence           sql.NullFloat64
		createdAt, updatedAt string
		answeredAt           sql.NullString
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.RunID, &u.PhaseDiscovered, &u.Category, &priority, &status,
		&u.Question, &u.Context, &u.InvestigatedBy, &u.Answer, &u.AnsweredInPhase, &u.AnsweredBy,
		&confidence, &u.Orphaned, &createdAt, &updatedAt, &answeredAt)
	if err != nil {
		return nil, err
	}
	u.Priority = contracts.UnknownPriority(priority)
	u.Status = contracts.UnknownStatus(status)
	if confidence.Valid {
		c := confidence.Float64
		u.Confidence = &c
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if u.AnsweredAt, err = parseTimePtr(answeredAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanHandoff(row scanner) (*contracts.Handoff, error) {
	var (
		h                    contracts.Handoff
		status, data, deps   string
		createdAt, updatedAt string
		acceptedAt           sql.NullString
		completedAt          sql.NullString
	)
	err := row.Scan(&h.ID, &h.TenantID, &h.RunID, &h.FromPhase, &h.ToPhase, &status, &data, &deps,
		&createdAt, &updatedAt, &acceptedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	h.Status = contracts.HandoffStatus(status)
	if err := json.Unmarshal([]byte(data), &h.Data); err != nil {
		return nil, fmt.Errorf("handoff %q data: %w", h.ID, err)
	}
	if err := json.Unmarshal([]byte(deps), &h.Dependencies); err != nil {
		return nil, fmt.Errorf("handoff %q dependencies: %w", h.ID, err)
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if h.AcceptedAt, err = parseTimePtr(acceptedAt); err != nil {
		return nil, err
	}
	if h.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func encodeHandoff(h *contracts.Handoff) (data, deps string, err error) {
	d, err := json.Marshal(h.Data)
	if err != nil {
		return "", "", fmt.Errorf("handoff %q data: %w", h.ID, err)
	}
	dependencies := h.Dependencies
	if dependencies == nil {
		dependencies = []string{}
	}
	p, err := json.Marshal(dependencies)
	if err != nil {
		return "", "", err
	}
	return string(d), string(p), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
