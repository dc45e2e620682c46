package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub/internal/model"
)

// SaveAuditEvent appends one event to the audit trail.
func (s *Store) SaveAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.Must(uuid.NewV7()).String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO audit_logs
		(id, action, token_id, token_prefix, owner_id, caller_id, ip, outcome, created_at)
		VALUES
		(:id, :action, :token_id, :token_prefix, :owner_id, :caller_id, :ip, :outcome, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, ev); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns events matching the filter, newest first, plus the
// total match count before paging.
func (s *Store) ListAuditEvents(ctx context.Context, f model.AuditFilter) ([]model.AuditEvent, int64, error) {
	var where []string
	var args []any

	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.TokenID != "" {
		where = append(where, "token_id = ?")
		args = append(args, f.TokenID)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, s.rebind("SELECT COUNT(*) FROM audit_logs"+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	q := "SELECT * FROM audit_logs" + clause + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	var events []model.AuditEvent
	if err := s.db.SelectContext(ctx, &events, s.rebind(q), args...); err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	return events, total, nil
}
