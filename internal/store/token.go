package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub/internal/model"
)

// CreateToken inserts a new token record. The secret hash and prefix must
// already be set. The ID, CreatedAt, and UpdatedAt fields are populated
// before insert; a unique-key violation on the prefix is reported as
// ErrConflict.
func (s *Store) CreateToken(ctx context.Context, t *model.APIToken) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	const q = `INSERT INTO api_tokens
		(id, name, description, secret_hash, prefix, permissions, scopes, ip_whitelist,
		 rate_limit, is_active, expires_at, last_used_at, usage_count, created_by,
		 created_at, updated_at)
		VALUES
		(:id, :name, :description, :secret_hash, :prefix, :permissions, :scopes, :ip_whitelist,
		 :rate_limit, :is_active, :expires_at, :last_used_at, :usage_count, :created_by,
		 :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, t); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert token: %w", ErrConflict)
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetToken returns a token by ID.
func (s *Store) GetToken(ctx context.Context, id string) (*model.APIToken, error) {
	var t model.APIToken
	if err := s.db.GetContext(ctx, &t, s.rebind("SELECT * FROM api_tokens WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// GetTokenByPrefix returns a token by its unique 8-character prefix. This is
// the lookup the authorization gate performs on every programmatic request.
func (s *Store) GetTokenByPrefix(ctx context.Context, prefix string) (*model.APIToken, error) {
	var t model.APIToken
	if err := s.db.GetContext(ctx, &t, s.rebind("SELECT * FROM api_tokens WHERE prefix = ?"), prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token by prefix: %w", err)
	}
	return &t, nil
}

// ListTokens returns tokens matching the filter, newest first, plus the
// total match count before paging.
func (s *Store) ListTokens(ctx context.Context, f model.TokenFilter) ([]model.APIToken, int64, error) {
	var where []string
	var args []any

	if f.NameContains != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.NameContains+"%")
	}
	if f.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, f.CreatedBy)
	}
	if f.Active != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.Active)
	}
	if f.Scope != "" {
		// scopes is a JSON array in a TEXT column; match the quoted element.
		where = append(where, "scopes LIKE ?")
		args = append(args, `%"`+f.Scope+`"%`)
	}
	if f.ExpiresAfter != nil {
		where = append(where, "expires_at IS NOT NULL AND expires_at >= ?")
		args = append(args, *f.ExpiresAfter)
	}
	if f.ExpiresUntil != nil {
		where = append(where, "expires_at IS NOT NULL AND expires_at <= ?")
		args = append(args, *f.ExpiresUntil)
	}
	if f.UsedAfter != nil {
		where = append(where, "last_used_at IS NOT NULL AND last_used_at >= ?")
		args = append(args, *f.UsedAfter)
	}
	if f.UsedUntil != nil {
		where = append(where, "last_used_at IS NOT NULL AND last_used_at <= ?")
		args = append(args, *f.UsedUntil)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, s.rebind("SELECT COUNT(*) FROM api_tokens"+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count tokens: %w", err)
	}

	q := "SELECT * FROM api_tokens" + clause + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	var tokens []model.APIToken
	if err := s.db.SelectContext(ctx, &tokens, s.rebind(q), args...); err != nil {
		return nil, 0, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, total, nil
}

// UpdateToken applies a partial update. Fields absent from the patch are
// unchanged; usage_count and last_used_at are never part of the write set,
// so concurrent BumpTokenUsage calls cannot be lost. updated_at is bumped on
// every call.
func (s *Store) UpdateToken(ctx context.Context, id string, p model.TokenPatch) error {
	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if p.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Permissions != nil {
		set = append(set, "permissions = ?")
		args = append(args, p.Permissions)
	}
	if p.Scopes != nil {
		set = append(set, "scopes = ?")
		args = append(args, p.Scopes)
	}
	if p.IPWhitelist != nil {
		set = append(set, "ip_whitelist = ?")
		args = append(args, p.IPWhitelist)
	}
	if p.RateLimit != nil {
		if *p.RateLimit <= 0 {
			set = append(set, "rate_limit = NULL")
		} else {
			set = append(set, "rate_limit = ?")
			args = append(args, *p.RateLimit)
		}
	}
	if p.ClearExpiry {
		set = append(set, "expires_at = NULL")
	} else if p.ExpiresAt != nil {
		set = append(set, "expires_at = ?")
		args = append(args, *p.ExpiresAt)
	}
	if p.IsActive != nil {
		set = append(set, "is_active = ?")
		args = append(args, *p.IsActive)
	}

	args = append(args, id)
	q := "UPDATE api_tokens SET " + strings.Join(set, ", ") + " WHERE id = ?"

	result, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update token: %w", ErrConflict)
		}
		return fmt.Errorf("update token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update token rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteToken removes a token record permanently.
func (s *Store) DeleteToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM api_tokens WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete token rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpTokenUsage atomically increments usage_count and records the time of
// the validation. The single UPDATE keeps the counter strictly increasing
// under concurrent successful validations.
func (s *Store) BumpTokenUsage(ctx context.Context, id string, when time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE api_tokens SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?"),
		when.UTC(), id)
	if err != nil {
		return fmt.Errorf("bump token usage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump token usage rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TokenStats aggregates token counts and usage. A non-empty owner restricts
// every figure to that owner's tokens.
func (s *Store) TokenStats(ctx context.Context, owner string) (*model.TokenStats, error) {
	now := time.Now().UTC()

	ownerClause := ""
	var ownerArgs []any
	if owner != "" {
		ownerClause = " AND created_by = ?"
		ownerArgs = []any{owner}
	}

	stats := &model.TokenStats{ByOwner: map[string]int64{}}

	type row struct {
		q    string
		args []any
		dst  *int64
	}
	counts := []row{
		{"SELECT COUNT(*) FROM api_tokens WHERE 1=1" + ownerClause, ownerArgs, &stats.Total},
		{"SELECT COUNT(*) FROM api_tokens WHERE is_active AND (expires_at IS NULL OR expires_at > ?)" + ownerClause,
			append([]any{now}, ownerArgs...), &stats.Active},
		{"SELECT COUNT(*) FROM api_tokens WHERE NOT is_active" + ownerClause, ownerArgs, &stats.Inactive},
		{"SELECT COUNT(*) FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?" + ownerClause,
			append([]any{now}, ownerArgs...), &stats.Expired},
		{"SELECT COALESCE(SUM(usage_count), 0) FROM api_tokens WHERE 1=1" + ownerClause, ownerArgs, &stats.TotalUsage},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, s.rebind(c.q), c.args...); err != nil {
			return nil, fmt.Errorf("token stats: %w", err)
		}
	}

	type ownerRow struct {
		CreatedBy string `db:"created_by"`
		N         int64  `db:"n"`
	}
	var owners []ownerRow
	if err := s.db.SelectContext(ctx, &owners,
		s.rebind("SELECT created_by, COUNT(*) AS n FROM api_tokens WHERE 1=1"+ownerClause+" GROUP BY created_by"),
		ownerArgs...); err != nil {
		return nil, fmt.Errorf("token stats by owner: %w", err)
	}
	for _, o := range owners {
		stats.ByOwner[o.CreatedBy] = o.N
	}

	if err := s.db.SelectContext(ctx, &stats.TopUsed,
		s.rebind("SELECT id, name, prefix, usage_count, last_used_at FROM api_tokens"+
			" WHERE usage_count > 0"+ownerClause+" ORDER BY usage_count DESC LIMIT 5"),
		ownerArgs...); err != nil {
		return nil, fmt.Errorf("token stats top used: %w", err)
	}

	if err := s.db.SelectContext(ctx, &stats.RecentlyUsed,
		s.rebind("SELECT id, name, prefix, usage_count, last_used_at FROM api_tokens"+
			" WHERE last_used_at IS NOT NULL"+ownerClause+" ORDER BY last_used_at DESC LIMIT 10"),
		ownerArgs...); err != nil {
		return nil, fmt.Errorf("token stats recent: %w", err)
	}

	return stats, nil
}
