package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendhub/vendhub/internal/model"
)

// CreateOperator inserts a new operator account. The password hash must
// already be set. A duplicate email is reported as ErrConflict.
func (s *Store) CreateOperator(ctx context.Context, op *model.Operator) error {
	now := time.Now().UTC()
	if op.ID == "" {
		op.ID = uuid.Must(uuid.NewV7()).String()
	}
	op.CreatedAt = now
	op.UpdatedAt = now

	const q = `INSERT INTO operators
		(id, email, password_hash, name, is_active, is_admin, created_at, updated_at)
		VALUES
		(:id, :email, :password_hash, :name, :is_active, :is_admin, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, op); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert operator: %w", ErrConflict)
		}
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// GetOperator returns an operator by ID.
func (s *Store) GetOperator(ctx context.Context, id string) (*model.Operator, error) {
	var op model.Operator
	if err := s.db.GetContext(ctx, &op, s.rebind("SELECT * FROM operators WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}
	return &op, nil
}

// GetOperatorByEmail returns an operator by email address.
func (s *Store) GetOperatorByEmail(ctx context.Context, email string) (*model.Operator, error) {
	var op model.Operator
	if err := s.db.GetContext(ctx, &op, s.rebind("SELECT * FROM operators WHERE email = ?"), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get operator by email: %w", err)
	}
	return &op, nil
}

// ListOperators returns all operator accounts ordered by email.
func (s *Store) ListOperators(ctx context.Context) ([]model.Operator, error) {
	var ops []model.Operator
	if err := s.db.SelectContext(ctx, &ops, "SELECT * FROM operators ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	return ops, nil
}

// UpdateOperator rewrites an operator's mutable fields and bumps updated_at.
func (s *Store) UpdateOperator(ctx context.Context, op *model.Operator) error {
	op.UpdatedAt = time.Now().UTC()

	const q = `UPDATE operators SET
		email = :email, password_hash = :password_hash, name = :name,
		is_active = :is_active, is_admin = :is_admin, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, op)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update operator: %w", ErrConflict)
		}
		return fmt.Errorf("update operator: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update operator rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasAnyOperator reports whether at least one account exists, used for
// first-run detection.
func (s *Store) HasAnyOperator(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM operators"); err != nil {
		return false, fmt.Errorf("count operators: %w", err)
	}
	return count > 0, nil
}

// UpdateOperatorLastLogin sets the last_login_at timestamp.
func (s *Store) UpdateOperatorLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE operators SET last_login_at = ?, updated_at = ? WHERE id = ?"), now, now, id)
	if err != nil {
		return fmt.Errorf("update operator last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update operator last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
