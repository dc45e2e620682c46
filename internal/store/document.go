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

// CreateDocument inserts a document metadata row. The bytes themselves live
// on disk, keyed by the ID assigned here.
func (s *Store) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == "" {
		d.ID = uuid.Must(uuid.NewV7()).String()
	}
	d.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO documents
		(id, name, content_type, size_bytes, sha256, owner_id, created_at)
		VALUES
		(:id, :name, :content_type, :size_bytes, :sha256, :owner_id, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, d); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document's metadata by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	if err := s.db.GetContext(ctx, &d, s.rebind("SELECT * FROM documents WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns a page of document metadata, newest first, together
// with the total row count.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	var docs []model.Document
	q := s.rebind("SELECT * FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?")
	if err := s.db.SelectContext(ctx, &docs, q, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// DeleteDocument removes a document metadata row.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM documents WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
