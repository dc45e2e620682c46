package model

import "time"

// Document is the metadata row for a stored file. The bytes live on disk
// under the data directory, keyed by ID; only metadata is kept in the store.
type Document struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	SHA256      string    `json:"sha256" db:"sha256"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
