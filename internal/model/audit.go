package model

import "time"

// Audit outcomes. Mutations record "ok" or "error"; authorization decisions
// record the gate's decision string.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// AuditEvent is one row of the audit trail. Token secrets are never part of
// an event; only the id and clear prefix identify the token.
type AuditEvent struct {
	ID          string    `json:"id" db:"id"`
	Action      string    `json:"action" db:"action"`
	TokenID     string    `json:"token_id" db:"token_id"`
	TokenPrefix string    `json:"token_prefix" db:"token_prefix"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CallerID    string    `json:"caller_id" db:"caller_id"`
	IP          string    `json:"ip" db:"ip"`
	Outcome     string    `json:"outcome" db:"outcome"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	Action  string
	TokenID string
	Outcome string
	Limit   int
	Offset  int
}
