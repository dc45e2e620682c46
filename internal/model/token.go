package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// APIToken represents a programmatic access token. The raw secret is never
// stored; only a bcrypt hash and the first 8 characters (the prefix) are
// persisted. The prefix identifies the token in lookups, listings, and logs.
type APIToken struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	SecretHash  string     `json:"-" db:"secret_hash"` // bcrypt hash, never expose
	Prefix      string     `json:"prefix" db:"prefix"`
	Permissions StringList `json:"permissions" db:"permissions"`
	Scopes      StringList `json:"scopes" db:"scopes"`
	IPWhitelist StringList `json:"ip_whitelist" db:"ip_whitelist"`
	RateLimit   *int       `json:"rate_limit,omitempty" db:"rate_limit"` // requests per minute, nil = unlimited
	IsActive    bool       `json:"is_active" db:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	UsageCount  int64      `json:"usage_count" db:"usage_count"`
	CreatedBy   string     `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Valid reports whether the token is active and not expired at the given
// instant. This is the minimum condition for any authorization decision
// other than Disabled/Expired.
func (t *APIToken) Valid(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}

// Expired reports whether the token's expiry instant has been reached.
// Expiry is derived from the wall clock, never stored.
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// StringList is a string set stored as a JSON array in a TEXT column. On the
// wire it additionally accepts a newline-separated string, which management
// UIs commonly submit for IP whitelists.
type StringList []string

// UnmarshalJSON accepts either a JSON array of strings or a single string
// whose lines become elements. Blank lines are dropped.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	*l = out
	return nil
}

// Value implements driver.Valuer, serializing the list as a JSON array.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for TEXT columns holding a JSON array.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// TokenFilter narrows ListTokens results. Zero values mean "no constraint".
type TokenFilter struct {
	NameContains string
	CreatedBy    string
	Active       *bool
	Scope        string
	ExpiresAfter *time.Time
	ExpiresUntil *time.Time
	UsedAfter    *time.Time
	UsedUntil    *time.Time
	Limit        int
	Offset       int
}

// TokenPatch is a partial update of a token's configuration. Nil fields are
// left unchanged. Usage counters are never part of a patch; the store updates
// them only through BumpTokenUsage.
type TokenPatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Permissions StringList `json:"permissions,omitempty"`
	Scopes      StringList `json:"scopes,omitempty"`
	IPWhitelist StringList `json:"ip_whitelist,omitempty"`
	RateLimit   *int       `json:"rate_limit,omitempty"` // pointer to 0 clears the limit
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

// TokenStats is the aggregate report for the stats operation.
type TokenStats struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	Inactive     int64            `json:"inactive"`
	Expired      int64            `json:"expired"`
	TotalUsage   int64            `json:"total_usage"`
	ByOwner      map[string]int64 `json:"by_owner"`
	TopUsed      []TokenUsage     `json:"top_used"`
	RecentlyUsed []TokenUsage     `json:"recently_used"`
}

// TokenUsage is a compact usage row for stats listings.
type TokenUsage struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Prefix     string     `json:"prefix" db:"prefix"`
	UsageCount int64      `json:"usage_count" db:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}
