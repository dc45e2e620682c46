package model

import (
	"fmt"
	"strings"
)

// Action is the verb half of a permission string.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
	ActionImport Action = "import"
	ActionAdmin  Action = "admin"
	ActionAny    Action = "*"
)

// Actions lists every recognized action, wildcard included.
var Actions = []Action{
	ActionRead, ActionWrite, ActionCreate, ActionUpdate,
	ActionDelete, ActionExport, ActionImport, ActionAdmin, ActionAny,
}

// ResourceScopes is the closed enumeration of resource areas a permission or
// token scope may reference.
var ResourceScopes = []string{
	"machines", "terminals", "users", "accounts", "counterparties",
	"owners", "transactions", "inventory_movements", "terminal_operations",
	"reports", "charts", "items", "warehouses", "item_categories",
	"transaction_categories", "phones", "audit", "documents", "info_cards",
}

// ScopeAny matches every resource area.
const ScopeAny = "*"

// Permission is the parsed form of an "action:scope" string. Validation
// happens at the boundary; the core passes the parsed form around.
type Permission struct {
	Action Action
	Scope  string
}

func (p Permission) String() string {
	return string(p.Action) + ":" + p.Scope
}

// ParsePermission validates and parses an "action:scope" string. Only the
// two-part form is accepted as input; the bare-action shorthand is an
// internal matching rule, not a storable permission.
func ParsePermission(s string) (Permission, error) {
	action, scope, ok := strings.Cut(s, ":")
	if !ok {
		return Permission{}, fmt.Errorf("permission %q: missing ':' separator", s)
	}
	if scope == "" || strings.ContainsAny(scope, " \t") {
		return Permission{}, fmt.Errorf("permission %q: empty or malformed scope", s)
	}
	a := Action(action)
	if !validAction(a) {
		return Permission{}, fmt.Errorf("permission %q: unknown action %q", s, action)
	}
	return Permission{Action: a, Scope: scope}, nil
}

func validAction(a Action) bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// ValidResourceScope reports whether s is a member of the resource area
// enumeration or the wildcard.
func ValidResourceScope(s string) bool {
	if s == ScopeAny {
		return true
	}
	for _, known := range ResourceScopes {
		if s == known {
			return true
		}
	}
	return false
}

// Allows decides whether the token authorizes the required "action:scope"
// permission, optionally narrowed to a resource area.
//
// A non-empty token scope set acts as a restrictive filter: when a resource
// area is supplied and the set excludes it, the request is denied before any
// grant is consulted. The scope set never grants. Grants then match in order:
// the literal permission, the action-wildcard "a:*", the scope-wildcard
// "*:s", the full wildcard "*:*", and the blanket "admin:*". A required
// string with no ':' is treated as the action over all scopes.
func (t *APIToken) Allows(required, resourceScope string) bool {
	if resourceScope != "" && len(t.Scopes) > 0 && !t.HasScope(resourceScope) {
		return false
	}

	for _, p := range t.Permissions {
		if p == required {
			return true
		}
	}

	action, scope, ok := strings.Cut(required, ":")
	if !ok {
		action, scope = required, ScopeAny
	}
	wildcards := [4]string{
		action + ":" + ScopeAny,
		string(ActionAny) + ":" + scope,
		string(ActionAny) + ":" + ScopeAny,
		string(ActionAdmin) + ":" + ScopeAny,
	}
	for _, p := range t.Permissions {
		for _, w := range wildcards {
			if p == w {
				return true
			}
		}
	}
	return false
}

// HasScope reports whether the token's scope set contains the resource area.
func (t *APIToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Presets maps preset names to ready-made permission lists for the management
// surface. The map is process-wide configuration; callers must treat it as
// read-only.
var Presets = map[string][]string{
	"readonly": {
		"read:machines", "read:terminals", "read:accounts",
		"read:counterparties", "read:transactions", "read:reports",
		"read:items", "read:warehouses",
	},
	"reports_only": {
		"read:reports", "read:charts", "read:transactions",
		"read:machines", "read:terminals", "export:reports",
	},
	"machines_management": {
		"read:machines", "read:items", "read:warehouses",
		"read:inventory_movements", "write:machines", "update:machines",
	},
	"financial_management": {
		"read:accounts", "read:transactions", "read:counterparties",
		"read:reports", "write:accounts", "write:transactions",
		"write:counterparties",
	},
	"admin": {
		"read:*", "write:*", "create:*", "update:*", "delete:*", "admin:*",
	},
}
