package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/secret"
	"github.com/vendhub/vendhub/internal/store"
)

// TokenService orchestrates the token lifecycle: create, update, revoke,
// regenerate, delete, listing and stats. Every mutating path runs the
// ownership gate and emits an audit event.
type TokenService struct {
	store   *store.Store
	audit   *Recorder
	limiter *SlidingWindow
	logger  *slog.Logger
}

// NewTokenService creates a TokenService. The limiter is shared with the
// authorization gate so deleted tokens drop their window state.
func NewTokenService(st *store.Store, audit *Recorder, limiter *SlidingWindow, logger *slog.Logger) *TokenService {
	return &TokenService{store: st, audit: audit, limiter: limiter, logger: logger}
}

// CreateTokenRequest carries the configuration of a new token. IPWhitelist
// accepts a JSON array or a newline-separated string on the wire.
type CreateTokenRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Permissions model.StringList `json:"permissions"`
	Scopes      model.StringList `json:"scopes"`
	IPWhitelist model.StringList `json:"ip_whitelist"`
	RateLimit   *int             `json:"rate_limit"`
	ExpiresAt   *time.Time       `json:"expires_at"`
}

const minNameLen = 3

func validateName(name string) error {
	if len(strings.Join(strings.Fields(name), "")) < minNameLen {
		return invalidf("name", "must contain at least %d non-whitespace characters", minNameLen)
	}
	return nil
}

func validatePermissions(perms []string) error {
	if len(perms) == 0 {
		return invalidf("permissions", "at least one permission is required")
	}
	for _, p := range perms {
		if _, err := model.ParsePermission(p); err != nil {
			return invalidf("permissions", "%v", err)
		}
	}
	return nil
}

func validateScopes(scopes []string) error {
	for _, sc := range scopes {
		if !model.ValidResourceScope(sc) {
			return invalidf("scopes", "unknown resource scope %q", sc)
		}
	}
	return nil
}

func validateIPWhitelist(ips []string) error {
	for _, ip := range ips {
		if _, err := netip.ParseAddr(ip); err != nil {
			return invalidf("ip_whitelist", "%q is not a valid IP address", ip)
		}
	}
	return nil
}

func validateRateLimit(limit *int) error {
	if limit != nil && *limit < 0 {
		return invalidf("rate_limit", "must not be negative")
	}
	return nil
}

func (s *TokenService) validateCreate(req *CreateTokenRequest) error {
	if err := validateName(req.Name); err != nil {
		return err
	}
	if err := validatePermissions(req.Permissions); err != nil {
		return err
	}
	if err := validateScopes(req.Scopes); err != nil {
		return err
	}
	if err := validateIPWhitelist(req.IPWhitelist); err != nil {
		return err
	}
	return validateRateLimit(req.RateLimit)
}

// Create validates the request, issues a fresh secret, and persists the
// record owned by operatorID. The returned plaintext secret appears in the
// create response exactly once; subsequent reads expose only the prefix.
func (s *TokenService) Create(ctx context.Context, req *CreateTokenRequest, operatorID, callerIP string) (*model.APIToken, string, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, "", err
	}

	rateLimit := req.RateLimit
	if rateLimit != nil && *rateLimit == 0 {
		rateLimit = nil // 0 means unlimited
	}

	var tok *model.APIToken
	var plaintext string
	// A prefix collision is astronomically rare but the unique key makes it
	// a retryable Conflict; one fresh secret is attempted before giving up.
	for attempt := 0; attempt < 2; attempt++ {
		sec, prefix, hash, err := secret.Issue()
		if err != nil {
			return nil, "", err
		}
		t := &model.APIToken{
			Name:        req.Name,
			Description: req.Description,
			SecretHash:  hash,
			Prefix:      prefix,
			Permissions: req.Permissions,
			Scopes:      req.Scopes,
			IPWhitelist: req.IPWhitelist,
			RateLimit:   rateLimit,
			IsActive:    true,
			ExpiresAt:   req.ExpiresAt,
			CreatedBy:   operatorID,
		}
		err = s.store.CreateToken(ctx, t)
		if err == nil {
			tok, plaintext = t, sec
			break
		}
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, "", err
	}
	if tok == nil {
		return nil, "", fmt.Errorf("create token: %w", store.ErrConflict)
	}

	s.audit.Record(ctx, model.AuditEvent{
		Action: "token.create", TokenID: tok.ID, TokenPrefix: tok.Prefix,
		OwnerID: tok.CreatedBy, CallerID: operatorID, IP: callerIP,
		Outcome: model.OutcomeOK,
	})
	return tok, plaintext, nil
}

// requireAccess enforces the ownership rule shared by every mutating path
// and by get: admins touch any token, owners only their own.
func requireAccess(t *model.APIToken, callerID string, isAdmin bool) error {
	if !isAdmin && t.CreatedBy != callerID {
		return ErrForbidden
	}
	return nil
}

// Get returns a token record. Non-admins may only read their own.
func (s *TokenService) Get(ctx context.Context, id, callerID string, isAdmin bool) (*model.APIToken, error) {
	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(t, callerID, isAdmin); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns tokens matching the filter. Non-admin callers see only their
// own tokens regardless of the filter's owner field.
func (s *TokenService) List(ctx context.Context, f model.TokenFilter, callerID string, isAdmin bool) ([]model.APIToken, int64, error) {
	if !isAdmin {
		f.CreatedBy = callerID
	}
	return s.store.ListTokens(ctx, f)
}

// Stats returns the aggregate report, scoped to the caller's own tokens for
// non-admins.
func (s *TokenService) Stats(ctx context.Context, callerID string, isAdmin bool) (*model.TokenStats, error) {
	owner := ""
	if !isAdmin {
		owner = callerID
	}
	return s.store.TokenStats(ctx, owner)
}

func (s *TokenService) validatePatch(p *model.TokenPatch) error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Permissions != nil {
		if err := validatePermissions(p.Permissions); err != nil {
			return err
		}
	}
	if p.Scopes != nil {
		if err := validateScopes(p.Scopes); err != nil {
			return err
		}
	}
	if p.IPWhitelist != nil {
		if err := validateIPWhitelist(p.IPWhitelist); err != nil {
			return err
		}
	}
	return validateRateLimit(p.RateLimit)
}

// Update applies a partial configuration change with the same validation
// rules as create. Reactivating an expired token is rejected unless the
// patch also moves the expiry into the future.
func (s *TokenService) Update(ctx context.Context, id string, p model.TokenPatch, callerID, callerIP string, isAdmin bool) (*model.APIToken, error) {
	if err := s.validatePatch(&p); err != nil {
		return nil, err
	}

	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(t, callerID, isAdmin); err != nil {
		return nil, err
	}

	if p.IsActive != nil && *p.IsActive && !t.IsActive {
		expiry := t.ExpiresAt
		if p.ClearExpiry {
			expiry = nil
		} else if p.ExpiresAt != nil {
			expiry = p.ExpiresAt
		}
		if expiry != nil && !time.Now().Before(*expiry) {
			return nil, invalidf("is_active", "cannot reactivate an expired token; extend expires_at first")
		}
	}

	if err := s.store.UpdateToken(ctx, id, p); err != nil {
		return nil, err
	}
	updated, err := s.store.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, model.AuditEvent{
		Action: "token.update", TokenID: updated.ID, TokenPrefix: updated.Prefix,
		OwnerID: updated.CreatedBy, CallerID: callerID, IP: callerIP,
		Outcome: model.OutcomeOK,
	})
	return updated, nil
}

// Revoke deactivates a token without deleting it. Revoking an already
// inactive token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, id, callerID, callerIP string, isAdmin bool) error {
	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return err
	}
	if err := requireAccess(t, callerID, isAdmin); err != nil {
		return err
	}

	if t.IsActive {
		inactive := false
		if err := s.store.UpdateToken(ctx, id, model.TokenPatch{IsActive: &inactive}); err != nil {
			return err
		}
	}

	s.audit.Record(ctx, model.AuditEvent{
		Action: "token.revoke", TokenID: t.ID, TokenPrefix: t.Prefix,
		OwnerID: t.CreatedBy, CallerID: callerID, IP: callerIP,
		Outcome: model.OutcomeOK,
	})
	return nil
}

// Regenerate issues a replacement token: a new record inheriting the old
// configuration with a fresh secret, after which the old record is
// deactivated. The step is all-or-nothing: if the old record cannot be
// deactivated the new one is removed, and if creation fails the old record
// stays active.
func (s *TokenService) Regenerate(ctx context.Context, id, callerID, callerIP string, isAdmin bool) (*model.APIToken, string, error) {
	old, err := s.store.GetToken(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := requireAccess(old, callerID, isAdmin); err != nil {
		return nil, "", err
	}

	var fresh *model.APIToken
	var plaintext string
	for attempt := 0; attempt < 2; attempt++ {
		sec, prefix, hash, err := secret.Issue()
		if err != nil {
			return nil, "", err
		}
		t := &model.APIToken{
			Name:        old.Name + " (regenerated)",
			Description: old.Description,
			SecretHash:  hash,
			Prefix:      prefix,
			Permissions: old.Permissions,
			Scopes:      old.Scopes,
			IPWhitelist: old.IPWhitelist,
			RateLimit:   old.RateLimit,
			IsActive:    true,
			ExpiresAt:   old.ExpiresAt,
			CreatedBy:   old.CreatedBy,
		}
		err = s.store.CreateToken(ctx, t)
		if err == nil {
			fresh, plaintext = t, sec
			break
		}
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, "", err
	}
	if fresh == nil {
		return nil, "", fmt.Errorf("regenerate token: %w", store.ErrConflict)
	}

	inactive := false
	if err := s.store.UpdateToken(ctx, id, model.TokenPatch{IsActive: &inactive}); err != nil {
		// Compensate: the old record must remain the live one.
		if delErr := s.store.DeleteToken(ctx, fresh.ID); delErr != nil {
			s.logger.Error("regenerate compensation failed; orphan token left active",
				"token_id", fresh.ID, "prefix", fresh.Prefix, "error", delErr)
		}
		return nil, "", fmt.Errorf("deactivate regenerated token: %w", err)
	}

	s.audit.Record(ctx, model.AuditEvent{
		Action: "token.regenerate", TokenID: fresh.ID, TokenPrefix: fresh.Prefix,
		OwnerID: fresh.CreatedBy, CallerID: callerID, IP: callerIP,
		Outcome: model.OutcomeOK,
	})
	return fresh, plaintext, nil
}

// Delete removes a token record permanently.
func (s *TokenService) Delete(ctx context.Context, id, callerID, callerIP string, isAdmin bool) error {
	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return err
	}
	if err := requireAccess(t, callerID, isAdmin); err != nil {
		return err
	}

	if err := s.store.DeleteToken(ctx, id); err != nil {
		return err
	}
	s.limiter.Forget(id)

	s.audit.Record(ctx, model.AuditEvent{
		Action: "token.delete", TokenID: t.ID, TokenPrefix: t.Prefix,
		OwnerID: t.CreatedBy, CallerID: callerID, IP: callerIP,
		Outcome: model.OutcomeOK,
	})
	return nil
}
