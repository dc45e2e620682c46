package service

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/secret"
	"github.com/vendhub/vendhub/internal/store"
)

// Decision is the closed set of authorization gate outcomes.
type Decision string

const (
	DecisionAllowed      Decision = "allowed"
	DecisionInvalid      Decision = "invalid"
	DecisionDisabled     Decision = "disabled"
	DecisionExpired      Decision = "expired"
	DecisionIPNotAllowed Decision = "ip_not_allowed"
	DecisionRateLimited  Decision = "rate_limited"
	DecisionForbidden    Decision = "forbidden"
)

// AuthDecision is the gate's verdict for one presented secret. TokenID and
// OwnerID are set for every decision past the prefix lookup.
type AuthDecision struct {
	Decision Decision
	TokenID  string
	OwnerID  string
}

// Allowed reports whether the request may proceed.
func (d AuthDecision) Allowed() bool {
	return d.Decision == DecisionAllowed
}

// Gate is the entry point request handlers call to authorize programmatic
// clients. It performs at most one store read and one store write per call,
// both under the caller's context deadline.
type Gate struct {
	store   *store.Store
	limiter *SlidingWindow
	audit   *Recorder
	logger  *slog.Logger
}

// NewGate creates a Gate. The limiter holds the per-token rolling windows
// and must be the instance shared with the TokenService.
func NewGate(st *store.Store, limiter *SlidingWindow, audit *Recorder, logger *slog.Logger) *Gate {
	return &Gate{store: st, limiter: limiter, audit: audit, logger: logger}
}

// Authorize validates the presented secret and decides whether it authorizes
// the required permission, optionally narrowed to a resource area. On
// success the token's usage counter is bumped; every other decision is
// audited. A store deadline expiry yields Invalid with no usage bump.
func (g *Gate) Authorize(ctx context.Context, presented, clientIP, required, resourceScope string) AuthDecision {
	now := time.Now().UTC()

	if len(presented) < secret.PrefixLen {
		return g.deny(ctx, AuthDecision{Decision: DecisionInvalid}, "", clientIP)
	}
	prefix := presented[:secret.PrefixLen]

	t, err := g.store.GetTokenByPrefix(ctx, prefix)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.logger.Warn("token lookup failed", "prefix", prefix, "error", err)
		}
		return g.deny(ctx, AuthDecision{Decision: DecisionInvalid}, prefix, clientIP)
	}

	decision := AuthDecision{TokenID: t.ID, OwnerID: t.CreatedBy}

	if !secret.Verify(presented, t.SecretHash) {
		decision.Decision = DecisionInvalid
		return g.deny(ctx, decision, prefix, clientIP)
	}

	if d := g.enforcePolicy(t, clientIP, now); d != "" {
		decision.Decision = d
		return g.deny(ctx, decision, prefix, clientIP)
	}

	if !t.Allows(required, resourceScope) {
		decision.Decision = DecisionForbidden
		return g.deny(ctx, decision, prefix, clientIP)
	}

	if err := g.store.BumpTokenUsage(ctx, t.ID, now); err != nil {
		g.logger.Warn("usage bump failed", "token_id", t.ID, "error", err)
		decision.Decision = DecisionInvalid
		return g.deny(ctx, decision, prefix, clientIP)
	}

	decision.Decision = DecisionAllowed
	return decision
}

// enforcePolicy runs the runtime checks in order: lifecycle, expiry, IP
// whitelist, rate limit. An empty return means the token passes.
func (g *Gate) enforcePolicy(t *model.APIToken, clientIP string, now time.Time) Decision {
	if !t.IsActive {
		return DecisionDisabled
	}
	if t.Expired(now) {
		return DecisionExpired
	}
	if len(t.IPWhitelist) > 0 && !ipAllowed(t.IPWhitelist, clientIP) {
		return DecisionIPNotAllowed
	}
	if t.RateLimit != nil && !g.limiter.Allow(t.ID, *t.RateLimit, now) {
		return DecisionRateLimited
	}
	return ""
}

// ipAllowed compares the client address against the whitelist using parsed,
// canonical forms so that textual variants of the same address match.
func ipAllowed(whitelist []string, clientIP string) bool {
	client, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	for _, entry := range whitelist {
		allowed, err := netip.ParseAddr(entry)
		if err != nil {
			continue
		}
		if allowed.Unmap() == client.Unmap() {
			return true
		}
	}
	return false
}

func (g *Gate) deny(ctx context.Context, d AuthDecision, prefix, clientIP string) AuthDecision {
	g.audit.Record(ctx, model.AuditEvent{
		Action:      "token.authorize",
		TokenID:     d.TokenID,
		TokenPrefix: prefix,
		OwnerID:     d.OwnerID,
		IP:          clientIP,
		Outcome:     string(d.Decision),
	})
	return d
}
