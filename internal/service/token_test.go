package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv wires an in-memory store with the full service stack sharing
// one limiter, the same way serve does.
func newTestEnv(t *testing.T) (*store.Store, *TokenService, *Gate) {
	t.Helper()
	st, err := store.Open(store.Config{})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := testLogger()
	limiter := NewSlidingWindow()
	recorder := NewRecorder(st, logger)
	tokens := NewTokenService(st, recorder, limiter, logger)
	gate := NewGate(st, limiter, recorder, logger)
	return st, tokens, gate
}

func mustCreate(t *testing.T, tokens *TokenService, req *CreateTokenRequest, owner string) (*model.APIToken, string) {
	t.Helper()
	tok, secret, err := tokens.Create(context.Background(), req, owner, "127.0.0.1")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return tok, secret
}

func TestCreateTokenValidation(t *testing.T) {
	_, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   CreateTokenRequest
		field string
	}{
		{"short name", CreateTokenRequest{Name: "ab", Permissions: model.StringList{"read:machines"}}, "name"},
		{"whitespace name", CreateTokenRequest{Name: "  a b ", Permissions: model.StringList{"read:machines"}}, "name"},
		{"no permissions", CreateTokenRequest{Name: "collector"}, "permissions"},
		{"bad permission", CreateTokenRequest{Name: "collector", Permissions: model.StringList{"fly:machines"}}, "permissions"},
		{"no-colon permission", CreateTokenRequest{Name: "collector", Permissions: model.StringList{"read"}}, "permissions"},
		{"bad scope", CreateTokenRequest{Name: "collector", Permissions: model.StringList{"read:machines"}, Scopes: model.StringList{"spaceships"}}, "scopes"},
		{"bad ip", CreateTokenRequest{Name: "collector", Permissions: model.StringList{"read:machines"}, IPWhitelist: model.StringList{"999.1.1.1"}}, "ip_whitelist"},
	}
	negative := -1
	tests = append(tests, struct {
		name  string
		req   CreateTokenRequest
		field string
	}{"negative rate limit", CreateTokenRequest{Name: "collector", Permissions: model.StringList{"read:machines"}, RateLimit: &negative}, "rate_limit"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tokens.Create(ctx, &tt.req, "op-1", "")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestCreateTokenZeroRateLimitMeansUnlimited(t *testing.T) {
	_, tokens, _ := newTestEnv(t)

	zero := 0
	tok, secret := mustCreate(t, tokens, &CreateTokenRequest{
		Name:        "collector",
		Permissions: model.StringList{"read:machines"},
		RateLimit:   &zero,
	}, "op-1")

	if tok.RateLimit != nil {
		t.Errorf("rate limit = %v, want nil", *tok.RateLimit)
	}
	if len(secret) != 47 {
		t.Errorf("secret length = %d, want 47", len(secret))
	}
	if tok.Prefix != secret[:8] {
		t.Errorf("prefix %q does not match secret", tok.Prefix)
	}
}

func TestGetTokenOwnership(t *testing.T) {
	_, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	tok, _ := mustCreate(t, tokens, &CreateTokenRequest{
		Name: "collector", Permissions: model.StringList{"read:machines"},
	}, "op-1")

	if _, err := tokens.Get(ctx, tok.ID, "op-1", false); err != nil {
		t.Errorf("owner denied: %v", err)
	}
	if _, err := tokens.Get(ctx, tok.ID, "op-2", false); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger error = %v, want ErrForbidden", err)
	}
	if _, err := tokens.Get(ctx, tok.ID, "op-2", true); err != nil {
		t.Errorf("admin denied: %v", err)
	}
}

func TestListScopedToOwner(t *testing.T) {
	_, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	mustCreate(t, tokens, &CreateTokenRequest{Name: "mine", Permissions: model.StringList{"read:machines"}}, "op-1")
	mustCreate(t, tokens, &CreateTokenRequest{Name: "theirs", Permissions: model.StringList{"read:machines"}}, "op-2")

	// A non-admin's owner filter is overridden with their own id.
	mine, total, err := tokens.List(ctx, model.TokenFilter{CreatedBy: "op-2"}, "op-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || mine[0].Name != "mine" {
		t.Errorf("non-admin list = %+v, total %d", mine, total)
	}

	all, total, err := tokens.List(ctx, model.TokenFilter{}, "op-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("admin list total = %d, want 2", total)
	}
}

func TestUpdateRejectsReactivatingExpired(t *testing.T) {
	_, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	tok, _ := mustCreate(t, tokens, &CreateTokenRequest{
		Name: "stale", Permissions: model.StringList{"read:machines"}, ExpiresAt: &past,
	}, "op-1")

	if err := tokens.Revoke(ctx, tok.ID, "op-1", "", false); err != nil {
		t.Fatal(err)
	}

	active := true
	if _, err := tokens.Update(ctx, tok.ID, model.TokenPatch{IsActive: &active}, "op-1", "", false); err == nil {
		t.Error("reactivating an expired token succeeded")
	}

	// Extending the expiry in the same patch is allowed.
	future := time.Now().UTC().Add(time.Hour)
	updated, err := tokens.Update(ctx, tok.ID, model.TokenPatch{IsActive: &active, ExpiresAt: &future}, "op-1", "", false)
	if err != nil {
		t.Fatalf("reactivate with extended expiry: %v", err)
	}
	if !updated.IsActive {
		t.Error("token still inactive")
	}

	// Clearing the expiry also unblocks reactivation.
	if err := tokens.Revoke(ctx, tok.ID, "op-1", "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Update(ctx, tok.ID, model.TokenPatch{IsActive: &active, ClearExpiry: true}, "op-1", "", false); err != nil {
		t.Errorf("reactivate with cleared expiry: %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	st, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	tok, _ := mustCreate(t, tokens, &CreateTokenRequest{
		Name: "collector", Permissions: model.StringList{"read:machines"},
	}, "op-1")

	if err := tokens.Revoke(ctx, tok.ID, "op-1", "", false); err != nil {
		t.Fatal(err)
	}
	if err := tokens.Revoke(ctx, tok.ID, "op-1", "", false); err != nil {
		t.Errorf("second revoke: %v", err)
	}

	got, err := st.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("token still active after revoke")
	}
}

func TestRegenerate(t *testing.T) {
	st, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	limit := 30
	tok, oldSecret := mustCreate(t, tokens, &CreateTokenRequest{
		Name:        "collector",
		Permissions: model.StringList{"read:machines", "write:machines"},
		Scopes:      model.StringList{"machines", "terminals"},
		RateLimit:   &limit,
	}, "op-1")

	fresh, newSecret, err := tokens.Regenerate(ctx, tok.ID, "op-1", "", false)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	if fresh.ID == tok.ID {
		t.Error("regenerate reused the old record")
	}
	if newSecret == oldSecret {
		t.Error("regenerate reused the old secret")
	}
	if fresh.Name != "collector (regenerated)" {
		t.Errorf("name = %q", fresh.Name)
	}
	if len(fresh.Permissions) != 2 || len(fresh.Scopes) != 2 {
		t.Errorf("configuration not inherited: %+v", fresh)
	}
	if fresh.RateLimit == nil || *fresh.RateLimit != 30 {
		t.Errorf("rate limit not inherited: %v", fresh.RateLimit)
	}
	if fresh.CreatedBy != "op-1" {
		t.Errorf("owner = %q", fresh.CreatedBy)
	}
	if fresh.UsageCount != 0 {
		t.Errorf("usage count = %d, want 0", fresh.UsageCount)
	}

	old, err := st.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.IsActive {
		t.Error("old token still active after regenerate")
	}
}

func TestDeleteForgetsRateWindow(t *testing.T) {
	_, tokens, gate := newTestEnv(t)
	ctx := context.Background()

	limit := 1
	tok, secret := mustCreate(t, tokens, &CreateTokenRequest{
		Name: "collector", Permissions: model.StringList{"read:machines"}, RateLimit: &limit,
	}, "op-1")

	if d := gate.Authorize(ctx, secret, "127.0.0.1", "read:machines", ""); !d.Allowed() {
		t.Fatalf("first validation refused: %s", d.Decision)
	}

	if err := tokens.Delete(ctx, tok.ID, "op-1", "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Get(ctx, tok.ID, "op-1", false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted token get error = %v, want ErrNotFound", err)
	}

	// A new token may land on state-free limiter entries only; the deleted
	// token's window must not linger.
	tok2, secret2 := mustCreate(t, tokens, &CreateTokenRequest{
		Name: "collector 2", Permissions: model.StringList{"read:machines"}, RateLimit: &limit,
	}, "op-1")
	_ = tok2
	if d := gate.Authorize(ctx, secret2, "127.0.0.1", "read:machines", ""); !d.Allowed() {
		t.Errorf("fresh token refused: %s", d.Decision)
	}
}

func TestMutationsAudited(t *testing.T) {
	st, tokens, _ := newTestEnv(t)
	ctx := context.Background()

	tok, _ := mustCreate(t, tokens, &CreateTokenRequest{
		Name: "collector", Permissions: model.StringList{"read:machines"},
	}, "op-1")
	if err := tokens.Revoke(ctx, tok.ID, "op-1", "203.0.113.7", false); err != nil {
		t.Fatal(err)
	}

	events, total, err := st.ListAuditEvents(ctx, model.AuditFilter{TokenID: tok.ID, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("audit events = %d, want 2", total)
	}
	actions := map[string]bool{}
	for _, ev := range events {
		actions[ev.Action] = true
		if ev.TokenPrefix != tok.Prefix {
			t.Errorf("event prefix = %q, want %q", ev.TokenPrefix, tok.Prefix)
		}
	}
	if !actions["token.create"] || !actions["token.revoke"] {
		t.Errorf("audited actions = %v", actions)
	}
}
