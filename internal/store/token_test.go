package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vendhub/vendhub/internal/model"
)

func seedToken(t *testing.T, s *Store, mutate func(*model.APIToken)) *model.APIToken {
	t.Helper()
	tok := &model.APIToken{
		Name:        "telemetry collector",
		SecretHash:  "$2a$10$fakefakefakefakefakefake",
		Prefix:      "vh_" + tok5(t),
		Permissions: model.StringList{"read:machines"},
		IsActive:    true,
		CreatedBy:   "op-1",
	}
	if mutate != nil {
		mutate(tok)
	}
	if err := s.CreateToken(context.Background(), tok); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	return tok
}

var tokSeq struct {
	sync.Mutex
	n int
}

// tok5 returns a unique 5-character suffix so seeded prefixes never collide.
func tok5(t *testing.T) string {
	t.Helper()
	tokSeq.Lock()
	defer tokSeq.Unlock()
	tokSeq.n++
	const alphabet = "abcdefghijklmnopqrstuvwxy"
	n := tokSeq.n
	buf := []byte{'a', 'a', 'a', 'a', 'a'}
	for i := 4; i >= 0 && n > 0; i-- {
		buf[i] = alphabet[n%len(alphabet)]
		n /= len(alphabet)
	}
	return string(buf)
}

func TestTokenCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := seedToken(t, s, func(tk *model.APIToken) {
		tk.Scopes = model.StringList{"machines", "terminals"}
		tk.IPWhitelist = model.StringList{"10.0.0.1"}
		limit := 60
		tk.RateLimit = &limit
	})
	if tok.ID == "" {
		t.Fatal("token ID not assigned")
	}

	got, err := s.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got.Name != tok.Name || got.Prefix != tok.Prefix {
		t.Errorf("got %+v", got)
	}
	if len(got.Scopes) != 2 || got.Scopes[0] != "machines" {
		t.Errorf("scopes round trip = %v", got.Scopes)
	}
	if got.RateLimit == nil || *got.RateLimit != 60 {
		t.Errorf("rate limit round trip = %v", got.RateLimit)
	}

	byPrefix, err := s.GetTokenByPrefix(ctx, tok.Prefix)
	if err != nil {
		t.Fatalf("get by prefix: %v", err)
	}
	if byPrefix.ID != tok.ID {
		t.Errorf("prefix lookup returned %s, want %s", byPrefix.ID, tok.ID)
	}

	if _, err := s.GetToken(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing token error = %v, want ErrNotFound", err)
	}
}

func TestTokenPrefixConflict(t *testing.T) {
	s := newTestStore(t)

	tok := seedToken(t, s, nil)
	dup := &model.APIToken{
		Name:       "dup",
		SecretHash: "hash",
		Prefix:     tok.Prefix,
		CreatedBy:  "op-1",
	}
	if err := s.CreateToken(context.Background(), dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate prefix error = %v, want ErrConflict", err)
	}
}

func TestTokenListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedToken(t, s, func(tk *model.APIToken) { tk.Name = "route planner" })
	seedToken(t, s, func(tk *model.APIToken) {
		tk.Name = "billing export"
		tk.CreatedBy = "op-2"
		tk.IsActive = false
	})
	seedToken(t, s, func(tk *model.APIToken) {
		tk.Name = "kiosk sync"
		tk.Scopes = model.StringList{"terminals"}
	})

	all, total, err := s.ListTokens(ctx, model.TokenFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("got %d/%d tokens, want 3/3", len(all), total)
	}

	byName, total, err := s.ListTokens(ctx, model.TokenFilter{NameContains: "billing"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || byName[0].Name != "billing export" {
		t.Errorf("name filter returned %+v", byName)
	}

	active := true
	actives, total, err := s.ListTokens(ctx, model.TokenFilter{Active: &active})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("active filter total = %d, want 2", total)
	}
	_ = actives

	byScope, total, err := s.ListTokens(ctx, model.TokenFilter{Scope: "terminals"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || byScope[0].Name != "kiosk sync" {
		t.Errorf("scope filter returned %+v", byScope)
	}

	byOwner, total, err := s.ListTokens(ctx, model.TokenFilter{CreatedBy: "op-2"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || byOwner[0].CreatedBy != "op-2" {
		t.Errorf("owner filter returned %+v", byOwner)
	}

	page, total, err := s.ListTokens(ctx, model.TokenFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 {
		t.Errorf("paging returned %d items, total %d", len(page), total)
	}
}

func TestTokenUpdatePreservesUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := seedToken(t, s, nil)
	for i := 0; i < 3; i++ {
		if err := s.BumpTokenUsage(ctx, tok.ID, time.Now()); err != nil {
			t.Fatalf("bump usage: %v", err)
		}
	}

	name := "renamed collector"
	if err := s.UpdateToken(ctx, tok.ID, model.TokenPatch{Name: &name}); err != nil {
		t.Fatalf("update token: %v", err)
	}

	got, err := s.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "renamed collector" {
		t.Errorf("name = %q", got.Name)
	}
	if got.UsageCount != 3 {
		t.Errorf("usage_count = %d after patch, want 3", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Error("last_used_at cleared by patch")
	}
}

func TestTokenUpdateRateLimitAndExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	limit := 10
	expiry := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	tok := seedToken(t, s, func(tk *model.APIToken) {
		tk.RateLimit = &limit
		tk.ExpiresAt = &expiry
	})

	// Zero clears the rate limit.
	zero := 0
	if err := s.UpdateToken(ctx, tok.ID, model.TokenPatch{RateLimit: &zero}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetToken(ctx, tok.ID)
	if got.RateLimit != nil {
		t.Errorf("rate_limit = %v after clearing, want nil", *got.RateLimit)
	}
	if got.ExpiresAt == nil {
		t.Fatal("expires_at lost by unrelated patch")
	}

	if err := s.UpdateToken(ctx, tok.ID, model.TokenPatch{ClearExpiry: true}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetToken(ctx, tok.ID)
	if got.ExpiresAt != nil {
		t.Errorf("expires_at = %v after ClearExpiry, want nil", got.ExpiresAt)
	}

	if err := s.UpdateToken(ctx, "missing", model.TokenPatch{Name: &tok.Name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestBumpTokenUsageConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tok := seedToken(t, s, nil)

	const workers = 8
	const bumps = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < bumps; j++ {
				if err := s.BumpTokenUsage(ctx, tok.ID, time.Now()); err != nil {
					t.Errorf("bump usage: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != workers*bumps {
		t.Errorf("usage_count = %d, want %d", got.UsageCount, workers*bumps)
	}
}

func TestTokenStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	t1 := seedToken(t, s, nil)
	seedToken(t, s, func(tk *model.APIToken) { tk.IsActive = false })
	seedToken(t, s, func(tk *model.APIToken) {
		tk.ExpiresAt = &past
		tk.CreatedBy = "op-2"
	})

	for i := 0; i < 4; i++ {
		if err := s.BumpTokenUsage(ctx, t1.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.TokenStats(ctx, "")
	if err != nil {
		t.Fatalf("token stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.Active != 1 {
		t.Errorf("active = %d, want 1", stats.Active)
	}
	if stats.Inactive != 1 {
		t.Errorf("inactive = %d, want 1", stats.Inactive)
	}
	if stats.Expired != 1 {
		t.Errorf("expired = %d, want 1", stats.Expired)
	}
	if stats.TotalUsage != 4 {
		t.Errorf("total usage = %d, want 4", stats.TotalUsage)
	}
	if stats.ByOwner["op-1"] != 2 || stats.ByOwner["op-2"] != 1 {
		t.Errorf("by owner = %v", stats.ByOwner)
	}
	if len(stats.TopUsed) != 1 || stats.TopUsed[0].ID != t1.ID {
		t.Errorf("top used = %+v", stats.TopUsed)
	}
	if len(stats.RecentlyUsed) != 1 {
		t.Errorf("recently used = %+v", stats.RecentlyUsed)
	}

	scoped, err := s.TokenStats(ctx, "op-2")
	if err != nil {
		t.Fatal(err)
	}
	if scoped.Total != 1 || scoped.TotalUsage != 0 {
		t.Errorf("scoped stats = %+v", scoped)
	}
}
