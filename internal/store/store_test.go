package store

import (
	"context"
	"errors"
	"testing"

	"github.com/vendhub/vendhub/internal/model"
)

// newTestStore opens an in-memory store that is torn down with the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestOperatorCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	has, err := s.HasAnyOperator(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("fresh store reports existing operators")
	}

	op := &model.Operator{
		Email:        "ops@example.com",
		PasswordHash: "$2a$10$fake",
		Name:         "Ops",
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := s.CreateOperator(ctx, op); err != nil {
		t.Fatalf("create operator: %v", err)
	}
	if op.ID == "" {
		t.Fatal("operator ID not assigned")
	}

	dup := &model.Operator{Email: "ops@example.com", PasswordHash: "x"}
	if err := s.CreateOperator(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}

	got, err := s.GetOperatorByEmail(ctx, "ops@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != op.ID || !got.IsAdmin {
		t.Errorf("got %+v, want id=%s admin", got, op.ID)
	}

	if err := s.UpdateOperatorLastLogin(ctx, op.ID); err != nil {
		t.Fatalf("update last login: %v", err)
	}
	got, err = s.GetOperator(ctx, op.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastLoginAt == nil {
		t.Error("last_login_at not set")
	}

	if _, err := s.GetOperator(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing operator error = %v, want ErrNotFound", err)
	}
}

func TestAuditEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []model.AuditEvent{
		{Action: "token.create", TokenID: "t1", TokenPrefix: "vh_aaaaa", OwnerID: "o1", CallerID: "o1", Outcome: model.OutcomeOK},
		{Action: "token.authorize", TokenID: "t1", TokenPrefix: "vh_aaaaa", OwnerID: "o1", IP: "10.0.0.9", Outcome: "rate_limited"},
		{Action: "token.revoke", TokenID: "t2", TokenPrefix: "vh_bbbbb", OwnerID: "o2", CallerID: "admin", Outcome: model.OutcomeOK},
	}
	for i := range events {
		if err := s.SaveAuditEvent(ctx, &events[i]); err != nil {
			t.Fatalf("save audit event: %v", err)
		}
	}

	all, total, err := s.ListAuditEvents(ctx, model.AuditFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("got %d/%d events, want 3/3", len(all), total)
	}

	denied, total, err := s.ListAuditEvents(ctx, model.AuditFilter{Outcome: "rate_limited", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || denied[0].TokenID != "t1" {
		t.Errorf("outcome filter returned %d events", total)
	}

	byToken, total, err := s.ListAuditEvents(ctx, model.AuditFilter{TokenID: "t2", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || byToken[0].Action != "token.revoke" {
		t.Errorf("token filter returned %+v", byToken)
	}
}

func TestDocumentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &model.Document{
		Name:        "planogram.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		SHA256:      "deadbeef",
		OwnerID:     "o1",
	}
	if err := s.CreateDocument(ctx, d); err != nil {
		t.Fatalf("create document: %v", err)
	}

	got, err := s.GetDocument(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "planogram.pdf" || got.SizeBytes != 1024 {
		t.Errorf("got %+v", got)
	}

	docs, total, err := s.ListDocuments(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(docs) != 1 {
		t.Fatalf("got %d/%d documents", len(docs), total)
	}

	if err := s.DeleteDocument(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}
