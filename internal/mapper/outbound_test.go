package mapper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pdvsuite/pdv-sync/internal/models"
)

// stubTranslator serves fixed mappings without touching a database.
type stubTranslator struct {
	l2r map[string]map[int64]string
	r2l map[string]map[string]int64
}

func (s *stubTranslator) LocalToRemote(_ context.Context, table string, localID int64) (string, error) {
	return s.l2r[table][localID], nil
}

func (s *stubTranslator) RemoteToLocal(_ context.Context, table string, remoteID string) (int64, error) {
	return s.r2l[table][remoteID], nil
}

func newTestBuilder(tr *stubTranslator) *Builder {
	if tr == nil {
		tr = &stubTranslator{}
	}
	if tr.l2r == nil {
		tr.l2r = map[string]map[int64]string{}
	}
	if tr.r2l == nil {
		tr.r2l = map[string]map[string]int64{}
	}
	return NewBuilder(tr, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOutboundStripsControlAndJoinColumns(t *testing.T) {
	b := newTestBuilder(&stubTranslator{
		l2r: map[string]map[int64]string{"product_groups": {5: "g-99"}},
	})

	rec := models.PendingRecord{LocalID: 3, Data: models.Row{
		"id":               int64(3),
		"id_web":           nil,
		"sync_status":      "pending_create",
		"last_modified_at": "2026-08-30T10:00:00Z",
		"group_id":         int64(5),
		"group_name":       "Bebidas",
		"barcode":          "7891000100103",
		"name":             "Guaraná 2L",
		"price":            int64(1050),
		"cost_price":       int64(700),
	}}

	payload, err := b.Outbound(context.Background(), "products", rec)
	if err != nil {
		t.Fatalf("Outbound failed: %v", err)
	}

	for _, forbidden := range []string{"id", "id_web", "sync_status", "last_modified_at", "group_name"} {
		if _, ok := payload[forbidden]; ok {
			t.Errorf("payload still carries local-only column %s", forbidden)
		}
	}
	if payload["group_id"] != "g-99" {
		t.Errorf("group_id = %v, want remote id g-99", payload["group_id"])
	}
	if payload["price"] != 10.50 {
		t.Errorf("price = %v, want 10.50", payload["price"])
	}
	if payload["name"] != "Guaraná 2L" {
		t.Errorf("name = %v, want Guaraná 2L", payload["name"])
	}
}

func TestOutboundNotReadyWhenParentUnsynced(t *testing.T) {
	b := newTestBuilder(nil) // translator knows nothing

	rec := models.PendingRecord{LocalID: 1, Data: models.Row{
		"id":       int64(1),
		"group_id": int64(5),
		"name":     "Guaraná 2L",
	}}

	_, err := b.Outbound(context.Background(), "products", rec)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestOutboundNullableForeignKeyPassesThrough(t *testing.T) {
	b := newTestBuilder(&stubTranslator{
		l2r: map[string]map[int64]string{
			"users":         {1: "u-1"},
			"cash_sessions": {2: "cs-2"},
		},
	})

	// Anonymous sale: customer_id is nullable by design
	rec := models.PendingRecord{LocalID: 7, Data: models.Row{
		"id":              int64(7),
		"user_id":         int64(1),
		"cash_session_id": int64(2),
		"customer_id":     nil,
		"total":           int64(2599),
		"sold_at":         "2026-08-30T14:00:00Z",
	}}

	payload, err := b.Outbound(context.Background(), "sales", rec)
	if err != nil {
		t.Fatalf("Outbound failed: %v", err)
	}
	value, present := payload["customer_id"]
	if !present {
		t.Fatal("nullable customer_id was dropped from the payload")
	}
	if value != nil {
		t.Errorf("customer_id = %v, want nil", value)
	}
	if payload["total"] != 25.99 {
		t.Errorf("total = %v, want 25.99", payload["total"])
	}
}

func TestOutboundRequiredNullForeignKeyIsNotReady(t *testing.T) {
	b := newTestBuilder(&stubTranslator{
		l2r: map[string]map[int64]string{"sales": {1: "s-1"}},
	})

	rec := models.PendingRecord{LocalID: 9, Data: models.Row{
		"id":         int64(9),
		"sale_id":    int64(1),
		"product_id": nil, // corrupt: product_id is mandatory
		"quantity":   2.0,
	}}

	_, err := b.Outbound(context.Background(), "sale_items", rec)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestOutboundDefaultsUnparseableMoneyToZero(t *testing.T) {
	b := newTestBuilder(&stubTranslator{
		l2r: map[string]map[int64]string{"product_groups": {5: "g-99"}},
	})

	rec := models.PendingRecord{LocalID: 4, Data: models.Row{
		"id":       int64(4),
		"group_id": int64(5),
		"name":     "Suco",
		"price":    []byte("not-a-number"),
	}}

	payload, err := b.Outbound(context.Background(), "products", rec)
	if err != nil {
		t.Fatalf("Outbound failed: %v", err)
	}
	if payload["price"] != 0.0 {
		t.Errorf("price = %v, want 0", payload["price"])
	}
}

func TestOutboundKeepsNullableMoneyNull(t *testing.T) {
	b := newTestBuilder(&stubTranslator{
		l2r: map[string]map[int64]string{"users": {1: "u-1"}},
	})

	// Open session: no closing amount exists yet
	rec := models.PendingRecord{LocalID: 6, Data: models.Row{
		"id":             int64(6),
		"user_id":        int64(1),
		"opened_at":      "2026-08-31T08:00:00Z",
		"opening_amount": int64(10000),
		"closed_at":      nil,
		"closing_amount": nil,
		"status":         "open",
	}}

	payload, err := b.Outbound(context.Background(), "cash_sessions", rec)
	if err != nil {
		t.Fatalf("Outbound failed: %v", err)
	}
	value, present := payload["closing_amount"]
	if !present {
		t.Fatal("nullable closing_amount was dropped from the payload")
	}
	if value != nil {
		t.Errorf("closing_amount = %v, want nil: an open session must not read as closed with zero", value)
	}
	if payload["opening_amount"] != 100.0 {
		t.Errorf("opening_amount = %v, want 100.0", payload["opening_amount"])
	}
}

func TestOutboundDecodesLegacyText(t *testing.T) {
	b := newTestBuilder(nil)

	// "Açúcar" with ç and ú as Windows-1252 single bytes
	legacy := []byte{'A', 0xE7, 0xFA, 'c', 'a', 'r'}
	rec := models.PendingRecord{LocalID: 2, Data: models.Row{
		"id":   int64(2),
		"name": legacy,
	}}

	payload, err := b.Outbound(context.Background(), "product_groups", rec)
	if err != nil {
		t.Fatalf("Outbound failed: %v", err)
	}
	if payload["name"] != "Açúcar" {
		t.Errorf("name = %q, want Açúcar", payload["name"])
	}
}
