package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pdvsuite/pdv-sync/internal/models"
)

type captured struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

// newTestClient spins up a backend stub that records the request and
// replies with the given status and body.
func newTestClient(t *testing.T, status int, response string, got *captured) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method = r.Method
			got.path = r.URL.Path
			got.query = r.URL.Query()
			got.header = r.Header.Clone()
			got.body, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(server.URL, "secret-key", 7, 5*time.Second, logger)
}

func TestSelectBuildsWindowQuery(t *testing.T) {
	var got captured
	client := newTestClient(t, http.StatusOK, `[{"id":"c-1","name":"Maria"}]`, &got)

	since := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	until := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	rows, err := client.Select(context.Background(), "customers", since, until, 500)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "c-1" {
		t.Errorf("rows = %v, want the decoded customer", rows)
	}

	if got.path != "/rest/v1/customers" {
		t.Errorf("path = %s", got.path)
	}
	if got.method != http.MethodGet {
		t.Errorf("method = %s", got.method)
	}
	wantUpdated := []string{"gt.2026-08-30T10:00:00Z", "lte.2026-08-30T11:00:00Z"}
	if len(got.query["updated_at"]) != 2 ||
		got.query["updated_at"][0] != wantUpdated[0] ||
		got.query["updated_at"][1] != wantUpdated[1] {
		t.Errorf("updated_at filters = %v, want %v", got.query["updated_at"], wantUpdated)
	}
	if v := got.query.Get("store_id"); v != "eq.7" {
		t.Errorf("store_id filter = %q, want eq.7", v)
	}
	if v := got.query.Get("order"); v != "updated_at.asc" {
		t.Errorf("order = %q", v)
	}
	if v := got.query.Get("limit"); v != "500" {
		t.Errorf("limit = %q", v)
	}
}

func TestSelectFirstSyncOmitsLowerBound(t *testing.T) {
	var got captured
	client := newTestClient(t, http.StatusOK, `[]`, &got)

	until := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	if _, err := client.Select(context.Background(), "products", time.Time{}, until, 0); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(got.query["updated_at"]) != 1 || got.query["updated_at"][0] != "lte.2026-08-30T11:00:00Z" {
		t.Errorf("updated_at filters = %v, want only the upper bound", got.query["updated_at"])
	}
	if got.query.Has("limit") {
		t.Error("limit 0 must not emit a limit parameter")
	}
}

func TestAuthHeadersOnEveryCall(t *testing.T) {
	var got captured
	client := newTestClient(t, http.StatusOK, `[]`, &got)

	if _, err := client.Select(context.Background(), "customers", time.Time{}, time.Now(), 0); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if v := got.header.Get("apikey"); v != "secret-key" {
		t.Errorf("apikey header = %q", v)
	}
	if v := got.header.Get("Authorization"); v != "Bearer secret-key" {
		t.Errorf("Authorization header = %q", v)
	}
}

func TestUpsertScopesAndMerges(t *testing.T) {
	var got captured
	client := newTestClient(t, http.StatusCreated, `[{"id":"g-99","name":"Bebidas"}]`, &got)

	returned, err := client.Upsert(context.Background(), "product_groups",
		[]models.Row{{"name": "Bebidas"}}, "name")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(returned) != 1 || returned[0]["id"] != "g-99" {
		t.Errorf("returned = %v, want the stored row with its id", returned)
	}

	if v := got.query.Get("on_conflict"); v != "name" {
		t.Errorf("on_conflict = %q, want name", v)
	}
	if v := got.header.Get("Prefer"); v != "resolution=merge-duplicates,return=representation" {
		t.Errorf("Prefer = %q", v)
	}

	var sent []map[string]any
	if err := json.Unmarshal(got.body, &sent); err != nil {
		t.Fatalf("body is not a JSON array: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("body rows = %d, want 1", len(sent))
	}
	// The tenant id is stamped on by the client, never by the caller
	if sent[0]["store_id"] != float64(7) {
		t.Errorf("body store_id = %v, want 7", sent[0]["store_id"])
	}
}

func TestInsertAsksForRepresentation(t *testing.T) {
	var got captured
	client := newTestClient(t, http.StatusCreated, `[{"id":"s-1"}]`, &got)

	if _, err := client.Insert(context.Background(), "sales", []models.Row{{"total": 10.5}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if v := got.header.Get("Prefer"); v != "return=representation" {
		t.Errorf("Prefer = %q", v)
	}
	if got.query.Has("on_conflict") {
		t.Error("plain inserts must not carry on_conflict")
	}
}

func TestUpdatePatchesByRemoteID(t *testing.T) {
	var got captured
	client := newTestClient(t, http.StatusOK, `[{"id":"c-7","name":"Maria Silva"}]`, &got)

	row, err := client.Update(context.Background(), "customers",
		models.Row{"name": "Maria Silva"}, "id", "c-7")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if row["id"] != "c-7" {
		t.Errorf("row = %v, want the patched record", row)
	}

	if got.method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", got.method)
	}
	if v := got.query.Get("id"); v != "eq.c-7" {
		t.Errorf("id filter = %q, want eq.c-7", v)
	}
	// The tenant filter guards against patching another store's row
	if v := got.query.Get("store_id"); v != "eq.7" {
		t.Errorf("store_id filter = %q, want eq.7", v)
	}
}

func TestUpdateMatchingNothingIsAnError(t *testing.T) {
	client := newTestClient(t, http.StatusOK, `[]`, nil)

	_, err := client.Update(context.Background(), "customers", models.Row{"name": "x"}, "id", "missing")
	if err == nil {
		t.Fatal("an update matching no row must fail, not silently succeed")
	}
}

func TestBackendErrorsSurfaceStatusAndBody(t *testing.T) {
	client := newTestClient(t, http.StatusConflict, `{"message":"duplicate key"}`, nil)

	_, err := client.Insert(context.Background(), "customers", []models.Row{{"cpf": "111"}})
	if err == nil {
		t.Fatal("expected an error for a 409 response")
	}
	for _, want := range []string{"409", "duplicate key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestCheckConnection(t *testing.T) {
	t.Run("reachable even when unauthorized", func(t *testing.T) {
		client := newTestClient(t, http.StatusUnauthorized, ``, nil)
		if !client.CheckConnection(context.Background()) {
			t.Error("a 401 proves the backend is reachable")
		}
	})

	t.Run("server errors count as down", func(t *testing.T) {
		client := newTestClient(t, http.StatusBadGateway, ``, nil)
		if client.CheckConnection(context.Background()) {
			t.Error("a 502 means the backend is not usable")
		}
	})

	t.Run("dead endpoint", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		client := NewClient("http://127.0.0.1:1", "k", 7, time.Second, logger)
		if client.CheckConnection(context.Background()) {
			t.Error("a refused connection must report offline")
		}
	})
}
