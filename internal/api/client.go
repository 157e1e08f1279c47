// Package api is the thin authenticated REST client for the multi-tenant
// backend. It speaks the PostgREST dialect: one route per table, filters
// as query parameters, upsert behavior driven by Prefer headers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdvsuite/pdv-sync/internal/models"
)

const tenantColumn = "store_id"

// Client wraps the backend REST endpoint with per-call timeouts and tenant
// scoping. Every outbound payload gets the store id injected and every
// select is filtered by it, so one till can never read or write another
// store's rows.
type Client struct {
	baseURL string
	apiKey  string
	storeID int
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, storeID int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		storeID: storeID,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CheckConnection is the lightweight pre-flight probe. Any response at all
// (even an auth error) proves the backend is reachable
func (c *Client) CheckConnection(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return false
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Connectivity probe failed", "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Select fetches the table's rows whose updated_at falls in (since, until],
// oldest first. A zero since means "from the beginning" (first sync of a
// fresh till). limit 0 means no limit.
func (c *Client) Select(ctx context.Context, table string, since, until time.Time, limit int) ([]models.Row, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set(tenantColumn, "eq."+strconv.Itoa(c.storeID))
	if !since.IsZero() {
		query.Set("updated_at", "gt."+since.UTC().Format(time.RFC3339))
	}
	query.Add("updated_at", "lte."+until.UTC().Format(time.RFC3339))
	query.Set("order", "updated_at.asc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []models.Row
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("select on %s failed: %w", table, err)
	}
	return rows, nil
}

// Insert sends a batch of new rows and returns them as the backend stored
// them, remote ids included. The call is atomic: either every row is
// accepted or none is
func (c *Client) Insert(ctx context.Context, table string, rows []models.Row) ([]models.Row, error) {
	headers := map[string]string{"Prefer": "return=representation"}

	var returned []models.Row
	if err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, c.scoped(rows), headers, &returned); err != nil {
		return nil, fmt.Errorf("insert on %s failed: %w", table, err)
	}
	return returned, nil
}

// Upsert is Insert with on-conflict resolution on the table's natural
// business key: a row whose key already exists remotely becomes an update
func (c *Client) Upsert(ctx context.Context, table string, rows []models.Row, conflictColumn string) ([]models.Row, error) {
	query := url.Values{}
	query.Set("on_conflict", conflictColumn)
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=representation"}

	var returned []models.Row
	if err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, query, c.scoped(rows), headers, &returned); err != nil {
		return nil, fmt.Errorf("upsert on %s failed: %w", table, err)
	}
	return returned, nil
}

// Update patches the single remote row matching matchColumn = matchValue
func (c *Client) Update(ctx context.Context, table string, row models.Row, matchColumn, matchValue string) (models.Row, error) {
	query := url.Values{}
	query.Set(matchColumn, "eq."+matchValue)
	query.Set(tenantColumn, "eq."+strconv.Itoa(c.storeID))
	headers := map[string]string{"Prefer": "return=representation"}

	var returned []models.Row
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/"+table, query, row, headers, &returned); err != nil {
		return nil, fmt.Errorf("update on %s failed: %w", table, err)
	}
	if len(returned) == 0 {
		return nil, fmt.Errorf("update on %s matched no remote row (%s=%s)", table, matchColumn, matchValue)
	}
	return returned[0], nil
}

// RPC invokes a named function on the backend
func (c *Client) RPC(ctx context.Context, function string, args models.Row) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+function, nil, args, nil, &result); err != nil {
		return nil, fmt.Errorf("rpc %s failed: %w", function, err)
	}
	return result, nil
}

// scoped stamps the tenant column onto every outbound payload
func (c *Client) scoped(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		scoped := models.Row{}
		for k, v := range row {
			scoped[k] = v
		}
		scoped[tenantColumn] = c.storeID
		out[i] = scoped
	}
	return out
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
