// Package airtable is a small REST client for the Airtable API, used as
// the product catalog and as the external mirror for checkouts and orders.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL       = "https://api.airtable.com/v0"
	defaultInterval      = 220 * time.Millisecond
	errorBodyReadLimit   = 1024
	maxRecordsPerRequest = 100
)

var (
	// ErrRateLimited is returned when the API answers 429.
	ErrRateLimited = errors.New("airtable rate limit exceeded")
	// ErrNotFound is returned when the table or record does not exist.
	ErrNotFound = errors.New("airtable record not found")

	errAPIKeyRequired = errors.New("airtable api key is required")
	errBaseIDRequired = errors.New("airtable base id is required")
)

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable status %d: %s", e.StatusCode, e.Body)
}

// Record is a raw Airtable row.
type Record struct {
	ID          string         `json:"id,omitempty"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// Query narrows a List call.
type Query struct {
	Formula    string
	View       string
	MaxRecords int
	SortField  string
	SortDesc   bool
}

// Key renders the query deterministically; used as a cache key.
func (q Query) Key() string {
	dir := "asc"
	if q.SortDesc {
		dir = "desc"
	}
	return fmt.Sprintf("f=%s|v=%s|m=%d|s=%s:%s", q.Formula, q.View, q.MaxRecords, q.SortField, dir)
}

// Client talks to one Airtable base. All outbound calls pass through a
// single limiter so requests leave the process one at a time with a
// fixed spacing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	baseID     string
	apiKey     string
	limiter    *rate.Limiter
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithRequestInterval sets the fixed delay between outbound calls.
func WithRequestInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// NewClient builds a client for the given base.
func NewClient(apiKey, baseID string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	baseID = strings.TrimSpace(baseID)
	if baseID == "" {
		return nil, errBaseIDRequired
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		baseID:     baseID,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(defaultInterval), 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// List returns every record matching q, following pagination offsets.
func (c *Client) List(ctx context.Context, table string, q Query) ([]Record, error) {
	var (
		records []Record
		offset  string
	)
	for {
		params := url.Values{}
		if q.Formula != "" {
			params.Set("filterByFormula", q.Formula)
		}
		if q.View != "" {
			params.Set("view", q.View)
		}
		if q.MaxRecords > 0 {
			params.Set("maxRecords", strconv.Itoa(q.MaxRecords))
		}
		if q.SortField != "" {
			params.Set("sort[0][field]", q.SortField)
			if q.SortDesc {
				params.Set("sort[0][direction]", "desc")
			}
		}
		params.Set("pageSize", strconv.Itoa(maxRecordsPerRequest))
		if offset != "" {
			params.Set("offset", offset)
		}

		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)

		if page.Offset == "" || (q.MaxRecords > 0 && len(records) >= q.MaxRecords) {
			break
		}
		offset = page.Offset
	}
	if q.MaxRecords > 0 && len(records) > q.MaxRecords {
		records = records[:q.MaxRecords]
	}
	return records, nil
}

// Get fetches one record by id.
func (c *Client) Get(ctx context.Context, table, id string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a record and returns it with its new id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	body := map[string]any{"fields": fields, "typecast": true}
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update overwrites the given fields of a record.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	body := map[string]any{"fields": fields, "typecast": true}
	var rec Record
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(id), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("airtable queue: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal airtable request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute airtable request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode airtable response: %w", err)
	}
	return nil
}

// EscapeFormulaString quotes s for use inside a filterByFormula string literal.
func EscapeFormulaString(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
