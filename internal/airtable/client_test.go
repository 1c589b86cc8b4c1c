package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("key", "app123", WithBaseURL(srv.URL), WithRequestInterval(time.Millisecond))
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient("", "app")
	assert.Error(t, err)

	_, err = NewClient("key", " ")
	assert.Error(t, err)
}

func TestList_FollowsOffsets(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "/app123/Products", r.URL.Path)

		n := atomic.AddInt32(&calls, 1)
		resp := map[string]any{}
		if n == 1 {
			assert.Empty(t, r.URL.Query().Get("offset"))
			resp["records"] = []map[string]any{{"id": "rec1", "fields": map[string]any{"Name": "A"}}}
			resp["offset"] = "next"
		} else {
			assert.Equal(t, "next", r.URL.Query().Get("offset"))
			resp["records"] = []map[string]any{{"id": "rec2", "fields": map[string]any{"Name": "B"}}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	records, err := client.List(context.Background(), "Products", Query{})

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "B", records[1].String("Name"))
}

func TestList_PassesQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "{Featured}", q.Get("filterByFormula"))
		assert.Equal(t, "10", q.Get("maxRecords"))
		assert.Equal(t, "Name", q.Get("sort[0][field]"))
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	records, err := client.List(context.Background(), "Products", Query{Formula: "{Featured}", MaxRecords: 10, SortField: "Name"})

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDo_MapsStatusCodes(t *testing.T) {
	status := http.StatusTooManyRequests
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"x"}`))
	})

	_, err := client.List(context.Background(), "Products", Query{})
	assert.ErrorIs(t, err, ErrRateLimited)

	status = http.StatusNotFound
	_, err = client.Get(context.Background(), "Products", "rec1")
	assert.ErrorIs(t, err, ErrNotFound)

	status = http.StatusUnprocessableEntity
	_, err = client.Create(context.Background(), "Products", map[string]any{"Name": "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestCreateAndUpdate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/app123/Checkouts", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":"recNew","fields":{"Status":"started"}}`))
		case http.MethodPatch:
			assert.Equal(t, "/app123/Checkouts/recNew", r.URL.Path)
			assert.Equal(t, "completed", body.Fields["Status"])
			_, _ = w.Write([]byte(`{"id":"recNew","fields":{"Status":"completed"}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	rec, err := client.Create(context.Background(), "Checkouts", map[string]any{"Status": "started"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", rec.ID)

	rec, err = client.Update(context.Background(), "Checkouts", rec.ID, map[string]any{"Status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, "completed", rec.String("Status"))
}

func TestRecordFieldHelpers(t *testing.T) {
	rec := Record{Fields: map[string]any{
		"Price":    float64(49.5),
		"Active":   true,
		"Category": []any{"recCat"},
		"Images":   []any{map[string]any{"url": "https://img/1.png"}, map[string]any{"foo": "bar"}},
	}}

	assert.Equal(t, "49.5", rec.String("Price"))
	assert.True(t, rec.Bool("Active"))
	assert.Equal(t, []string{"recCat"}, rec.Strings("Category"))
	assert.Equal(t, "recCat", rec.String("Category"))
	assert.Equal(t, []string{"https://img/1.png"}, rec.AttachmentURLs("Images"))
	assert.Equal(t, "", rec.String("Missing"))
}

func TestEscapeFormulaString(t *testing.T) {
	assert.Equal(t, `o\'brien`, EscapeFormulaString("o'brien"))
}
