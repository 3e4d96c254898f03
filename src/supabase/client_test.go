package supabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stake-plus/mod-review/src/webclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		URL:    srv.URL + "/",
		APIKey: "service-key",
		Retry:  webclient.Policy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return c
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}

func TestExecuteBuildsPostgRESTQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/applications", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "eq.pending", q.Get("status"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "20", q.Get("offset"))
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "20-29/312")
		_, _ = io.WriteString(w, `[]`)
	})

	resp, err := c.From("applications").Select("*").Eq("status", "pending").
		Order("created_at", false).Limit(10).Offset(20).Count("exact").Execute(context.Background())
	require.NoError(t, err)
	total, ok := resp.Total()
	assert.True(t, ok)
	assert.EqualValues(t, 312, total)
}

func TestSingleNoRowsIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = io.WriteString(w, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows","hint":null}`)
	})

	_, err := c.From("applications").Select("*").Eq("id", 7).Single().Execute(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.NoRows())
	assert.Equal(t, "The result contains 0 rows", apiErr.Details)
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"id":1,"status":"pending"}]`)
	})

	resp, err := c.From("applications").Select("*").Eq("status", "pending").Execute(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	var rows []map[string]any
	require.NoError(t, resp.Decode(&rows))
	assert.Len(t, rows, 1)
}

func TestUpdateIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		atomic.AddInt32(&calls, 1)
		// the write landed upstream but the reply was lost
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.From("applications").Eq("id", 1).Eq("status", "pending").Update(context.Background(), map[string]string{"status": "accepted"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestInvalidKeyAndRateLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"22P02","message":"invalid input syntax for type bigint: \"abc\""}`)
	})

	_, err := c.From("applications").Select("*").Eq("id", "abc").Single().Execute(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.InvalidKey())
	assert.False(t, apiErr.NoRows())
	assert.False(t, apiErr.RateLimited())

	assert.True(t, (&APIError{StatusCode: http.StatusTooManyRequests}).RateLimited())
}

func TestUpdateRequiresFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})
	_, err := c.From("applications").Update(context.Background(), map[string]string{"status": "accepted"})
	assert.Error(t, err)
}

func TestInsertIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream unavailable")
	})

	_, err := c.From("applications").Insert(context.Background(), map[string]string{"discord_id": "1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
