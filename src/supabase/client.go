// Package supabase is a small PostgREST client for the hosted record store.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/mod-review/src/webclient"
	"github.com/tidwall/gjson"
)

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	Retry      webclient.Policy
}

// Client talks to /rest/v1 of a Supabase project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      webclient.Policy
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("supabase: URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("supabase: API key is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = webclient.NewDefault(30 * time.Second)
	}
	retry := cfg.Retry
	if retry.Attempts == 0 {
		retry = webclient.DefaultPolicy()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: hc,
		retry:      retry,
	}, nil
}

// Response is a raw PostgREST reply.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}

// Total parses the row count from Content-Range ("0-24/312"). Requires Count on the query.
func (r *Response) Total() (int64, bool) {
	cr := r.Header.Get("Content-Range")
	i := strings.LastIndexByte(cr, '/')
	if i < 0 || cr[i+1:] == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(cr[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// APIError is a non-2xx PostgREST reply.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
	Hint       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("supabase: %d: %s", e.StatusCode, msg)
}

// NoRows reports whether a Single() query matched nothing.
func (e *APIError) NoRows() bool {
	return e.StatusCode == http.StatusNotAcceptable && (e.Code == "PGRST116" || e.Code == "")
}

// InvalidKey reports a filter value Postgres could not cast to the column type
// (22P02), such as a non-numeric id against a bigint key.
func (e *APIError) InvalidKey() bool {
	return e.StatusCode == http.StatusBadRequest && e.Code == "22P02"
}

// RateLimited reports a 429 from the gateway.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if gjson.ValidBytes(body) {
		apiErr.Code = gjson.GetBytes(body, "code").String()
		apiErr.Message = gjson.GetBytes(body, "message").String()
		apiErr.Details = gjson.GetBytes(body, "details").String()
		apiErr.Hint = gjson.GetBytes(body, "hint").String()
	} else if len(body) > 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// do performs one logical request. Only reads are retried: a write whose reply was
// lost may already have landed, and replaying a conditional PATCH would report it as
// someone else's.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte, header http.Header) (*Response, error) {
	policy := c.retry
	if method != http.MethodGet {
		policy.Attempts = 1
	}

	var respHeader http.Header
	status, respBody, err := webclient.DoWithRetry(ctx, policy, func(ctx context.Context) (int, []byte, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
		if err != nil {
			return 0, nil, fmt.Errorf("supabase: create request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		c.setHeaders(req)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("supabase: %s %s: %w", method, reqURL, err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("supabase: read body: %w", err)
		}
		respHeader = resp.Header
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, decodeError(status, respBody)
	}
	return &Response{StatusCode: status, Body: respBody, Header: respHeader}, nil
}
