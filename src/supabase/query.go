package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// From starts a query builder for a table.
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table}
}

// Query builds a PostgREST request against one table.
type Query struct {
	client  *Client
	table   string
	columns string
	filters [][2]string
	orders  []string
	limit   int
	offset  int
	single  bool
	count   string
}

// Select specifies columns to select.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, [2]string{column, fmt.Sprintf("eq.%v", value)})
	return q
}

// Order adds an ORDER BY clause.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit sets the LIMIT.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset sets the OFFSET.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Single expects exactly one row; zero rows comes back as a 406 APIError.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// Count asks PostgREST for a total in Content-Range (exact, planned, estimated).
func (q *Query) Count(kind string) *Query {
	q.count = kind
	return q
}

func (q *Query) endpoint(withParams bool) string {
	reqURL := q.client.baseURL + "/rest/v1/" + url.PathEscape(q.table)
	params := url.Values{}
	for _, f := range q.filters {
		params.Add(f[0], f[1])
	}
	if withParams {
		if q.columns != "" {
			params.Set("select", q.columns)
		}
		if len(q.orders) > 0 {
			params.Set("order", strings.Join(q.orders, ","))
		}
		if q.limit > 0 {
			params.Set("limit", strconv.Itoa(q.limit))
		}
		if q.offset > 0 {
			params.Set("offset", strconv.Itoa(q.offset))
		}
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

// Execute runs a SELECT.
func (q *Query) Execute(ctx context.Context) (*Response, error) {
	h := http.Header{}
	if q.single {
		h.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if q.count != "" {
		h.Set("Prefer", "count="+q.count)
	}
	return q.client.do(ctx, http.MethodGet, q.endpoint(true), nil, h)
}

// Insert posts rows and returns the stored representation.
func (q *Query) Insert(ctx context.Context, rows any) (*Response, error) {
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("supabase: marshal insert: %w", err)
	}
	h := http.Header{}
	h.Set("Prefer", "return=representation")
	return q.client.do(ctx, http.MethodPost, q.endpoint(false), body, h)
}

// Update patches every row matching the filters and returns the updated rows.
// An empty array means nothing matched.
func (q *Query) Update(ctx context.Context, patch any) (*Response, error) {
	if len(q.filters) == 0 {
		return nil, fmt.Errorf("supabase: refusing unfiltered update on %s", q.table)
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("supabase: marshal update: %w", err)
	}
	h := http.Header{}
	h.Set("Prefer", "return=representation")
	return q.client.do(ctx, http.MethodPatch, q.endpoint(false), body, h)
}
