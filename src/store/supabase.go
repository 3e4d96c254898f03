package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/supabase"
	"github.com/stake-plus/mod-review/src/types"
)

// SupabaseStore keeps applications in a hosted PostgREST table.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

func NewSupabaseStore(client *supabase.Client, table string) *SupabaseStore {
	if table == "" {
		table = DefaultTable
	}
	return &SupabaseStore{client: client, table: table}
}

func (s *SupabaseStore) Get(ctx context.Context, id types.ApplicationID) (*types.Application, error) {
	resp, err := s.client.From(s.table).Select("*").Eq("id", id).Single().Execute(ctx)
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && (apiErr.NoRows() || apiErr.InvalidKey()) {
			return nil, review.ErrNotFound
		}
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	var app types.Application
	if err := resp.Decode(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *SupabaseStore) CompareAndSet(ctx context.Context, id types.ApplicationID, expect types.Status, t types.Transition) (*types.Application, error) {
	resp, err := s.client.From(s.table).Eq("id", id).Eq("status", expect).Update(ctx, t.Columns())
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.InvalidKey() {
			return nil, review.ErrNotFound
		}
		return nil, fmt.Errorf("update application %s: %w", id, err)
	}
	var rows []types.Application
	if err := resp.Decode(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// Either the row is gone or someone else moved it out of expect.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, review.ErrStale
	}
	return &rows[0], nil
}

func (s *SupabaseStore) Insert(ctx context.Context, sub types.Submission) (*types.Application, error) {
	row := map[string]any{
		"discord_id":       sub.DiscordID,
		"discord_username": sub.DiscordUsername,
		"score":            sub.Score,
		"total_questions":  sub.TotalQuestions,
		"correct_answers":  sub.CorrectAnswers,
		"wrong_answers":    sub.WrongAnswers,
		"conversation_log": sub.ConversationLog,
		"answers":          sub.Answers,
		"status":           types.StatusPending,
	}
	resp, err := s.client.From(s.table).Insert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	var rows []types.Application
	if err := resp.Decode(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("insert application: empty representation")
	}
	return &rows[0], nil
}

func (s *SupabaseStore) List(ctx context.Context, f types.ListFilter) ([]types.Application, error) {
	q := s.client.From(s.table).Select("*").Order("created_at", false).Limit(pageSize(f.Limit)).Offset(f.Offset)
	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	var apps []types.Application
	if err := resp.Decode(&apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// Counts asks PostgREST for an exact count per status; only the Content-Range header is read.
func (s *SupabaseStore) Counts(ctx context.Context) (map[types.Status]int64, error) {
	out := make(map[types.Status]int64, 3)
	for _, st := range []types.Status{types.StatusPending, types.StatusAccepted, types.StatusRejected} {
		resp, err := s.client.From(s.table).Select("id").Eq("status", st).Limit(1).Count("exact").Execute(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s applications: %w", st, err)
		}
		n, ok := resp.Total()
		if !ok {
			return nil, fmt.Errorf("count %s applications: no Content-Range in response", st)
		}
		out[st] = n
	}
	return out, nil
}
