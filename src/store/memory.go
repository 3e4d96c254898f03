package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/types"
)

// Memory is a process-local store for development and tests. Ids are sequential.
type Memory struct {
	mu   sync.Mutex
	next int64
	apps map[types.ApplicationID]types.Application
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{apps: make(map[types.ApplicationID]types.Application), now: time.Now}
}

func (m *Memory) Get(_ context.Context, id types.ApplicationID) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, review.ErrNotFound
	}
	return &app, nil
}

func (m *Memory) CompareAndSet(_ context.Context, id types.ApplicationID, expect types.Status, t types.Transition) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, review.ErrNotFound
	}
	if app.Status != expect {
		return nil, review.ErrStale
	}
	at := t.ReviewedAt.UTC()
	app.Status = t.Status
	app.ReviewedBy = t.ReviewedBy
	app.ReviewedAt = &at
	app.UpdatedAt = at
	if t.RejectionReason != "" {
		app.RejectionReason = t.RejectionReason
	}
	if t.ReviewNotes != "" {
		app.ReviewNotes = t.ReviewNotes
	}
	m.apps[id] = app
	return &app, nil
}

func (m *Memory) Insert(_ context.Context, sub types.Submission) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	now := m.now().UTC()
	app := types.Application{
		ID:              types.ApplicationID(strconv.FormatInt(m.next, 10)),
		DiscordID:       sub.DiscordID,
		DiscordUsername: sub.DiscordUsername,
		Score:           sub.Score,
		TotalQuestions:  sub.TotalQuestions,
		CorrectAnswers:  sub.CorrectAnswers,
		WrongAnswers:    sub.WrongAnswers,
		ConversationLog: sub.ConversationLog,
		Answers:         sub.Answers,
		Status:          types.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.apps[app.ID] = app
	return &app, nil
}

func (m *Memory) List(_ context.Context, f types.ListFilter) ([]types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apps := make([]types.Application, 0, len(m.apps))
	for _, a := range m.apps {
		if f.Status == "" || a.Status == f.Status {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return idLess(apps[j].ID, apps[i].ID)
		}
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= len(apps) {
		return []types.Application{}, nil
	}
	apps = apps[f.Offset:]
	if n := pageSize(f.Limit); len(apps) > n {
		apps = apps[:n]
	}
	return apps, nil
}

func (m *Memory) Counts(context.Context) (map[types.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[types.Status]int64{types.StatusPending: 0, types.StatusAccepted: 0, types.StatusRejected: 0}
	for _, a := range m.apps {
		out[a.Status]++
	}
	return out, nil
}

func idLess(a, b types.ApplicationID) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
