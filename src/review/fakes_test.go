package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stake-plus/mod-review/src/types"
)

type memStore struct {
	mu      sync.Mutex
	apps    map[types.ApplicationID]types.Application
	casErr  error
	getErr  error
	casHook func()
}

func newMemStore(apps ...types.Application) *memStore {
	s := &memStore{apps: make(map[types.ApplicationID]types.Application)}
	for _, a := range apps {
		if a.Status == "" {
			a.Status = types.StatusPending
		}
		s.apps[a.ID] = a
	}
	return s
}

func (s *memStore) Get(_ context.Context, id types.ApplicationID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	a, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *memStore) CompareAndSet(_ context.Context, id types.ApplicationID, expect types.Status, t types.Transition) (*types.Application, error) {
	if s.casHook != nil {
		s.casHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casErr != nil {
		return nil, s.casErr
	}
	a, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != expect {
		return nil, ErrStale
	}
	at := t.ReviewedAt
	a.Status = t.Status
	a.ReviewedBy = t.ReviewedBy
	a.ReviewedAt = &at
	a.UpdatedAt = at
	if t.RejectionReason != "" {
		a.RejectionReason = t.RejectionReason
	}
	if t.ReviewNotes != "" {
		a.ReviewNotes = t.ReviewNotes
	}
	s.apps[id] = a
	return &a, nil
}

func (s *memStore) set(id types.ApplicationID, status types.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.apps[id]
	a.Status = status
	s.apps[id] = a
}

type dm struct {
	discordID, title, body string
	color                  int
}

type fakeNotifier struct {
	mu         sync.Mutex
	hasRole    map[string]bool
	grantErr   error
	dmErr      error
	grants     int
	dms        []dm
	grantDelay time.Duration
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{hasRole: make(map[string]bool)}
}

func (n *fakeNotifier) GrantRole(ctx context.Context, discordID string) (bool, error) {
	if n.grantDelay > 0 {
		select {
		case <-time.After(n.grantDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.grantErr != nil {
		return false, n.grantErr
	}
	if n.hasRole[discordID] {
		return true, nil
	}
	n.grants++
	n.hasRole[discordID] = true
	return false, nil
}

func (n *fakeNotifier) SendDirectMessage(_ context.Context, discordID, title, body string, color int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dmErr != nil {
		return n.dmErr
	}
	n.dms = append(n.dms, dm{discordID, title, body, color})
	return nil
}

func (n *fakeNotifier) grantCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.grants
}

type fakeSink struct {
	mu     sync.Mutex
	events []types.TransitionEvent
	err    error
}

func (s *fakeSink) Emit(_ context.Context, ev types.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type countingRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *countingRecorder) ObserveTransition(action types.Action, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[string]int)
	}
	r.results[string(action)+":"+result]++
}

func (r *countingRecorder) ObserveAutomation(string, bool) {}

var errDiscordDown = errors.New("discord gateway unavailable")
