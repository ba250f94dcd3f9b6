package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serani-ai/serani/internal/profile"
	"github.com/serani-ai/serani/store"
)

// memDriver is an in-memory store.Driver for handler tests.
type memDriver struct {
	mu         sync.Mutex
	users      []*store.User
	tasks      []*store.Task
	turns      []*store.ConversationTurn
	nextUserID int32
	nextTaskID int32
}

func (d *memDriver) Migrate(ctx context.Context) error { return nil }
func (d *memDriver) Close() error                      { return nil }

func (d *memDriver) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextUserID++
	create.ID = d.nextUserID
	d.users = append(d.users, create)
	return create, nil
}

func (d *memDriver) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.User
	for _, u := range d.users {
		if find.ID != nil && u.ID != *find.ID {
			continue
		}
		if find.Username != nil && u.Username != *find.Username {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *memDriver) CreateTask(ctx context.Context, create *store.CreateTask) (*store.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tasks {
		if t.UID == create.UID {
			return t, nil
		}
	}
	d.nextTaskID++
	t := &store.Task{
		ID:          d.nextTaskID,
		UID:         create.UID,
		UserID:      create.UserID,
		Title:       create.Title,
		StartTs:     create.StartTs,
		DurationMin: create.DurationMin,
		Status:      store.TaskStatusPending,
		Priority:    create.Priority,
		RemindTs:    create.RemindTs,
	}
	d.tasks = append(d.tasks, t)
	return t, nil
}

func (d *memDriver) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Task
	for _, t := range d.tasks {
		if find.UserID != nil && t.UserID != *find.UserID {
			continue
		}
		if find.Status != nil && t.Status != *find.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *memDriver) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tasks {
		if t.ID == update.ID {
			if update.Status != nil {
				t.Status = *update.Status
			}
			if update.StartTs != nil {
				t.StartTs = *update.StartTs
			}
			if update.RemindTs != nil {
				t.RemindTs = update.RemindTs
			}
			return t, nil
		}
	}
	return nil, errors.New("task not found")
}

func (d *memDriver) DeleteTask(ctx context.Context, id int32) error { return nil }

func (d *memDriver) ResolveTaskConflict(ctx context.Context, resolve *store.ResolveTaskConflict) (*store.Task, error) {
	return d.CreateTask(ctx, resolve.Create)
}

func (d *memDriver) CreateConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = int64(len(d.turns) + 1)
	d.turns = append(d.turns, create)
	return create, nil
}

func (d *memDriver) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.ConversationTurn
	for i := len(d.turns) - 1; i >= 0; i-- {
		if find.UserID != nil && d.turns[i].UserID != *find.UserID {
			continue
		}
		out = append(out, d.turns[i])
		if find.Limit != nil && len(out) >= *find.Limit {
			break
		}
	}
	return out, nil
}

func (d *memDriver) UpsertMemorySummary(ctx context.Context, upsert *store.MemorySummary) (*store.MemorySummary, error) {
	return upsert, nil
}

func (d *memDriver) SearchMemorySummaries(ctx context.Context, search *store.SearchMemorySummary) ([]*store.MemorySummaryMatch, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	p := &profile.Profile{
		Mode:                   "dev",
		Driver:                 "sqlite",
		Version:                "test",
		DefaultTaskDurationMin: 60,
		RecentTurnLimit:        4,
		RetrievalTopK:          5,
		ContextBudgetChars:     4000,
		SummaryEveryNTurns:     4,
		ClarificationRetries:   3,
		SummaryRetryLimit:      3,
	}
	st := store.New(&memDriver{}, p)
	s, err := NewServer(context.Background(), p, st)
	require.NoError(t, err)
	return s
}

func postChat(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestChatRequiresFields(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(s, `{"username": "", "message": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(s, `{"username": "alice", "message": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatDegradesWithoutProvider(t *testing.T) {
	// No LLM key configured: the keyword fallback routes queries and the
	// reply still arrives.
	s := newTestServer(t)

	rec := postChat(s, `{"username": "alice", "message": "show my tasks"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reply, "nothing scheduled")
	assert.Equal(t, "idle", resp.State)
}

func TestChatCreatesUserOnFirstContact(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(s, `{"username": "bob", "message": "show my tasks"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := s.store.GetUser(context.Background(), &store.FindUser{Username: ptr("bob")})
	require.NoError(t, err)
	require.NotNil(t, user)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	postChat(s, `{"username": "alice", "message": "show my tasks"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "serani_core_chat_requests_total")
}

func ptr[T any](v T) *T { return &v }
