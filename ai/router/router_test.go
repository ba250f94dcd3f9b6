package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serani-ai/serani/ai/intent"
	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/ai/metrics"
	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/store"
)

// ref is a Wednesday morning; "tomorrow" is 2025-11-13.
var ref = time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC)

// scriptedLLM pops one canned response per Chat call.
type scriptedLLM struct {
	responses []string
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	if len(s.responses) == 0 {
		return "", nil, errors.New("script exhausted")
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, &llm.CallStats{}, nil
}

type fakeStore struct {
	mu     sync.Mutex
	nextID int32
	tasks  []*store.Task
	turns  []*store.ConversationTurn
}

func (f *fakeStore) seedTask(title string, start time.Time, durationMin int32) *store.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := &store.Task{
		ID:          f.nextID,
		UID:         title,
		UserID:      1,
		Title:       title,
		StartTs:     start.Unix(),
		DurationMin: durationMin,
		Status:      store.TaskStatusPending,
		Priority:    store.TaskPriorityMedium,
		CreatedTs:   int64(f.nextID),
	}
	f.tasks = append(f.tasks, t)
	return t
}

func (f *fakeStore) CreateTask(ctx context.Context, create *store.CreateTask) (*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createLocked(create), nil
}

func (f *fakeStore) createLocked(create *store.CreateTask) *store.Task {
	for _, t := range f.tasks {
		if t.UID == create.UID {
			return t
		}
	}
	f.nextID++
	t := &store.Task{
		ID:          f.nextID,
		UID:         create.UID,
		UserID:      create.UserID,
		Title:       create.Title,
		Description: create.Description,
		StartTs:     create.StartTs,
		DurationMin: create.DurationMin,
		Status:      store.TaskStatusPending,
		Priority:    create.Priority,
		RemindTs:    create.RemindTs,
		CreatedTs:   int64(f.nextID),
	}
	f.tasks = append(f.tasks, t)
	return t
}

func (f *fakeStore) ListActiveTasks(ctx context.Context, userID int32, from, to *time.Time) ([]*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Task
	for _, t := range f.tasks {
		if t.UserID != userID || t.Status != store.TaskStatusPending {
			continue
		}
		if from != nil && t.StartTs < from.Unix() {
			continue
		}
		if to != nil && t.StartTs >= to.Unix() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID != update.ID {
			continue
		}
		if update.StartTs != nil {
			t.StartTs = *update.StartTs
		}
		if update.DurationMin != nil {
			t.DurationMin = *update.DurationMin
		}
		if update.Status != nil {
			t.Status = *update.Status
		}
		if update.RemindTs != nil {
			t.RemindTs = update.RemindTs
		}
		return t, nil
	}
	return nil, errors.New("task not found")
}

func (f *fakeStore) ResolveTaskConflict(ctx context.Context, resolve *store.ResolveTaskConflict) (*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID != resolve.CancelTaskID {
			continue
		}
		if resolve.HardDelete {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
		} else {
			t.Status = store.TaskStatusCancelled
		}
		break
	}
	return f.createLocked(resolve.Create), nil
}

func (f *fakeStore) AppendConversationTurn(ctx context.Context, turn *store.ConversationTurn) (*store.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turn.ID = int64(len(f.turns) + 1)
	f.turns = append(f.turns, turn)
	return turn, nil
}

func (f *fakeStore) RecentConversationTurns(ctx context.Context, userID int32, limit int) ([]*store.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := len(f.turns) - limit
	if start < 0 {
		start = 0
	}
	return f.turns[start:], nil
}

func (f *fakeStore) findTask(id int32) *store.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	enqueued []int32
}

func (f *fakeScheduler) Enqueue(userID int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, userID)
}

func newTestRouter(llmSvc llm.Service, st Store, scheduler SummaryScheduler) *Router {
	resolver := timeparse.NewResolver()
	r := New(
		llmSvc,
		intent.NewClassifier(llmSvc),
		task.NewExtractor(llmSvc, resolver, 60),
		resolver,
		nil,
		st,
		scheduler,
		nil,
		Config{RecentTurnLimit: 4, ClarificationRetries: 3, DefaultDurationMin: 60},
	)
	r.now = func() time.Time { return ref }
	return r
}

func TestCreateThenReminderFollowUp(t *testing.T) {
	st := &fakeStore{}
	script := &scriptedLLM{responses: []string{
		`{"intent": "task_creation", "confidence": 0.95}`,
		`{
			"is_task_request": true,
			"title": "Dentist appointment",
			"when": "tomorrow at 2 PM",
			"duration": "1 hour",
			"priority": "medium",
			"confidence": 0.95
		}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "Schedule a dentist appointment for tomorrow at 2 PM")
	require.Contains(t, reply, "Dentist appointment")
	require.Contains(t, reply, "reminder")
	assert.Equal(t, StateAwaitingClarification, session.State())

	created := st.findTask(1)
	require.NotNil(t, created)
	wantStart := time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, wantStart.Unix(), created.StartTs)
	assert.Equal(t, int32(60), created.DurationMin)

	reply = r.Process(context.Background(), session, "Yes, 30 minutes before")
	assert.Contains(t, reply, "Reminder set")
	assert.Equal(t, StateIdle, session.State())
	require.NotNil(t, created.RemindTs)
	assert.Equal(t, wantStart.Add(-30*time.Minute).Unix(), *created.RemindTs)
}

func TestReminderFollowUpAcceptsAbsoluteTime(t *testing.T) {
	st := &fakeStore{}
	script := &scriptedLLM{responses: []string{
		`{"intent": "task_creation", "confidence": 0.95}`,
		`{
			"is_task_request": true,
			"title": "Dentist appointment",
			"when": "tomorrow at 2 PM",
			"duration": "1 hour",
			"priority": "medium",
			"confidence": 0.95
		}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	r.Process(context.Background(), session, "Schedule a dentist appointment for tomorrow at 2 PM")
	require.Equal(t, StateAwaitingClarification, session.State())

	reply := r.Process(context.Background(), session, "at 1:30 PM")
	assert.Contains(t, reply, "Reminder set")
	assert.Equal(t, StateIdle, session.State())

	created := st.findTask(1)
	require.NotNil(t, created)
	require.NotNil(t, created.RemindTs)
	// A bare clock answer lands on the task's day, not the current one.
	assert.Equal(t, time.Date(2025, 11, 13, 13, 30, 0, 0, time.UTC).Unix(), *created.RemindTs)
}

func TestConflictCancelExisting(t *testing.T) {
	st := &fakeStore{}
	existing := st.seedTask("Dentist appointment", time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC), 60)

	script := &scriptedLLM{responses: []string{
		`{"intent": "task_creation", "confidence": 0.95}`,
		`{
			"is_task_request": true,
			"title": "Coffee with Alex",
			"when": "tomorrow at 2:30 PM",
			"duration": "45 minutes",
			"confidence": 0.9
		}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "Add coffee with Alex tomorrow at 2:30 PM")
	require.Contains(t, reply, "overlaps")
	require.Contains(t, reply, "Dentist appointment")
	assert.Equal(t, StateAwaitingConflictDecision, session.State())
	assert.Nil(t, st.findTask(2), "nothing persisted while the decision is pending")

	reply = r.Process(context.Background(), session, "Cancel the dentist appointment")
	assert.Contains(t, reply, "cancelled")
	assert.Equal(t, StateIdle, session.State())
	assert.Equal(t, store.TaskStatusCancelled, existing.Status)

	created := st.findTask(2)
	require.NotNil(t, created)
	assert.Equal(t, "Coffee with Alex", created.Title)
	assert.Equal(t, store.TaskStatusPending, created.Status)
}

func TestConflictKeepBoth(t *testing.T) {
	st := &fakeStore{}
	existing := st.seedTask("Dentist appointment", time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC), 60)

	script := &scriptedLLM{responses: []string{
		`{"intent": "task_creation", "confidence": 0.95}`,
		`{
			"is_task_request": true,
			"title": "Coffee with Alex",
			"when": "tomorrow at 2:30 PM",
			"duration": "45 minutes",
			"confidence": 0.9
		}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	r.Process(context.Background(), session, "Add coffee with Alex tomorrow at 2:30 PM")
	reply := r.Process(context.Background(), session, "Keep both, the overlap is fine")

	assert.Contains(t, reply, "keeping both")
	assert.Equal(t, store.TaskStatusPending, existing.Status)
	created := st.findTask(2)
	require.NotNil(t, created)
	assert.Equal(t, store.TaskStatusPending, created.Status)
}

func TestQueryTomorrow(t *testing.T) {
	st := &fakeStore{}
	st.seedTask("Dentist appointment", time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC), 60)
	st.seedTask("Weekly review", time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC), 30)

	script := &scriptedLLM{responses: []string{
		`{"intent": "task_query", "confidence": 0.95}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "What do I have tomorrow?")
	assert.Contains(t, reply, "Dentist appointment")
	assert.NotContains(t, reply, "Weekly review")
}

func TestQueryEmptySchedule(t *testing.T) {
	st := &fakeStore{}
	script := &scriptedLLM{responses: []string{
		`{"intent": "task_query", "confidence": 0.95}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "What's on my schedule today?")
	assert.Contains(t, reply, "nothing scheduled")
}

func TestUpdateMovesTask(t *testing.T) {
	st := &fakeStore{}
	existing := st.seedTask("Dentist appointment", time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC), 60)

	script := &scriptedLLM{responses: []string{
		`{"intent": "task_update", "confidence": 0.95}`,
		`{
			"is_update_request": true,
			"task_identifier": "dentist",
			"new_time": "tomorrow at 4 PM"
		}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "Move my dentist appointment to 4 PM tomorrow")
	assert.Contains(t, reply, "now scheduled")
	assert.Equal(t, time.Date(2025, 11, 13, 16, 0, 0, 0, time.UTC).Unix(), existing.StartTs)
}

func TestUpdateReminderOffsetUsesDueTime(t *testing.T) {
	st := &fakeStore{}
	existing := st.seedTask("Dentist appointment", time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC), 60)

	script := &scriptedLLM{responses: []string{
		`{"intent": "task_update", "confidence": 0.95}`,
		`{
			"is_update_request": true,
			"task_identifier": "dentist",
			"reminder_offset_minutes": 45
		}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "Remind me 45 minutes before the dentist")
	assert.Contains(t, reply, "Reminder")
	require.NotNil(t, existing.RemindTs)
	assert.Equal(t, existing.StartTime().Add(-45*time.Minute).Unix(), *existing.RemindTs)
}

func TestClarificationLoopTerminates(t *testing.T) {
	st := &fakeStore{}
	script := &scriptedLLM{responses: []string{
		`{"intent": "task_creation", "confidence": 0.95}`,
		`{"is_task_request": true, "title": "Call mom", "when": null, "confidence": 0.9}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
		`{"intent": "clarification_response", "confidence": 0.9}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "Remind me to call mom")
	require.Contains(t, reply, "When")
	assert.Equal(t, StateAwaitingClarification, session.State())

	reply = r.Process(context.Background(), session, "hmm not sure")
	assert.Equal(t, StateAwaitingClarification, session.State())
	reply = r.Process(context.Background(), session, "whenever works")
	assert.Equal(t, StateAwaitingClarification, session.State())

	// Third failed attempt abandons the draft instead of looping.
	reply = r.Process(context.Background(), session, "dunno")
	assert.Contains(t, reply, "set it aside")
	assert.Equal(t, StateIdle, session.State())
	assert.Nil(t, st.findTask(1), "abandoned draft is never persisted")
}

func TestHighConfidenceIntentAbandonsPendingState(t *testing.T) {
	st := &fakeStore{}
	st.seedTask("Dentist appointment", time.Date(2025, 11, 13, 14, 0, 0, 0, time.UTC), 60)

	script := &scriptedLLM{responses: []string{
		`{"intent": "task_creation", "confidence": 0.95}`,
		`{"is_task_request": true, "title": "Call mom", "when": null, "confidence": 0.9}`,
		`{"intent": "task_query", "confidence": 0.95}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	r.Process(context.Background(), session, "Remind me to call mom")
	require.Equal(t, StateAwaitingClarification, session.State())

	reply := r.Process(context.Background(), session, "What do I have tomorrow?")
	assert.Contains(t, reply, "Dentist appointment")
	assert.Equal(t, StateIdle, session.State())
}

func TestGeneralChatDegradesWithoutLLM(t *testing.T) {
	st := &fakeStore{}
	// Script covers classification only; the chat generation call fails.
	script := &scriptedLLM{responses: []string{
		`{"intent": "general_chat", "confidence": 0.9}`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "How are you today?")
	assert.Contains(t, reply, "still tracking your tasks")
}

func TestMetricsDistinguishFallbackAndFailedTurns(t *testing.T) {
	st := &fakeStore{}
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	// An exhausted script fails every LLM call: classification falls back
	// to keywords and chat generation degrades.
	r := newTestRouter(&scriptedLLM{}, st, nil)
	r.exporter = exporter
	session := NewSession(1, 0)

	reply := r.Process(context.Background(), session, "tell me a joke")
	require.Contains(t, reply, "language model")

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `serani_core_intent_fallbacks_total 1`)
	assert.Contains(t, body, `serani_core_chat_requests_total{intent="general_chat",status="error"} 1`)
}

func TestSummarizationFiresEveryNthTurn(t *testing.T) {
	st := &fakeStore{}
	scheduler := &fakeScheduler{}
	script := &scriptedLLM{responses: []string{
		`{"intent": "general_chat", "confidence": 0.9}`,
		`Sure thing!`,
		`{"intent": "general_chat", "confidence": 0.9}`,
		`Of course.`,
		`{"intent": "general_chat", "confidence": 0.9}`,
		`Happy to help.`,
		`{"intent": "general_chat", "confidence": 0.9}`,
		`Anytime.`,
	}}
	r := newTestRouter(script, st, scheduler)
	// Each Process call logs two turns; with a cadence of 4 a pass is
	// due on the 4th and 8th turn, exactly once each.
	session := NewSession(1, 4)

	r.Process(context.Background(), session, "hello")
	assert.Empty(t, scheduler.enqueued)
	r.Process(context.Background(), session, "thanks")
	assert.Equal(t, []int32{1}, scheduler.enqueued)
	r.Process(context.Background(), session, "one more thing")
	assert.Equal(t, []int32{1}, scheduler.enqueued)
	r.Process(context.Background(), session, "that's all")
	assert.Equal(t, []int32{1, 1}, scheduler.enqueued)
}

func TestConversationTurnsAreLogged(t *testing.T) {
	st := &fakeStore{}
	script := &scriptedLLM{responses: []string{
		`{"intent": "general_chat", "confidence": 0.9}`,
		`Hi there!`,
	}}
	r := newTestRouter(script, st, nil)
	session := NewSession(1, 0)

	r.Process(context.Background(), session, "hello")
	require.Len(t, st.turns, 2)
	assert.Equal(t, store.RoleUser, st.turns[0].Role)
	assert.Equal(t, "hello", st.turns[0].Content)
	assert.Equal(t, store.RoleAssistant, st.turns[1].Role)
	assert.Equal(t, "Hi there!", st.turns[1].Content)
}
