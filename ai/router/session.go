package router

import (
	"sync"

	"github.com/serani-ai/serani/ai/conflict"
	"github.com/serani-ai/serani/ai/contextcomp"
	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/store"
)

// State is the conversational state of a session. Every state except
// idle expects the next utterance to answer a pending question.
type State string

const (
	StateIdle                     State = "idle"
	StateAwaitingClarification    State = "awaiting_clarification"
	StateAwaitingConflictDecision State = "awaiting_conflict_decision"
)

// fieldReminder marks the post-creation "want a reminder?" follow-up.
// It is router-owned: the extractor never asks for it.
const fieldReminder task.MissingField = "reminder"

// Session holds per-user conversational state. One goroutine processes a
// session at a time; the mutex serializes concurrent requests for the
// same user.
type Session struct {
	UserID int32

	mu           sync.Mutex
	state        State
	pendingDraft *task.Draft
	pendingField task.MissingField
	attempts     int

	pendingConflict *conflict.Resolution

	// lastTask is the most recently created or updated task, the default
	// target for follow-up updates and reminder answers.
	lastTask *store.Task

	// turnDegraded marks the current turn as having hit an
	// infrastructure failure. Scratch state for metrics; valid only
	// while the session mutex is held across one Process call.
	turnDegraded bool

	trigger *contextcomp.Trigger
}

// NewSession creates an idle session. summaryEveryN configures the
// background summarization cadence; 0 disables it.
func NewSession(userID int32, summaryEveryN int) *Session {
	return &Session{
		UserID:  userID,
		state:   StateIdle,
		trigger: contextcomp.NewTrigger(summaryEveryN),
	}
}

// State returns the current conversational state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) awaitClarification(draft *task.Draft, field task.MissingField) {
	s.state = StateAwaitingClarification
	s.pendingDraft = draft
	s.pendingField = field
	s.attempts = 0
}

func (s *Session) awaitConflictDecision(draft *task.Draft, resolution *conflict.Resolution) {
	s.state = StateAwaitingConflictDecision
	s.pendingDraft = draft
	s.pendingConflict = resolution
	s.attempts = 0
}

// reset returns the session to idle, dropping any pending draft or
// conflict.
func (s *Session) reset() {
	s.state = StateIdle
	s.pendingDraft = nil
	s.pendingField = ""
	s.pendingConflict = nil
	s.attempts = 0
}

// Sessions is a concurrency-safe session registry keyed by user ID.
type Sessions struct {
	mu            sync.Mutex
	sessions      map[int32]*Session
	summaryEveryN int
}

// NewSessions creates an empty registry.
func NewSessions(summaryEveryN int) *Sessions {
	return &Sessions{
		sessions:      make(map[int32]*Session),
		summaryEveryN: summaryEveryN,
	}
}

// Get returns the user's session, creating it on first use.
func (r *Sessions) Get(userID int32) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[userID]
	if !ok {
		session = NewSession(userID, r.summaryEveryN)
		r.sessions[userID] = session
	}
	return session
}
