// Package router is the conversational state machine: it classifies each
// utterance, dispatches it to the task pipeline or general chat, and
// carries pending clarifications and conflict decisions across turns.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/serani-ai/serani/ai/contextcomp"
	"github.com/serani-ai/serani/ai/intent"
	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/ai/metrics"
	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/store"
)

// Store is the slice of the store the router needs.
type Store interface {
	CreateTask(ctx context.Context, create *store.CreateTask) (*store.Task, error)
	ListActiveTasks(ctx context.Context, userID int32, from, to *time.Time) ([]*store.Task, error)
	UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error)
	ResolveTaskConflict(ctx context.Context, resolve *store.ResolveTaskConflict) (*store.Task, error)
	AppendConversationTurn(ctx context.Context, turn *store.ConversationTurn) (*store.ConversationTurn, error)
	RecentConversationTurns(ctx context.Context, userID int32, limit int) ([]*store.ConversationTurn, error)
}

// Composer assembles the context block for generation prompts.
type Composer interface {
	Compose(ctx context.Context, userID int32, query string, recentTurns []*store.ConversationTurn) *contextcomp.Block
}

// SummaryScheduler accepts background summarization jobs.
type SummaryScheduler interface {
	Enqueue(userID int32)
}

// Config carries the router's orchestration knobs.
type Config struct {
	// RecentTurnLimit is the conversation window injected into prompts.
	RecentTurnLimit int
	// ClarificationRetries bounds re-asks for one field before the
	// router gives up or applies a safe default.
	ClarificationRetries int
	// DefaultDurationMin fills in when a clarified duration is abandoned.
	DefaultDurationMin int
	// HardDeleteOnConflictCancel removes a cancelled conflict loser
	// instead of soft-cancelling it.
	HardDeleteOnConflictCancel bool
}

// Router dispatches utterances and owns per-turn orchestration.
type Router struct {
	llm        llm.Service
	classifier *intent.Classifier
	extractor  *task.Extractor
	resolver   *timeparse.Resolver
	composer   Composer
	store      Store
	scheduler  SummaryScheduler
	exporter   *metrics.PrometheusExporter
	cfg        Config

	// now is injectable for deterministic tests.
	now func() time.Time
}

// New creates a Router. scheduler and exporter may be nil.
func New(llmSvc llm.Service, classifier *intent.Classifier, extractor *task.Extractor, resolver *timeparse.Resolver, composer Composer, st Store, scheduler SummaryScheduler, exporter *metrics.PrometheusExporter, cfg Config) *Router {
	if cfg.RecentTurnLimit <= 0 {
		cfg.RecentTurnLimit = 4
	}
	if cfg.ClarificationRetries <= 0 {
		cfg.ClarificationRetries = 3
	}
	if cfg.DefaultDurationMin <= 0 {
		cfg.DefaultDurationMin = 60
	}
	return &Router{
		llm:        llmSvc,
		classifier: classifier,
		extractor:  extractor,
		resolver:   resolver,
		composer:   composer,
		store:      st,
		scheduler:  scheduler,
		exporter:   exporter,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Process handles one user utterance and returns the assistant reply.
// Errors are conversational: infrastructure failures degrade to an
// apologetic reply rather than surfacing to the caller.
func (r *Router) Process(ctx context.Context, session *Session, message string) string {
	session.mu.Lock()
	defer session.mu.Unlock()

	started := r.now()

	recentTurns, err := r.store.RecentConversationTurns(ctx, session.UserID, r.cfg.RecentTurnLimit)
	if err != nil {
		slog.Warn("router: failed to load recent turns", "user_id", session.UserID, "error", err)
		recentTurns = nil
	}

	pending := session.state != StateIdle
	result := r.classifier.Classify(ctx, message, recentTurns, pending)
	r.recordIntent(string(result.Intent), result.Fallback)

	session.turnDegraded = false
	reply := r.dispatch(ctx, session, message, recentTurns, result)

	r.logTurns(ctx, session, message, reply)
	r.recordChatTurn(string(result.Intent), r.now().Sub(started), !session.turnDegraded)

	return reply
}

func (r *Router) dispatch(ctx context.Context, session *Session, message string, recentTurns []*store.ConversationTurn, result intent.Result) string {
	// A pending question wins unless the user clearly moved on.
	if session.state != StateIdle {
		if result.Intent == intent.IntentClarificationResponse || result.Confidence < 0.8 {
			switch session.state {
			case StateAwaitingClarification:
				return r.handleClarificationAnswer(ctx, session, message)
			case StateAwaitingConflictDecision:
				return r.handleConflictDecision(ctx, session, message)
			}
		}
		// High-confidence new intent abandons the pending exchange.
		slog.Info("router: abandoning pending state for new intent",
			"user_id", session.UserID, "state", session.state, "intent", result.Intent)
		session.reset()
	}

	switch result.Intent {
	case intent.IntentTaskCreation:
		return r.handleCreate(ctx, session, message)
	case intent.IntentTaskQuery:
		return r.handleQuery(ctx, session, message)
	case intent.IntentTaskUpdate:
		return r.handleUpdate(ctx, session, message)
	default:
		// clarification_response with nothing pending falls through to
		// general chat rather than erroring.
		return r.handleChat(ctx, session, message, recentTurns)
	}
}

// logTurns appends both sides of the exchange to the conversation log and
// schedules a summarization pass when one is due. The trigger counts
// individual logged turns, so with a cadence of N a pass fires once every
// N turns, whichever role lands on the boundary. Log failures are not
// surfaced: the reply was already produced.
func (r *Router) logTurns(ctx context.Context, session *Session, message, reply string) {
	due := false
	_, err := r.store.AppendConversationTurn(ctx, &store.ConversationTurn{
		UserID:  session.UserID,
		Role:    store.RoleUser,
		Content: message,
	})
	if err != nil {
		slog.Warn("router: failed to log user turn", "user_id", session.UserID, "error", err)
	} else {
		due = session.trigger.Observe()
	}
	_, err = r.store.AppendConversationTurn(ctx, &store.ConversationTurn{
		UserID:  session.UserID,
		Role:    store.RoleAssistant,
		Content: reply,
	})
	if err != nil {
		slog.Warn("router: failed to log assistant turn", "user_id", session.UserID, "error", err)
	} else if session.trigger.Observe() {
		due = true
	}

	if due && r.scheduler != nil {
		r.scheduler.Enqueue(session.UserID)
	}
}

// fail marks the current turn as degraded and hands the conversational
// apology back to the caller.
func (r *Router) fail(session *Session, reply string) string {
	session.turnDegraded = true
	return reply
}

func (r *Router) recordIntent(label string, fallback bool) {
	if r.exporter != nil {
		r.exporter.RecordIntent(label, fallback)
	}
}

func (r *Router) recordChatTurn(label string, latency time.Duration, success bool) {
	if r.exporter != nil {
		r.exporter.RecordChatTurn(label, latency, success)
	}
}

func (r *Router) recordConflictResolution(decision string) {
	if r.exporter != nil {
		r.exporter.RecordConflictResolution(decision)
	}
}
