package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound marks updates and deletes that matched no row. Drivers wrap
// it so callers can errors.Is across backends.
var ErrNotFound = errors.New("not found")

// Driver is an interface for database drivers.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Task model related methods. CreateTask must be idempotent on
	// CreateTask.UID: a second insert with the same UID returns the
	// existing row.
	CreateTask(ctx context.Context, create *CreateTask) (*Task, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)
	UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error)
	DeleteTask(ctx context.Context, id int32) error
	ResolveTaskConflict(ctx context.Context, resolve *ResolveTaskConflict) (*Task, error)

	// Conversation log related methods.
	CreateConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error)
	ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error)

	// Memory summary related methods.
	UpsertMemorySummary(ctx context.Context, upsert *MemorySummary) (*MemorySummary, error)
	SearchMemorySummaries(ctx context.Context, search *SearchMemorySummary) ([]*MemorySummaryMatch, error)
}
