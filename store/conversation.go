package store

import "context"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in the per-user conversation log.
// Turns are append-only and never mutated.
type ConversationTurn struct {
	ID        int64
	UserID    int32
	Role      Role
	Content   string
	CreatedTs int64
}

// FindConversationTurn is the find condition for conversation turns.
type FindConversationTurn struct {
	UserID *int32
	Limit  *int
}

func (s *Store) AppendConversationTurn(ctx context.Context, turn *ConversationTurn) (*ConversationTurn, error) {
	return s.driver.CreateConversationTurn(ctx, turn)
}

// RecentConversationTurns returns up to limit turns for the user in
// chronological order, newest last.
func (s *Store) RecentConversationTurns(ctx context.Context, userID int32, limit int) ([]*ConversationTurn, error) {
	list, err := s.driver.ListConversationTurns(ctx, &FindConversationTurn{UserID: &userID, Limit: &limit})
	if err != nil {
		return nil, err
	}
	// Drivers return newest first for the LIMIT to apply; reverse into
	// chronological order for prompt assembly.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}
