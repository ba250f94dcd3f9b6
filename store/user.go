package store

import "context"

// User represents an assistant user. Users are created on first session
// bootstrap and never deleted; deleting a user cascades to their tasks.
type User struct {
	ID        int32
	Username  string
	CreatedTs int64
	// Preferences is an opaque JSON blob mutated only by explicit
	// settings actions.
	Preferences string
}

// FindUser is the find condition for users.
type FindUser struct {
	ID       *int32
	Username *string
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// GetOrCreateUser bootstraps a user by username. Used by the session
// bootstrap path; usernames are unique.
func (s *Store) GetOrCreateUser(ctx context.Context, username string) (*User, error) {
	user, err := s.GetUser(ctx, &FindUser{Username: &username})
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return s.CreateUser(ctx, &User{Username: username, Preferences: "{}"})
}
