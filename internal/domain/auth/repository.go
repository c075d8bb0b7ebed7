package auth

import "context"

// UserRepository defines persistence operations for auth users.
type UserRepository interface {
	// Create stores a new user, returning ErrEmailExists on a duplicate email.
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
