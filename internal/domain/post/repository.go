package post

import "context"

// Repository defines persistence behaviours for posts.
type Repository interface {
	Create(ctx context.Context, post *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	// List returns every post newest first with its author populated.
	List(ctx context.Context) ([]*Post, error)
}
