package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "community/backend/internal/domain/post"

	"github.com/jackc/pgx/v5"
)

// PostRepository persists posts in PostgreSQL.
type PostRepository struct {
	db DBTX
}

// NewPostRepository constructs a repository.
func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

var _ domain.Repository = (*PostRepository)(nil)

const selectPosts = `
SELECT p.id, p.title, p.content, p.author_id, p.created_at, u.id, u.name, u.email
FROM posts p
JOIN users u ON u.id = p.author_id
`

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	const query = `
INSERT INTO posts (id, title, content, author_id, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := r.db.Exec(ctx, query,
		post.ID,
		post.Title,
		post.Content,
		post.AuthorID,
		post.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidText(err) {
			return domain.ErrAuthorNotFound
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetByID fetches a post with its author.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx, selectPosts+"WHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select post: %w", err)
	}
	return post, nil
}

// List returns all posts newest first.
func (r *PostRepository) List(ctx context.Context) ([]*domain.Post, error) {
	rows, err := r.db.Query(ctx, selectPosts+"ORDER BY p.created_at DESC, p.id")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.AuthorID,
		&p.CreatedAt,
		&p.Author.ID,
		&p.Author.Name,
		&p.Author.Email,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
