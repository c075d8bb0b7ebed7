package post

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "community/backend/internal/domain/post"

	"github.com/google/uuid"
)

// MaxTitleLength bounds post titles in characters.
const MaxTitleLength = 200

// Service encapsulates feed use cases.
type Service struct {
	repo    domain.Repository
	nowFunc func() time.Time
}

// NewService constructs a post service.
func NewService(repo domain.Repository) *Service {
	return &Service{
		repo:    repo,
		nowFunc: time.Now,
	}
}

// CreateInput contains the payload required for post creation.
type CreateInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Create stores a new post on behalf of authorID after validation.
func (s *Service) Create(ctx context.Context, authorID string, input CreateInput) (*domain.Post, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidPost)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, fmt.Errorf("%w: title must be at most %d characters", domain.ErrInvalidPost, MaxTitleLength)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidPost)
	}

	p := &domain.Post{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		AuthorID:  authorID,
		CreatedAt: s.nowFunc().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	// Re-read so the response carries the author projection.
	return s.repo.GetByID(ctx, p.ID)
}

// List retrieves the feed, newest first.
func (s *Service) List(ctx context.Context) ([]*domain.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*domain.Post{}
	}
	return posts, nil
}
