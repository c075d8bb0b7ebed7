// Package memory provides in-process repositories honouring the same
// contracts as the PostgreSQL ones. Data lives only as long as the process.
package memory

import (
	"context"
	"sort"
	"sync"

	authdomain "community/backend/internal/domain/auth"
	postdomain "community/backend/internal/domain/post"
)

// Store holds users and posts behind a single lock so the post/author join
// always sees a consistent snapshot.
type Store struct {
	mu        sync.RWMutex
	usersByID map[string]authdomain.User
	emailToID map[string]string
	posts     map[string]postdomain.Post
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		usersByID: make(map[string]authdomain.User),
		emailToID: make(map[string]string),
		posts:     make(map[string]postdomain.Post),
	}
}

// Users returns the store's user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Posts returns the store's post repository.
func (s *Store) Posts() *PostRepository {
	return &PostRepository{s: s}
}

// UserRepository is the in-memory authdomain.UserRepository.
type UserRepository struct {
	s *Store
}

var _ authdomain.UserRepository = (*UserRepository)(nil)

// Create inserts a user unless the email is taken.
func (r *UserRepository) Create(_ context.Context, user *authdomain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.emailToID[user.Email]; ok {
		return authdomain.ErrEmailExists
	}
	r.s.usersByID[user.ID] = *user
	r.s.emailToID[user.Email] = user.ID
	return nil
}

// GetByEmail fetches a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*authdomain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emailToID[email]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	u := r.s.usersByID[id]
	return &u, nil
}

// GetByID fetches a user by id.
func (r *UserRepository) GetByID(_ context.Context, id string) (*authdomain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.usersByID[id]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	return &u, nil
}

// PostRepository is the in-memory postdomain.Repository.
type PostRepository struct {
	s *Store
}

var _ postdomain.Repository = (*PostRepository)(nil)

// Create inserts a post written by an existing user.
func (r *PostRepository) Create(_ context.Context, post *postdomain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.usersByID[post.AuthorID]; !ok {
		return postdomain.ErrAuthorNotFound
	}
	stored := *post
	stored.Author = postdomain.Author{}
	r.s.posts[post.ID] = stored
	return nil
}

// GetByID fetches a post with its author.
func (r *PostRepository) GetByID(_ context.Context, id string) (*postdomain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, postdomain.ErrNotFound
	}
	return r.withAuthor(p), nil
}

// List returns all posts newest first.
func (r *PostRepository) List(_ context.Context) ([]*postdomain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	posts := make([]*postdomain.Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		posts = append(posts, r.withAuthor(p))
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// withAuthor must be called with the read lock held.
func (r *PostRepository) withAuthor(p postdomain.Post) *postdomain.Post {
	u := r.s.usersByID[p.AuthorID]
	p.Author = postdomain.Author{ID: u.ID, Name: u.Name, Email: u.Email}
	return &p
}
