package post

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a post could not be located.
	ErrNotFound = errors.New("post not found")
	// ErrInvalidPost indicates a post failed validation.
	ErrInvalidPost = errors.New("invalid post")
	// ErrAuthorNotFound signals that the referenced author does not exist.
	ErrAuthorNotFound = errors.New("author not found")
)

// Author is the public projection of the user who wrote a post.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Post is a single entry in the public feed.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}
