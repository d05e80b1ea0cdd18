package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxCommentLength = 1000

var (
	ErrInvalidUser    = errors.New("user id is required")
	ErrInvalidPost    = errors.New("post id is required")
	ErrInvalidComment = errors.New("comment must be between 1 and 1000 characters")
)

// Like records that a user liked a post. A user likes a post at most once.
type Like struct {
	PostID    string
	UserID    string
	CreatedAt time.Time
}

// Comment is a user comment on a post, optionally replying to another comment
// of the same post.
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	ParentID  string
	Content   string
	Approved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l Like) Validate() error {
	if strings.TrimSpace(l.PostID) == "" {
		return ErrInvalidPost
	}
	if strings.TrimSpace(l.UserID) == "" {
		return ErrInvalidUser
	}
	return nil
}

func (c *Comment) Normalize() {
	c.PostID = strings.TrimSpace(c.PostID)
	c.AuthorID = strings.TrimSpace(c.AuthorID)
	c.ParentID = strings.TrimSpace(c.ParentID)
	c.Content = strings.TrimSpace(c.Content)
}

func (c *Comment) Validate() error {
	if c.PostID == "" {
		return ErrInvalidPost
	}
	if c.AuthorID == "" {
		return ErrInvalidUser
	}
	if n := utf8.RuneCountInString(c.Content); n < 1 || n > maxCommentLength {
		return ErrInvalidComment
	}
	return nil
}
