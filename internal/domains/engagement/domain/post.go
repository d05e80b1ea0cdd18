package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "DRAFT"
	PostPublished PostStatus = "PUBLISHED"
	PostArchived  PostStatus = "ARCHIVED"
)

const (
	maxTitleLength   = 200
	minContentLength = 10
	maxExcerptLength = 500
)

var (
	ErrInvalidTitle    = errors.New("title is required and must be at most 200 characters")
	ErrContentTooShort = errors.New("content must be at least 10 characters")
	ErrExcerptTooLong  = errors.New("excerpt must be at most 500 characters")
	ErrInvalidAuthor   = errors.New("author id is required")
	ErrInvalidStatus   = errors.New("post status is invalid")
)

// Post is a piece of published content users can like and comment on.
// LikeCount and CommentCount are denormalized and owned by the aggregate engine.
type Post struct {
	ID            string
	AuthorID      string
	Title         string
	Slug          string
	Content       string
	Excerpt       string
	FeaturedImage string
	Status        PostStatus
	PublishedAt   *time.Time
	ViewCount     int64
	LikeCount     int64
	CommentCount  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	default:
		return false
	}
}

// Normalize trims user supplied text.
func (p *Post) Normalize() {
	p.AuthorID = strings.TrimSpace(p.AuthorID)
	p.Title = strings.TrimSpace(p.Title)
	p.Excerpt = strings.TrimSpace(p.Excerpt)
	p.FeaturedImage = strings.TrimSpace(p.FeaturedImage)
}

func (p *Post) Validate() error {
	if p.AuthorID == "" {
		return ErrInvalidAuthor
	}
	if p.Title == "" || utf8.RuneCountInString(p.Title) > maxTitleLength {
		return ErrInvalidTitle
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.Content)) < minContentLength {
		return ErrContentTooShort
	}
	if utf8.RuneCountInString(p.Excerpt) > maxExcerptLength {
		return ErrExcerptTooLong
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// SetStatus changes the publication state. PublishedAt is stamped the first
// time the post is published and kept afterwards.
func (p *Post) SetStatus(status PostStatus, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	p.Status = status
	if status == PostPublished && p.PublishedAt == nil {
		published := now
		p.PublishedAt = &published
	}
	p.UpdatedAt = now
	return nil
}

func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PublishedAt != nil {
		published := *p.PublishedAt
		clone.PublishedAt = &published
	}
	return &clone
}
