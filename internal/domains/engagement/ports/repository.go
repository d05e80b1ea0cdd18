package ports

import (
	"context"
	"time"

	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	ErrPostNotFound    = errkind.New(errkind.NotFound, "post not found")
	ErrCommentNotFound = errkind.New(errkind.NotFound, "comment not found")
	ErrDuplicateSlug   = errkind.New(errkind.Conflict, "post slug already exists")
)

// PostRepository persists posts. Like and comment counters are never written
// here; they move through aggregates CounterStore.
type PostRepository interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetPostStatus(ctx context.Context, id string, status domain.PostStatus, publishedAt *time.Time) error
	ListPostIDs(ctx context.Context) ([]string, error)
}

// InteractionRepository stores likes and comments. AddLike reports false when
// the user already liked the post; RemoveLike reports false when there was no like.
type InteractionRepository interface {
	AddLike(ctx context.Context, like domain.Like) (bool, error)
	RemoveLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, comment *domain.Comment) error
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	RemoveComment(ctx context.Context, id string) (*domain.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*domain.Comment, error)
}

// Store is implemented by every engagement adapter. It also serves as the
// counter store and counter source of the aggregate engine.
type Store interface {
	PostRepository
	InteractionRepository
	aggports.CounterStore
	aggports.CounterSource
}
