package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
	"github.com/Apurer/commerce-engine/internal/shared/identifier"
)

var _ ports.Service = (*Service)(nil)

// Service orchestrates posts, likes, and comments. A stored like or comment is
// always followed by a counter adjustment; when the adjustment fails the record
// is rolled back so counters and records never drift apart.
type Service struct {
	store        ports.Store
	events       aggports.EngagementEvents
	ids          *identifier.Generator
	slugAttempts int
	now          func() time.Time
	logger       *slog.Logger
}

// Option customises the engagement service.
type Option func(*Service)

// WithIdentifierGenerator overrides the generator used for slugs.
func WithIdentifierGenerator(g *identifier.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithSlugAttempts bounds numbered slug candidates before the timestamp fallback.
func WithSlugAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slugAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger records rollback failures that cannot be returned to the caller.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store ports.Store, events aggports.EngagementEvents, opts ...Option) *Service {
	s := &Service{
		store:        store,
		events:       events,
		ids:          identifier.NewGenerator(),
		slugAttempts: identifier.DefaultSlugAttempts,
		now:          time.Now,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) CreatePost(ctx context.Context, input ports.CreatePostInput) (*domain.Post, error) {
	now := s.now().UTC()
	post := &domain.Post{
		ID:            identifier.NewID("post_"),
		AuthorID:      input.AuthorID,
		Title:         input.Title,
		Content:       input.Content,
		Excerpt:       input.Excerpt,
		FeaturedImage: input.FeaturedImage,
		Status:        domain.PostDraft,
		CreatedAt:     now,
	}
	post.Normalize()
	status := input.Status
	if status == "" {
		status = domain.PostDraft
	}
	if err := post.SetStatus(status, now); err != nil {
		return nil, mapError(err)
	}
	if err := post.Validate(); err != nil {
		return nil, mapError(err)
	}

	base := identifier.Slugify(post.Title)
	if base == "" {
		base = "post"
	}
	for attempt := 0; attempt < 2; attempt++ {
		slug, err := s.ids.UniqueSlug(ctx, base, s.store.SlugExists, s.slugAttempts)
		if err != nil {
			return nil, err
		}
		post.Slug = slug
		err = s.store.CreatePost(ctx, post)
		if errors.Is(err, ports.ErrDuplicateSlug) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return post.Clone(), nil
	}
	return nil, fmt.Errorf("create post %q: %w", post.Title, ports.ErrDuplicateSlug)
}

func (s *Service) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.store.GetPost(ctx, id)
}

func (s *Service) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return s.store.GetPostBySlug(ctx, slug)
}

func (s *Service) ChangePostStatus(ctx context.Context, id string, status domain.PostStatus) (*domain.Post, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := post.SetStatus(status, s.now().UTC()); err != nil {
		return nil, mapError(err)
	}
	if err := s.store.SetPostStatus(ctx, id, post.Status, post.PublishedAt); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) ListPostIDs(ctx context.Context) ([]string, error) {
	return s.store.ListPostIDs(ctx)
}

// LikePost records the like once. Liking an already liked post reports
// Changed=false and leaves the counter untouched.
func (s *Service) LikePost(ctx context.Context, postID, userID string) (ports.LikeResult, error) {
	like := domain.Like{PostID: postID, UserID: userID, CreatedAt: s.now().UTC()}
	if err := like.Validate(); err != nil {
		return ports.LikeResult{}, mapError(err)
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return ports.LikeResult{}, err
	}
	added, err := s.store.AddLike(ctx, like)
	if err != nil {
		return ports.LikeResult{}, err
	}
	if added {
		ref := aggports.LikeRef{PostID: postID, UserID: userID}
		if err := s.countersEvent(func() error { return s.events.OnLikeAdded(ctx, ref) }); err != nil {
			if _, rbErr := s.store.RemoveLike(ctx, postID, userID); rbErr != nil {
				s.logRollbackFailure(ctx, "like", postID, rbErr)
			}
			return ports.LikeResult{}, err
		}
	}
	return s.likeResult(ctx, postID, added)
}

// UnlikePost removes the like. It is a no-op reporting Changed=false when the
// user had not liked the post.
func (s *Service) UnlikePost(ctx context.Context, postID, userID string) (ports.LikeResult, error) {
	like := domain.Like{PostID: postID, UserID: userID, CreatedAt: s.now().UTC()}
	if err := like.Validate(); err != nil {
		return ports.LikeResult{}, mapError(err)
	}
	removed, err := s.store.RemoveLike(ctx, postID, userID)
	if err != nil {
		return ports.LikeResult{}, err
	}
	if removed {
		ref := aggports.LikeRef{PostID: postID, UserID: userID}
		if err := s.countersEvent(func() error { return s.events.OnLikeRemoved(ctx, ref) }); err != nil {
			if _, rbErr := s.store.AddLike(ctx, like); rbErr != nil {
				s.logRollbackFailure(ctx, "like", postID, rbErr)
			}
			return ports.LikeResult{}, err
		}
	}
	return s.likeResult(ctx, postID, removed)
}

func (s *Service) likeResult(ctx context.Context, postID string, changed bool) (ports.LikeResult, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return ports.LikeResult{}, err
	}
	return ports.LikeResult{Changed: changed, LikeCount: post.LikeCount}, nil
}

func (s *Service) AddComment(ctx context.Context, input ports.AddCommentInput) (*domain.Comment, error) {
	now := s.now().UTC()
	comment := &domain.Comment{
		ID:        identifier.NewID("cmt_"),
		PostID:    input.PostID,
		AuthorID:  input.AuthorID,
		ParentID:  input.ParentID,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	comment.Normalize()
	if err := comment.Validate(); err != nil {
		return nil, mapError(err)
	}
	if _, err := s.store.GetPost(ctx, comment.PostID); err != nil {
		return nil, err
	}
	if comment.ParentID != "" {
		parent, err := s.store.GetComment(ctx, comment.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != comment.PostID {
			return nil, ErrParentMismatch
		}
	}
	if err := s.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	ref := aggports.CommentRef{CommentID: comment.ID, PostID: comment.PostID}
	if err := s.countersEvent(func() error { return s.events.OnCommentAdded(ctx, ref) }); err != nil {
		if _, rbErr := s.store.RemoveComment(ctx, comment.ID); rbErr != nil {
			s.logRollbackFailure(ctx, "comment", comment.PostID, rbErr)
		}
		return nil, err
	}
	return comment, nil
}

// RemoveComment deletes a single comment. Replies to it are kept.
func (s *Service) RemoveComment(ctx context.Context, id string) error {
	removed, err := s.store.RemoveComment(ctx, id)
	if err != nil {
		return err
	}
	ref := aggports.CommentRef{CommentID: removed.ID, PostID: removed.PostID}
	if err := s.countersEvent(func() error { return s.events.OnCommentRemoved(ctx, ref) }); err != nil {
		if rbErr := s.store.AddComment(ctx, removed); rbErr != nil {
			s.logRollbackFailure(ctx, "comment", removed.PostID, rbErr)
		}
		return err
	}
	return nil
}

func (s *Service) ListComments(ctx context.Context, postID string) ([]*domain.Comment, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, postID)
}

func (s *Service) countersEvent(fire func() error) error {
	if s.events == nil {
		return nil
	}
	if err := fire(); err != nil {
		return fmt.Errorf("update post counters: %w", err)
	}
	return nil
}

func (s *Service) logRollbackFailure(ctx context.Context, record, postID string, err error) {
	s.logger.LogAttrs(ctx, slog.LevelError, "failed to roll back "+record+" after counter update failure, post needs a recount",
		slog.String("post.id", postID),
		slog.String("error", err.Error()))
}
