package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
)

var _ ports.Store = (*Store)(nil)

type postEntry struct {
	post     *domain.Post
	likes    atomic.Int64
	comments atomic.Int64
}

// Store is an in-memory engagement store. Counters live in atomics beside the
// post so adjustments never take the store lock for writing.
type Store struct {
	mu       sync.RWMutex
	posts    map[string]*postEntry
	slugs    map[string]string
	likes    map[string]domain.Like
	comments map[string]*domain.Comment
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		posts:    map[string]*postEntry{},
		slugs:    map[string]string{},
		likes:    map[string]domain.Like{},
		comments: map[string]*domain.Comment{},
		now:      time.Now,
	}
}

func likeKey(postID, userID string) string {
	return postID + "\x00" + userID
}

func (s *Store) CreatePost(_ context.Context, post *domain.Post) error {
	if post == nil {
		return errors.New("post is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.slugs[post.Slug]; taken {
		return ports.ErrDuplicateSlug
	}
	clone := post.Clone()
	clone.UpdatedAt = s.now().UTC()
	entry := &postEntry{post: clone}
	entry.likes.Store(clone.LikeCount)
	entry.comments.Store(clone.CommentCount)
	s.posts[clone.ID] = entry
	s.slugs[clone.Slug] = clone.ID
	return nil
}

func (s *Store) GetPost(_ context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.posts[id]
	if !ok {
		return nil, ports.ErrPostNotFound
	}
	return entry.snapshot(), nil
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	s.mu.RLock()
	id, ok := s.slugs[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, ports.ErrPostNotFound
	}
	return s.GetPost(ctx, id)
}

func (s *Store) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slugs[slug]
	return ok, nil
}

func (s *Store) SetPostStatus(_ context.Context, id string, status domain.PostStatus, publishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.posts[id]
	if !ok {
		return ports.ErrPostNotFound
	}
	entry.post.Status = status
	if publishedAt != nil {
		published := *publishedAt
		entry.post.PublishedAt = &published
	}
	entry.post.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ListPostIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.posts))
	for id := range s.posts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) AddLike(_ context.Context, like domain.Like) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[like.PostID]; !ok {
		return false, ports.ErrPostNotFound
	}
	key := likeKey(like.PostID, like.UserID)
	if _, exists := s.likes[key]; exists {
		return false, nil
	}
	s.likes[key] = like
	return true, nil
}

func (s *Store) RemoveLike(_ context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := likeKey(postID, userID)
	if _, exists := s.likes[key]; !exists {
		return false, nil
	}
	delete(s.likes, key)
	return true, nil
}

func (s *Store) AddComment(_ context.Context, comment *domain.Comment) error {
	if comment == nil {
		return errors.New("comment is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[comment.PostID]; !ok {
		return ports.ErrPostNotFound
	}
	if _, exists := s.comments[comment.ID]; exists {
		return fmt.Errorf("comment %s already exists", comment.ID)
	}
	clone := *comment
	s.comments[comment.ID] = &clone
	return nil
}

func (s *Store) GetComment(_ context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.comments[id]
	if !ok {
		return nil, ports.ErrCommentNotFound
	}
	clone := *comment
	return &clone, nil
}

func (s *Store) RemoveComment(_ context.Context, id string) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return nil, ports.ErrCommentNotFound
	}
	delete(s.comments, id)
	return comment, nil
}

func (s *Store) ListComments(_ context.Context, postID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Comment
	for _, comment := range s.comments {
		if comment.PostID == postID {
			clone := *comment
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AdjustCounter applies delta with a compare-and-swap loop, storing zero
// instead of a negative value.
func (s *Store) AdjustCounter(_ context.Context, postID string, counter aggports.Counter, delta int64) (aggports.AdjustResult, error) {
	value, err := s.counter(postID, counter)
	if err != nil {
		return aggports.AdjustResult{}, err
	}
	for {
		current := value.Load()
		next, clamped := current+delta, false
		if next < 0 {
			next, clamped = 0, true
		}
		if value.CompareAndSwap(current, next) {
			return aggports.AdjustResult{Value: next, Clamped: clamped}, nil
		}
	}
}

func (s *Store) SetCounter(_ context.Context, postID string, counter aggports.Counter, value int64) error {
	cell, err := s.counter(postID, counter)
	if err != nil {
		return err
	}
	if value < 0 {
		value = 0
	}
	cell.Store(value)
	return nil
}

func (s *Store) CountLikes(_ context.Context, postID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, like := range s.likes {
		if like.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountComments(_ context.Context, postID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, comment := range s.comments {
		if comment.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *Store) counter(postID string, counter aggports.Counter) (*atomic.Int64, error) {
	s.mu.RLock()
	entry, ok := s.posts[postID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("post %s: %w", postID, aggports.ErrNotFound)
	}
	switch counter {
	case aggports.CounterLikes:
		return &entry.likes, nil
	case aggports.CounterComments:
		return &entry.comments, nil
	default:
		return nil, fmt.Errorf("unknown counter %q", counter)
	}
}

func (e *postEntry) snapshot() *domain.Post {
	post := e.post.Clone()
	post.LikeCount = e.likes.Load()
	post.CommentCount = e.comments.Load()
	return post
}
