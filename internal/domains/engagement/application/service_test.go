package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aggapp "github.com/Apurer/commerce-engine/internal/domains/aggregates/application"
	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/adapters/memory"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
)

// brokenEvents fails every counter event.
type brokenEvents struct{}

var errCounters = errors.New("counter store unavailable")

func (brokenEvents) OnLikeAdded(context.Context, aggports.LikeRef) error { return errCounters }

func (brokenEvents) OnLikeRemoved(context.Context, aggports.LikeRef) error { return errCounters }

func (brokenEvents) OnCommentAdded(context.Context, aggports.CommentRef) error { return errCounters }

func (brokenEvents) OnCommentRemoved(context.Context, aggports.CommentRef) error { return errCounters }

func newTestService(opts ...Option) (*Service, *memory.Store) {
	store := memory.NewStore()
	engine := aggapp.NewEngine(nil, nil, store, store)
	return NewService(store, engine, opts...), store
}

func createPost(t *testing.T, svc *Service, title string) *domain.Post {
	t.Helper()
	post, err := svc.CreatePost(context.Background(), ports.CreatePostInput{
		AuthorID: "author-1",
		Title:    title,
		Content:  "Some content long enough",
	})
	require.NoError(t, err)
	return post
}

func TestService_CreatePostSlugs(t *testing.T) {
	svc, _ := newTestService()

	first := createPost(t, svc, "Hello, World!")
	second := createPost(t, svc, "Hello World")
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.Equal(t, domain.PostDraft, first.Status)
	assert.Nil(t, first.PublishedAt)

	got, err := svc.GetPostBySlug(context.Background(), "hello-world-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestService_CreatePostValidation(t *testing.T) {
	svc, _ := newTestService()
	cases := map[string]ports.CreatePostInput{
		"missing title": {AuthorID: "a", Content: "long enough content"},
		"long title":    {AuthorID: "a", Title: strings.Repeat("t", 201), Content: "long enough content"},
		"short content": {AuthorID: "a", Title: "Hi", Content: "too short"},
		"no author":     {Title: "Hi", Content: "long enough content"},
		"bad status":    {AuthorID: "a", Title: "Hi", Content: "long enough content", Status: "LIVE"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreatePost(context.Background(), input)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_PublishStampsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(WithClock(func() time.Time { return now }))
	post := createPost(t, svc, "Launch notes")

	published, err := svc.ChangePostStatus(ctx, post.ID, domain.PostPublished)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, now, *published.PublishedAt)

	now = now.Add(time.Hour)
	_, err = svc.ChangePostStatus(ctx, post.ID, domain.PostArchived)
	require.NoError(t, err)
	republished, err := svc.ChangePostStatus(ctx, post.ID, domain.PostPublished)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), *republished.PublishedAt)
}

func TestService_LikeCountsOncePerUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	post := createPost(t, svc, "Likes")

	res, err := svc.LikePost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ports.LikeResult{Changed: true, LikeCount: 1}, res)

	res, err = svc.LikePost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ports.LikeResult{Changed: false, LikeCount: 1}, res)

	res, err = svc.UnlikePost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ports.LikeResult{Changed: true, LikeCount: 0}, res)

	res, err = svc.UnlikePost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ports.LikeResult{Changed: false, LikeCount: 0}, res)

	_, err = svc.LikePost(ctx, "post_missing", "user-1")
	require.ErrorIs(t, err, ports.ErrPostNotFound)
	_, err = svc.LikePost(ctx, post.ID, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_ConcurrentLikes(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	post := createPost(t, svc, "Popular")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		user := fmt.Sprintf("user-%d", i)
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.LikePost(ctx, post.ID, user)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.LikeCount)
	likes, err := store.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, got.LikeCount, likes)
}

func TestService_Comments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	post := createPost(t, svc, "Discussion")
	other := createPost(t, svc, "Elsewhere")

	root, err := svc.AddComment(ctx, ports.AddCommentInput{PostID: post.ID, AuthorID: "user-1", Content: " First! "})
	require.NoError(t, err)
	assert.Equal(t, "First!", root.Content)

	reply, err := svc.AddComment(ctx, ports.AddCommentInput{PostID: post.ID, AuthorID: "user-2", ParentID: root.ID, Content: "Reply"})
	require.NoError(t, err)
	assert.Equal(t, root.ID, reply.ParentID)

	_, err = svc.AddComment(ctx, ports.AddCommentInput{PostID: other.ID, AuthorID: "user-2", ParentID: root.ID, Content: "Wrong post"})
	require.ErrorIs(t, err, ErrParentMismatch)
	_, err = svc.AddComment(ctx, ports.AddCommentInput{PostID: post.ID, AuthorID: "user-2", Content: "   "})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddComment(ctx, ports.AddCommentInput{PostID: post.ID, AuthorID: "user-2", Content: strings.Repeat("c", 1001)})
	require.ErrorIs(t, err, ErrInvalidInput)

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentCount)

	require.NoError(t, svc.RemoveComment(ctx, root.ID))
	require.ErrorIs(t, svc.RemoveComment(ctx, root.ID), ports.ErrCommentNotFound)

	got, err = svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CommentCount)

	comments, err := svc.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, reply.ID, comments[0].ID)
}

func TestService_CounterFailureRollsBackRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	healthy := NewService(store, aggapp.NewEngine(nil, nil, store, store))
	broken := NewService(store, brokenEvents{})
	post := createPost(t, healthy, "Fragile")

	_, err := broken.LikePost(ctx, post.ID, "user-1")
	require.ErrorIs(t, err, errCounters)
	likes, err := store.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, likes)

	_, err = broken.AddComment(ctx, ports.AddCommentInput{PostID: post.ID, AuthorID: "user-1", Content: "hi"})
	require.ErrorIs(t, err, errCounters)
	comments, err := store.CountComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, comments)

	res, err := healthy.LikePost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	require.True(t, res.Changed)
	_, err = broken.UnlikePost(ctx, post.ID, "user-1")
	require.ErrorIs(t, err, errCounters)
	likes, err = store.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), likes)
}
