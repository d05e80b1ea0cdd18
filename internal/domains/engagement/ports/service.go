package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
)

// CreatePostInput carries a new post.
type CreatePostInput struct {
	AuthorID      string            `json:"authorId"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Excerpt       string            `json:"excerpt,omitempty"`
	FeaturedImage string            `json:"featuredImage,omitempty"`
	Status        domain.PostStatus `json:"status,omitempty"`
}

// AddCommentInput carries a new comment. ParentID must name a comment of the same post.
type AddCommentInput struct {
	PostID   string `json:"postId"`
	AuthorID string `json:"authorId"`
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

// LikeResult reports whether the call changed the like and the resulting count.
type LikeResult struct {
	Changed   bool  `json:"changed"`
	LikeCount int64 `json:"likeCount"`
}

// Service exposes post, like, and comment use cases.
type Service interface {
	CreatePost(ctx context.Context, input CreatePostInput) (*domain.Post, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error)
	ChangePostStatus(ctx context.Context, id string, status domain.PostStatus) (*domain.Post, error)
	LikePost(ctx context.Context, postID, userID string) (LikeResult, error)
	UnlikePost(ctx context.Context, postID, userID string) (LikeResult, error)
	AddComment(ctx context.Context, input AddCommentInput) (*domain.Comment, error)
	RemoveComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]*domain.Comment, error)
	ListPostIDs(ctx context.Context) ([]string, error)
}
