package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
)

var _ ports.Store = (*Store)(nil)

const (
	postsCollection    = "posts"
	likesCollection    = "likes"
	commentsCollection = "comments"
	clampRetries       = 5
)

// Store keeps posts, likes, and comments as MongoDB documents. Counters move
// with filtered $inc updates so a counter never drops below zero.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

type postDocument struct {
	ID            string     `bson:"_id"`
	AuthorID      string     `bson:"author_id"`
	Title         string     `bson:"title"`
	Slug          string     `bson:"slug"`
	Content       string     `bson:"content"`
	Excerpt       string     `bson:"excerpt,omitempty"`
	FeaturedImage string     `bson:"featured_image,omitempty"`
	Status        string     `bson:"status"`
	PublishedAt   *time.Time `bson:"published_at,omitempty"`
	ViewCount     int64      `bson:"view_count"`
	LikeCount     int64      `bson:"like_count"`
	CommentCount  int64      `bson:"comment_count"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

type likeDocument struct {
	PostID    string    `bson:"post_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type commentDocument struct {
	ID        string    `bson:"_id"`
	PostID    string    `bson:"post_id"`
	AuthorID  string    `bson:"author_id"`
	ParentID  string    `bson:"parent_id,omitempty"`
	Content   string    `bson:"content"`
	Approved  bool      `bson:"approved"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// EnsureIndexes creates the unique slug and (post, user) like indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if _, err := s.posts().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("ux_posts_slug"),
	}); err != nil {
		return fmt.Errorf("create posts index: %w", err)
	}
	if _, err := s.likes().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("ux_likes_post_user"),
	}); err != nil {
		return fmt.Errorf("create likes index: %w", err)
	}
	if _, err := s.comments().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("idx_comments_post_created"),
	}); err != nil {
		return fmt.Errorf("create comments index: %w", err)
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if post == nil {
		return errors.New("post is nil")
	}
	if _, err := s.posts().InsertOne(ctx, toPostDocument(post)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.findPost(ctx, bson.M{"_id": id})
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return s.findPost(ctx, bson.M{"slug": slug})
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	n, err := s.posts().CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetPostStatus(ctx context.Context, id string, status domain.PostStatus, publishedAt *time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}}
	if publishedAt != nil {
		update["$min"] = bson.M{"published_at": publishedAt.UTC()}
	}
	result, err := s.posts().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ports.ErrPostNotFound
	}
	return nil
}

func (s *Store) ListPostIDs(ctx context.Context) ([]string, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	cursor, err := s.posts().Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

// AddLike relies on the unique (post_id, user_id) index to reject repeats.
func (s *Store) AddLike(ctx context.Context, like domain.Like) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	if err := s.requirePost(ctx, like.PostID); err != nil {
		return false, err
	}
	_, err := s.likes().InsertOne(ctx, likeDocument{PostID: like.PostID, UserID: like.UserID, CreatedAt: like.CreatedAt.UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	result, err := s.likes().DeleteOne(ctx, bson.M{"post_id": postID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (s *Store) AddComment(ctx context.Context, comment *domain.Comment) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if comment == nil {
		return errors.New("comment is nil")
	}
	if err := s.requirePost(ctx, comment.PostID); err != nil {
		return err
	}
	_, err := s.comments().InsertOne(ctx, toCommentDocument(comment))
	return err
}

func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var doc commentDocument
	if err := s.comments().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrCommentNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) RemoveComment(ctx context.Context, id string) (*domain.Comment, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var doc commentDocument
	if err := s.comments().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrCommentNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]*domain.Comment, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	cursor, err := s.comments().Find(ctx, bson.M{"post_id": postID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []commentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Comment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// AdjustCounter increments only documents whose counter can absorb delta, and
// falls back to a filtered $set to zero when it cannot.
func (s *Store) AdjustCounter(ctx context.Context, postID string, counter aggports.Counter, delta int64) (aggports.AdjustResult, error) {
	if err := s.ensureDB(); err != nil {
		return aggports.AdjustResult{}, err
	}
	if !counter.Valid() {
		return aggports.AdjustResult{}, fmt.Errorf("unknown counter %q", counter)
	}
	field := string(counter)
	for attempt := 0; attempt < clampRetries; attempt++ {
		var doc postDocument
		err := s.posts().FindOneAndUpdate(ctx,
			bson.M{"_id": postID, field: bson.M{"$gte": -delta}},
			bson.M{"$inc": bson.M{field: delta}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err == nil {
			return aggports.AdjustResult{Value: doc.counter(counter)}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return aggports.AdjustResult{}, err
		}

		result, err := s.posts().UpdateOne(ctx,
			bson.M{"_id": postID, field: bson.M{"$lt": -delta}},
			bson.M{"$set": bson.M{field: int64(0)}})
		if err != nil {
			return aggports.AdjustResult{}, err
		}
		if result.MatchedCount > 0 {
			return aggports.AdjustResult{Value: 0, Clamped: true}, nil
		}
		if err := s.requirePost(ctx, postID); errors.Is(err, ports.ErrPostNotFound) {
			return aggports.AdjustResult{}, fmt.Errorf("post %s: %w", postID, aggports.ErrNotFound)
		} else if err != nil {
			return aggports.AdjustResult{}, err
		}
	}
	return aggports.AdjustResult{}, fmt.Errorf("adjust %s of post %s: counter kept changing", field, postID)
}

func (s *Store) SetCounter(ctx context.Context, postID string, counter aggports.Counter, value int64) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if !counter.Valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}
	if value < 0 {
		value = 0
	}
	result, err := s.posts().UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$set": bson.M{string(counter): value}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", postID, aggports.ErrNotFound)
	}
	return nil
}

func (s *Store) CountLikes(ctx context.Context, postID string) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	return s.likes().CountDocuments(ctx, bson.M{"post_id": postID})
}

func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	return s.comments().CountDocuments(ctx, bson.M{"post_id": postID})
}

func (s *Store) findPost(ctx context.Context, filter bson.M) (*domain.Post, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var doc postDocument
	if err := s.posts().FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrPostNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) requirePost(ctx context.Context, id string) error {
	n, err := s.posts().CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrPostNotFound
	}
	return nil
}

func (s *Store) posts() *mongo.Collection { return s.db.Collection(postsCollection) }
func (s *Store) likes() *mongo.Collection { return s.db.Collection(likesCollection) }
func (s *Store) comments() *mongo.Collection { return s.db.Collection(commentsCollection) }

func (s *Store) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("mongo engagement store not configured")
	}
	return nil
}

func (d postDocument) counter(counter aggports.Counter) int64 {
	if counter == aggports.CounterComments {
		return d.CommentCount
	}
	return d.LikeCount
}

func toPostDocument(p *domain.Post) postDocument {
	doc := postDocument{
		ID:            p.ID,
		AuthorID:      p.AuthorID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		FeaturedImage: p.FeaturedImage,
		Status:        string(p.Status),
		ViewCount:     p.ViewCount,
		LikeCount:     p.LikeCount,
		CommentCount:  p.CommentCount,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
	if p.PublishedAt != nil {
		published := p.PublishedAt.UTC()
		doc.PublishedAt = &published
	}
	return doc
}

func (d postDocument) toDomain() *domain.Post {
	return &domain.Post{
		ID:            d.ID,
		AuthorID:      d.AuthorID,
		Title:         d.Title,
		Slug:          d.Slug,
		Content:       d.Content,
		Excerpt:       d.Excerpt,
		FeaturedImage: d.FeaturedImage,
		Status:        domain.PostStatus(d.Status),
		PublishedAt:   d.PublishedAt,
		ViewCount:     d.ViewCount,
		LikeCount:     d.LikeCount,
		CommentCount:  d.CommentCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toCommentDocument(c *domain.Comment) commentDocument {
	return commentDocument{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		Approved:  c.Approved,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (d commentDocument) toDomain() *domain.Comment {
	return &domain.Comment{
		ID:        d.ID,
		PostID:    d.PostID,
		AuthorID:  d.AuthorID,
		ParentID:  d.ParentID,
		Content:   d.Content,
		Approved:  d.Approved,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
