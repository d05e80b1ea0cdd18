package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
)

var _ ports.Store = (*Store)(nil)

// clampRetries bounds the adjust/clamp round trips when concurrent writers keep
// moving the counter between the two statements.
const clampRetries = 5

// Store persists posts, likes, and comments in PostgreSQL using GORM. Counter
// columns are only changed through guarded single-statement updates.
type Store struct {
	db *gorm.DB
}

// NewStore wires a PostgreSQL-backed store. Caller manages DB lifecycle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Models lists the records this adapter owns, for schema migration.
func Models() []any {
	return []any{&postRecord{}, &likeRecord{}, &commentRecord{}}
}

type postRecord struct {
	ID            string     `gorm:"primaryKey;column:id;size:64"`
	AuthorID      string     `gorm:"column:author_id;size:64;index"`
	Title         string     `gorm:"column:title;size:200"`
	Slug          string     `gorm:"column:slug;size:255;uniqueIndex:ux_posts_slug"`
	Content       string     `gorm:"column:content;type:text"`
	Excerpt       string     `gorm:"column:excerpt;size:500"`
	FeaturedImage string     `gorm:"column:featured_image;size:500"`
	Status        string     `gorm:"column:status;type:varchar(16);index"`
	PublishedAt   *time.Time `gorm:"column:published_at;index"`
	ViewCount     int64      `gorm:"column:view_count"`
	LikeCount     int64      `gorm:"column:like_count"`
	CommentCount  int64      `gorm:"column:comment_count"`
	CreatedAt     time.Time  `gorm:"column:created_at;index"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (postRecord) TableName() string { return "posts" }

type likeRecord struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	PostID    string    `gorm:"column:post_id;size:64;uniqueIndex:ux_likes_post_user,priority:1"`
	UserID    string    `gorm:"column:user_id;size:64;uniqueIndex:ux_likes_post_user,priority:2;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (likeRecord) TableName() string { return "likes" }

type commentRecord struct {
	ID        string    `gorm:"primaryKey;column:id;size:64"`
	PostID    string    `gorm:"column:post_id;size:64;index"`
	AuthorID  string    `gorm:"column:author_id;size:64;index"`
	ParentID  string    `gorm:"column:parent_id;size:64;index"`
	Content   string    `gorm:"column:content;size:1000"`
	Approved  bool      `gorm:"column:approved"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (commentRecord) TableName() string { return "comments" }

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if post == nil {
		return errors.New("post is nil")
	}
	rec := toPostRecord(post)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if constraint, ok := platformpostgres.UniqueViolation(err); ok && constraint != "posts_pkey" {
			return ports.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.firstPost(ctx, "id = ?", id)
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return s.firstPost(ctx, "slug = ?", slug)
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&postRecord{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) SetPostStatus(ctx context.Context, id string, status domain.PostStatus, publishedAt *time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	columns := map[string]any{"status": string(status), "updated_at": time.Now().UTC()}
	if publishedAt != nil {
		columns["published_at"] = gorm.Expr("COALESCE(published_at, ?)", publishedAt.UTC())
	}
	result := s.db.WithContext(ctx).Model(&postRecord{}).Where("id = ?", id).UpdateColumns(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrPostNotFound
	}
	return nil
}

func (s *Store) ListPostIDs(ctx context.Context) ([]string, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var ids []string
	if err := s.db.WithContext(ctx).Model(&postRecord{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AddLike inserts the like unless the (post, user) pair already exists.
func (s *Store) AddLike(ctx context.Context, like domain.Like) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	exists, err := s.postExists(ctx, like.PostID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ports.ErrPostNotFound
	}
	rec := likeRecord{PostID: like.PostID, UserID: like.UserID, CreatedAt: like.CreatedAt.UTC()}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "post_id"}, {Name: "user_id"}}, DoNothing: true}).
		Create(&rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	result := s.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&likeRecord{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) AddComment(ctx context.Context, comment *domain.Comment) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if comment == nil {
		return errors.New("comment is nil")
	}
	exists, err := s.postExists(ctx, comment.PostID)
	if err != nil {
		return err
	}
	if !exists {
		return ports.ErrPostNotFound
	}
	rec := toCommentRecord(comment)
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var rec commentRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrCommentNotFound
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

// RemoveComment deletes the comment and returns the deleted row.
func (s *Store) RemoveComment(ctx context.Context, id string) (*domain.Comment, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var deleted []commentRecord
	result := s.db.WithContext(ctx).Clauses(clause.Returning{}).Where("id = ?", id).Delete(&deleted)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(deleted) == 0 {
		return nil, ports.ErrCommentNotFound
	}
	return deleted[0].toDomain(), nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]*domain.Comment, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var records []commentRecord
	if err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at").Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Comment, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// AdjustCounter adds delta only while the result stays non-negative. When the
// guard rejects the update the counter is clamped to zero by a second guarded
// statement, and the pair is retried if another writer moved the counter between them.
func (s *Store) AdjustCounter(ctx context.Context, postID string, counter aggports.Counter, delta int64) (aggports.AdjustResult, error) {
	if err := s.ensureDB(); err != nil {
		return aggports.AdjustResult{}, err
	}
	if !counter.Valid() {
		return aggports.AdjustResult{}, fmt.Errorf("unknown counter %q", counter)
	}
	column := string(counter)
	for attempt := 0; attempt < clampRetries; attempt++ {
		var rec postRecord
		result := s.db.WithContext(ctx).Model(&rec).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: column}}}).
			Where("id = ? AND "+column+" + ? >= 0", postID, delta).
			UpdateColumn(column, gorm.Expr(column+" + ?", delta))
		if result.Error != nil {
			return aggports.AdjustResult{}, result.Error
		}
		if result.RowsAffected > 0 {
			return aggports.AdjustResult{Value: counterValue(rec, counter)}, nil
		}

		result = s.db.WithContext(ctx).Model(&postRecord{}).
			Where("id = ? AND "+column+" + ? < 0", postID, delta).
			UpdateColumn(column, 0)
		if result.Error != nil {
			return aggports.AdjustResult{}, result.Error
		}
		if result.RowsAffected > 0 {
			return aggports.AdjustResult{Value: 0, Clamped: true}, nil
		}

		exists, err := s.postExists(ctx, postID)
		if err != nil {
			return aggports.AdjustResult{}, err
		}
		if !exists {
			return aggports.AdjustResult{}, fmt.Errorf("post %s: %w", postID, aggports.ErrNotFound)
		}
	}
	return aggports.AdjustResult{}, fmt.Errorf("adjust %s of post %s: counter kept changing", column, postID)
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
	result := s.db.WithContext(ctx).Model(&postRecord{}).Where("id = ?", postID).UpdateColumn(string(counter), value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("post %s: %w", postID, aggports.ErrNotFound)
	}
	return nil
}

func (s *Store) CountLikes(ctx context.Context, postID string) (int64, error) {
	return s.count(ctx, &likeRecord{}, postID)
}

func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	return s.count(ctx, &commentRecord{}, postID)
}

func (s *Store) count(ctx context.Context, model any, postID string) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) firstPost(ctx context.Context, query string, arg any) (*domain.Post, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var rec postRecord
	if err := s.db.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrPostNotFound
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *Store) postExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&postRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres engagement store not configured")
	}
	return nil
}

func counterValue(rec postRecord, counter aggports.Counter) int64 {
	if counter == aggports.CounterComments {
		return rec.CommentCount
	}
	return rec.LikeCount
}

func toPostRecord(p *domain.Post) postRecord {
	rec := postRecord{
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
		rec.PublishedAt = &published
	}
	return rec
}

func (r postRecord) toDomain() *domain.Post {
	return &domain.Post{
		ID:            r.ID,
		AuthorID:      r.AuthorID,
		Title:         r.Title,
		Slug:          r.Slug,
		Content:       r.Content,
		Excerpt:       r.Excerpt,
		FeaturedImage: r.FeaturedImage,
		Status:        domain.PostStatus(r.Status),
		PublishedAt:   r.PublishedAt,
		ViewCount:     r.ViewCount,
		LikeCount:     r.LikeCount,
		CommentCount:  r.CommentCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toCommentRecord(c *domain.Comment) commentRecord {
	return commentRecord{
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

func (r commentRecord) toDomain() *domain.Comment {
	return &domain.Comment{
		ID:        r.ID,
		PostID:    r.PostID,
		AuthorID:  r.AuthorID,
		ParentID:  r.ParentID,
		Content:   r.Content,
		Approved:  r.Approved,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
