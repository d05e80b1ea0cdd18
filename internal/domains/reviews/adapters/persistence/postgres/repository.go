package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists reviews in PostgreSQL using GORM. Helpful voters are kept
// in a text[] column so a vote is one guarded UPDATE.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Models lists the records this adapter owns, for schema migration.
func Models() []any {
	return []any{&reviewRecord{}}
}

type reviewRecord struct {
	ID              string         `gorm:"primaryKey;column:id;size:64"`
	ProductID       string         `gorm:"column:product_id;size:64;uniqueIndex:ux_reviews_product_user,priority:1;index:idx_reviews_product_status,priority:1"`
	UserID          string         `gorm:"column:user_id;size:64;uniqueIndex:ux_reviews_product_user,priority:2"`
	OrderID         string         `gorm:"column:order_id;size:64"`
	Rating          int            `gorm:"column:rating"`
	Title           string         `gorm:"column:title;size:100"`
	Comment         string         `gorm:"column:comment;type:text"`
	Images          pq.StringArray `gorm:"column:images;type:text[]"`
	Verified        bool           `gorm:"column:verified"`
	Helpful         int64          `gorm:"column:helpful"`
	HelpfulUsers    pq.StringArray `gorm:"column:helpful_users;type:text[]"`
	Status          string         `gorm:"column:status;type:varchar(16);index:idx_reviews_product_status,priority:2"`
	ResponseComment string         `gorm:"column:response_comment;size:500"`
	RespondedBy     string         `gorm:"column:responded_by;size:64"`
	RespondedAt     *time.Time     `gorm:"column:responded_at"`
	CreatedAt       time.Time      `gorm:"column:created_at;index"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

func (reviewRecord) TableName() string { return "reviews" }

func (r *Repository) Create(ctx context.Context, review *domain.Review) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if review == nil {
		return errors.New("review is nil")
	}
	rec := toRecord(review)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if constraint, ok := platformpostgres.UniqueViolation(err); ok && constraint != "reviews_pkey" {
			return ports.ErrDuplicateReview
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var rec reviewRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

func (r *Repository) ListByProduct(ctx context.Context, productID string, status domain.Status) ([]*domain.Review, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var records []reviewRecord
	if err := query.Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Review, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// SetStatus is a compare-and-set on the status column.
func (r *Repository) SetStatus(ctx context.Context, id string, expected, next domain.Status) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&reviewRecord{}).
		Where("id = ? AND status = ?", id, string(expected)).
		UpdateColumns(map[string]any{"status": string(next), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrConcurrentUpdate
}

func (r *Repository) SetResponse(ctx context.Context, id string, response domain.Response) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	respondedAt := response.RespondedAt.UTC()
	result := r.db.WithContext(ctx).Model(&reviewRecord{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"response_comment": response.Comment,
			"responded_by":     response.RespondedBy,
			"responded_at":     &respondedAt,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// AddHelpful appends the voter only while it is absent from helpful_users.
func (r *Repository) AddHelpful(ctx context.Context, id, userID string) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).Model(&reviewRecord{}).
		Where("id = ? AND NOT (? = ANY(COALESCE(helpful_users, '{}')))", id, userID).
		UpdateColumns(map[string]any{
			"helpful_users": gorm.Expr("array_append(helpful_users, ?)", userID),
			"helpful":       gorm.Expr("helpful + 1"),
		})
	return r.voteResult(ctx, id, result)
}

// RemoveHelpful drops the voter only while it is present; helpful never goes below zero.
func (r *Repository) RemoveHelpful(ctx context.Context, id, userID string) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).Model(&reviewRecord{}).
		Where("id = ? AND ? = ANY(helpful_users)", id, userID).
		UpdateColumns(map[string]any{
			"helpful_users": gorm.Expr("array_remove(helpful_users, ?)", userID),
			"helpful":       gorm.Expr("GREATEST(helpful - 1, 0)"),
		})
	return r.voteResult(ctx, id, result)
}

func (r *Repository) voteResult(ctx context.Context, id string, result *gorm.DB) (bool, error) {
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ports.ErrNotFound
	}
	return false, nil
}

// Delete removes the review and returns the deleted row.
func (r *Repository) Delete(ctx context.Context, id string) (*domain.Review, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var deleted []reviewRecord
	result := r.db.WithContext(ctx).Clauses(clause.Returning{}).Where("id = ?", id).Delete(&deleted)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(deleted) == 0 {
		return nil, ports.ErrNotFound
	}
	return deleted[0].toDomain(), nil
}

func (r *Repository) ApprovedRatings(ctx context.Context, productID string) ([]int, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	ratings := []int{}
	err := r.db.WithContext(ctx).Model(&reviewRecord{}).
		Where("product_id = ? AND status = ?", productID, string(domain.StatusApproved)).
		Pluck("rating", &ratings).Error
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

func (r *Repository) exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&reviewRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres review repository not configured")
	}
	return nil
}

func toRecord(review *domain.Review) reviewRecord {
	rec := reviewRecord{
		ID:           review.ID,
		ProductID:    review.ProductID,
		UserID:       review.UserID,
		OrderID:      review.OrderID,
		Rating:       review.Rating,
		Title:        review.Title,
		Comment:      review.Comment,
		Images:       pq.StringArray(append([]string{}, review.Images...)),
		Verified:     review.Verified,
		Helpful:      review.Helpful,
		HelpfulUsers: pq.StringArray(append([]string{}, review.HelpfulUsers...)),
		Status:       string(review.Status),
		CreatedAt:    review.CreatedAt.UTC(),
		UpdatedAt:    review.UpdatedAt.UTC(),
	}
	if review.Response != nil {
		respondedAt := review.Response.RespondedAt.UTC()
		rec.ResponseComment = review.Response.Comment
		rec.RespondedBy = review.Response.RespondedBy
		rec.RespondedAt = &respondedAt
	}
	return rec
}

func (r reviewRecord) toDomain() *domain.Review {
	review := &domain.Review{
		ID:           r.ID,
		ProductID:    r.ProductID,
		UserID:       r.UserID,
		OrderID:      r.OrderID,
		Rating:       r.Rating,
		Title:        r.Title,
		Comment:      r.Comment,
		Images:       []string(r.Images),
		Verified:     r.Verified,
		Helpful:      r.Helpful,
		HelpfulUsers: []string(r.HelpfulUsers),
		Status:       domain.Status(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.RespondedAt != nil {
		review.Response = &domain.Response{
			Comment:     r.ResponseComment,
			RespondedBy: r.RespondedBy,
			RespondedAt: *r.RespondedAt,
		}
	}
	return review
}
