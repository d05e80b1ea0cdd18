//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
	"github.com/Apurer/commerce-engine/internal/platform/migrations"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
)

func setupReviewsPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("reviews_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := platformpostgres.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db, Models()))

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}
	return db, cleanup
}

func newReview(id, productID, userID string, rating int) *domain.Review {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Review{
		ID:        id,
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Title:     "Solid",
		Images:    []string{"https://cdn.example.com/a.png"},
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_CreateModerateAndRatings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupReviewsPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newReview("rev-1", "prod-1", "user-1", 5)))
	require.NoError(t, repo.Create(ctx, newReview("rev-2", "prod-1", "user-2", 2)))
	require.ErrorIs(t, repo.Create(ctx, newReview("rev-3", "prod-1", "user-1", 1)), ports.ErrDuplicateReview)

	require.NoError(t, repo.SetStatus(ctx, "rev-1", domain.StatusPending, domain.StatusApproved))
	require.ErrorIs(t, repo.SetStatus(ctx, "rev-1", domain.StatusPending, domain.StatusRejected), ports.ErrConcurrentUpdate)
	require.ErrorIs(t, repo.SetStatus(ctx, "missing", domain.StatusPending, domain.StatusApproved), ports.ErrNotFound)

	ratings, err := repo.ApprovedRatings(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ratings)

	approved, err := repo.ListByProduct(ctx, "prod-1", domain.StatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, approved[0].Images)

	deleted, err := repo.Delete(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, deleted.Status)
	_, err = repo.Delete(ctx, "rev-1")
	require.ErrorIs(t, err, ports.ErrNotFound)

	ratings, err = repo.ApprovedRatings(ctx, "prod-1")
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestRepository_HelpfulVotes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupReviewsPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newReview("rev-1", "prod-1", "author", 4)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		user := fmt.Sprintf("voter-%d", i)
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AddHelpful(ctx, "rev-1", user)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	review, err := repo.GetByID(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), review.Helpful)
	assert.Len(t, review.HelpfulUsers, 10)

	removed, err := repo.RemoveHelpful(ctx, "rev-1", "voter-0")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.RemoveHelpful(ctx, "rev-1", "voter-0")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, repo.SetResponse(ctx, "rev-1", domain.Response{Comment: "Thanks", RespondedBy: "merchant", RespondedAt: time.Now()}))
	review, err = repo.GetByID(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), review.Helpful)
	require.NotNil(t, review.Response)
	assert.Equal(t, "Thanks", review.Response.Comment)
}
