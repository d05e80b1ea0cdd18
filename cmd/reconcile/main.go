package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Apurer/commerce-engine/internal/app/engine"
	platformobservability "github.com/Apurer/commerce-engine/internal/platform/observability"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	instruments := platformobservability.ForCommand(os.Stdout, slog.LevelInfo)
	cfg, err := engine.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.PostgresDSN == "" && cfg.MongoURI == "" {
		log.Fatal("POSTGRES_DSN or MONGO_URI must be set; nothing to reconcile in memory")
	}
	cfg.TemporalDisabled = true

	e, cleanup, err := engine.Build(ctx, cfg, instruments)
	if err != nil {
		log.Fatalf("failed to wire engine: %v", err)
	}
	defer cleanup()

	if err := reconcile(ctx, e, instruments.Logger); err != nil {
		cleanup()
		log.Fatalf("reconcile finished with errors: %v", err)
	}
	log.Printf("reconcile completed")
}

// reconcile recomputes every product rating and recounts every post counter.
// A failure on one record does not stop the others.
func reconcile(ctx context.Context, e *engine.Engine, logger *slog.Logger) error {
	var errs []error

	productIDs, err := e.Catalog.ListProductIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range productIDs {
		rating, err := e.Aggregates.RecomputeProduct(ctx, id)
		if err != nil {
			logger.Error("failed to recompute rating", slog.String("product.id", id), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		logger.Info("rating recomputed",
			slog.String("product.id", id),
			slog.Float64("rating.average", rating.Average),
			slog.Int64("rating.count", rating.Count))
	}

	postIDs, err := e.Engagement.ListPostIDs(ctx)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, id := range postIDs {
		counts, err := e.Aggregates.RecountPost(ctx, id)
		if err != nil {
			logger.Error("failed to recount post", slog.String("post.id", id), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		logger.Info("post recounted",
			slog.String("post.id", id),
			slog.Int64("post.like_count", counts.Likes),
			slog.Int64("post.comment_count", counts.Comments))
	}
	return errors.Join(errs...)
}
