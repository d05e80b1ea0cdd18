// Package engine wires the bounded contexts into one process: adapters are
// chosen from configuration and the aggregate engine is connected to the
// reviews and engagement contexts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	aggapp "github.com/Apurer/commerce-engine/internal/domains/aggregates/application"
	catalogmemory "github.com/Apurer/commerce-engine/internal/domains/catalog/adapters/memory"
	catalogobs "github.com/Apurer/commerce-engine/internal/domains/catalog/adapters/observability"
	catalogpostgres "github.com/Apurer/commerce-engine/internal/domains/catalog/adapters/persistence/postgres"
	catalogapp "github.com/Apurer/commerce-engine/internal/domains/catalog/application"
	catalogports "github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	engagementmemory "github.com/Apurer/commerce-engine/internal/domains/engagement/adapters/memory"
	engagementobs "github.com/Apurer/commerce-engine/internal/domains/engagement/adapters/observability"
	engagementmongo "github.com/Apurer/commerce-engine/internal/domains/engagement/adapters/persistence/mongodb"
	engagementpostgres "github.com/Apurer/commerce-engine/internal/domains/engagement/adapters/persistence/postgres"
	engagementapp "github.com/Apurer/commerce-engine/internal/domains/engagement/application"
	engagementports "github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
	orderscatalog "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/catalog"
	ordersmemory "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/persistence/postgres"
	ordersworkflows "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/commerce-engine/internal/domains/orders/application"
	ordersports "github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	reviewscatalog "github.com/Apurer/commerce-engine/internal/domains/reviews/adapters/catalog"
	reviewsmemory "github.com/Apurer/commerce-engine/internal/domains/reviews/adapters/memory"
	reviewsobs "github.com/Apurer/commerce-engine/internal/domains/reviews/adapters/observability"
	reviewspostgres "github.com/Apurer/commerce-engine/internal/domains/reviews/adapters/persistence/postgres"
	reviewsapp "github.com/Apurer/commerce-engine/internal/domains/reviews/application"
	reviewsports "github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
	"github.com/Apurer/commerce-engine/internal/platform/migrations"
	platformmongo "github.com/Apurer/commerce-engine/internal/platform/mongodb"
	platformobservability "github.com/Apurer/commerce-engine/internal/platform/observability"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
	"github.com/Apurer/commerce-engine/internal/shared/identifier"
)

// Engine holds the wired services of every bounded context.
type Engine struct {
	Catalog    catalogports.Service
	Orders     ordersports.Service
	Reviews    reviewsports.Service
	Engagement engagementports.Service
	Aggregates *aggapp.Engine
	// Workflows runs order placement and transitions on Temporal when a client
	// is connected and inline otherwise.
	Workflows ordersports.WorkflowOrchestrator
	// Temporal is nil when workflows run inline.
	Temporal client.Client
}

type adapters struct {
	catalogRepo catalogports.Repository
	ledger      catalogports.InventoryLedger
	ordersRepo  ordersports.Repository
	ordersIdem  ordersports.IdempotencyStore
	reviewsRepo reviewsports.Repository
	engagement  engagementports.Store
}

// Build connects the configured stores and wires every context. The returned
// cleanup closes connections and must be called on exit.
func Build(ctx context.Context, cfg Config, instruments *platformobservability.Instruments) (*Engine, func(), error) {
	logger := loggerOf(instruments)
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	db, closeDB := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, logger)
	cleanups = append(cleanups, closeDB)
	a, err := buildAdapters(ctx, cfg, db, logger, &cleanups)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	ids := identifier.NewGenerator()
	catalogService := catalogobs.New(
		catalogapp.NewService(a.catalogRepo, a.ledger,
			catalogapp.WithIdentifierGenerator(ids),
			catalogapp.WithSlugAttempts(cfg.SlugAttempts),
			catalogapp.WithDefaultCurrency(cfg.DefaultCurrency)),
		catalogobs.WithLogger(logger),
		catalogobs.WithTracer(instruments.Tracer("internal.catalog.application")),
		catalogobs.WithMeter(instruments.Meter("internal.catalog.application")),
	)

	bridge := orderscatalog.NewBridge(catalogService)
	ordersService := ordersobs.New(
		ordersapp.NewService(a.ordersRepo, bridge, bridge, bridge,
			ordersapp.WithIdentifierGenerator(ids),
			ordersapp.WithIdempotencyStore(a.ordersIdem),
			ordersapp.WithOrderNumberAttempts(cfg.OrderNumberAttempts),
			ordersapp.WithDefaultCurrency(cfg.DefaultCurrency),
			ordersapp.WithLogger(logger)),
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	aggregates := aggapp.NewEngine(a.reviewsRepo, catalogService, a.engagement, a.engagement,
		aggapp.WithLogger(logger),
		aggapp.WithMeter(instruments.Meter("internal.aggregates.application")),
	)

	reviewsService := reviewsobs.New(
		reviewsapp.NewService(a.reviewsRepo, reviewscatalog.NewDirectory(catalogService), ordersService, aggregates,
			reviewsapp.WithLogger(logger)),
		reviewsobs.WithLogger(logger),
		reviewsobs.WithTracer(instruments.Tracer("internal.reviews.application")),
		reviewsobs.WithMeter(instruments.Meter("internal.reviews.application")),
	)

	engagementService := engagementobs.New(
		engagementapp.NewService(a.engagement, aggregates,
			engagementapp.WithIdentifierGenerator(ids),
			engagementapp.WithSlugAttempts(cfg.SlugAttempts),
			engagementapp.WithLogger(logger)),
		engagementobs.WithLogger(logger),
		engagementobs.WithTracer(instruments.Tracer("internal.engagement.application")),
		engagementobs.WithMeter(instruments.Meter("internal.engagement.application")),
	)

	e := &Engine{
		Catalog:    catalogService,
		Orders:     ordersService,
		Reviews:    reviewsService,
		Engagement: engagementService,
		Aggregates: aggregates,
		Workflows:  ordersworkflows.NewInlineOrderWorkflows(ordersService),
	}
	if temporalClient, err := ConnectTemporal(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, running order workflows inline", slog.String("error", err.Error()))
	} else {
		cleanups = append(cleanups, temporalClient.Close)
		e.Temporal = temporalClient
		e.Workflows = ordersworkflows.NewTemporalOrderWorkflows(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}
	return e, cleanup, nil
}

func buildAdapters(ctx context.Context, cfg Config, db *gorm.DB, logger *slog.Logger, cleanups *[]func()) (adapters, error) {
	var a adapters
	if db != nil {
		if err := migrations.Run(db,
			catalogpostgres.Models(),
			orderspostgres.Models(),
			reviewspostgres.Models(),
			engagementpostgres.Models(),
		); err != nil {
			return adapters{}, fmt.Errorf("apply schema: %w", err)
		}
		catalogRepo := catalogpostgres.NewRepository(db)
		a = adapters{
			catalogRepo: catalogRepo,
			ledger:      catalogRepo,
			ordersRepo:  orderspostgres.NewRepository(db),
			ordersIdem:  orderspostgres.NewIdempotencyStore(db),
			reviewsRepo: reviewspostgres.NewRepository(db),
			engagement:  engagementpostgres.NewStore(db),
		}
		logger.Info("repositories configured with postgres")
	} else {
		catalogRepo := catalogmemory.NewRepository()
		a = adapters{
			catalogRepo: catalogRepo,
			ledger:      catalogRepo,
			ordersRepo:  ordersmemory.NewRepository(),
			ordersIdem:  ordersmemory.NewIdempotencyStore(),
			reviewsRepo: reviewsmemory.NewRepository(),
			engagement:  engagementmemory.NewStore(),
		}
	}

	mongoClient, closeMongo := platformmongo.ConnectOrFallback(ctx, cfg.MongoURI, logger)
	*cleanups = append(*cleanups, closeMongo)
	if mongoClient != nil {
		store := engagementmongo.NewStore(mongoClient.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			return adapters{}, fmt.Errorf("ensure engagement indexes: %w", err)
		}
		a.engagement = store
		logger.Info("engagement store configured with mongo", slog.String("database", cfg.MongoDatabase))
	}
	return a, nil
}

// ConnectTemporal dials Temporal with tracing and structured logging.
func ConnectTemporal(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-client"),
	})
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(loggerOf(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func loggerOf(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
