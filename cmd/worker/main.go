package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/commerce-engine/internal/app/engine"
	platformobservability "github.com/Apurer/commerce-engine/internal/platform/observability"
	orderactivities "github.com/Apurer/commerce-engine/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/commerce-engine/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "commerce-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := engine.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	e, cleanup, err := engine.Build(ctx, cfg, instruments)
	if err != nil {
		logger.Error("failed to wire engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()
	if e.Temporal == nil {
		logger.Error("worker requires a Temporal connection", slog.String("address", cfg.TemporalAddress))
		cleanup()
		os.Exit(1)
	}

	activities := orderactivities.NewActivities(e.Orders)
	w := worker.New(e.Temporal, orderworkflows.OrdersTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.OrderPlacementWorkflow, workflow.RegisterOptions{Name: orderworkflows.OrderPlacementWorkflowName})
	w.RegisterWorkflowWithOptions(orderworkflows.OrderTransitionWorkflow, workflow.RegisterOptions{Name: orderworkflows.OrderTransitionWorkflowName})
	w.RegisterActivityWithOptions(activities.CreateOrder, activity.RegisterOptions{Name: orderactivities.CreateOrderActivityName})
	w.RegisterActivityWithOptions(activities.TransitionOrder, activity.RegisterOptions{Name: orderactivities.TransitionOrderActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.OrdersTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
