package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/you/scout/internal/app"
	"github.com/you/scout/internal/config"
)

// The scheduler fires each stage on its own cadence. Overlap between a
// scheduled run and a manual one is tolerated: the lease manager is the
// defense against double-processing, not the trigger layer.
func main() {
	cfg := config.Load()
	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Log.Sync()

	ctx := context.Background()

	discovery := time.NewTicker(cfg.DiscoveryInterval)
	enrichment := time.NewTicker(cfg.EnrichInterval)
	delivery := time.NewTicker(cfg.DeliverInterval)
	defer discovery.Stop()
	defer enrichment.Stop()
	defer delivery.Stop()

	a.Log.Info("scheduler started",
		zap.Duration("discoveryInterval", cfg.DiscoveryInterval),
		zap.Duration("enrichInterval", cfg.EnrichInterval),
		zap.Duration("deliverInterval", cfg.DeliverInterval))

	for {
		select {
		case <-discovery.C:
			runStage(ctx, a.Log, "discovery", a.Pipeline.RunDiscovery)
		case <-enrichment.C:
			runStage(ctx, a.Log, "enrichment", a.Pipeline.RunEnrichment)
		case <-delivery.C:
			runStage(ctx, a.Log, "delivery", a.Pipeline.RunDelivery)
		}
	}
}

func runStage(ctx context.Context, logger *zap.Logger, stage string, run func(context.Context) error) {
	runLog := logger.With(zap.String("stage", stage), zap.String("runID", uuid.NewString()))
	start := time.Now()
	if err := run(ctx); err != nil {
		// Structural failure of one tick; the next tick retries.
		runLog.Error("stage run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	runLog.Info("stage run finished", zap.Duration("took", time.Since(start)))
}
