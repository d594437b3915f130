// Package app wires the shared object graph used by both entrypoints.
package app

import (
	"time"

	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/scout/internal/config"
	"github.com/you/scout/internal/dedup"
	"github.com/you/scout/internal/deliver"
	"github.com/you/scout/internal/enrich"
	"github.com/you/scout/internal/kv"
	"github.com/you/scout/internal/lease"
	"github.com/you/scout/internal/pipeline"
	"github.com/you/scout/internal/queue"
	"github.com/you/scout/internal/retry"
)

// App bundles everything an entrypoint needs after construction.
type App struct {
	Pipeline *pipeline.Pipeline
	Retry    *retry.Controller
	Redis    *r.Client
	Log      *zap.Logger
}

// New builds the full graph from configuration. Construction failure means a
// structural/config error: the invocation aborts before any job is touched.
func New(cfg config.Config) (*App, error) {
	var log *zap.Logger
	var err error
	if cfg.AppEnv == "prod" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	store := kv.NewRedis(rdb)

	queues := queue.New(store)
	leases := lease.New(store, log)
	ctrl := retry.New(queues, leases, store, log)
	seen := dedup.New(store)

	enricher := enrich.NewClient(enrich.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: 30 * time.Second,
	})
	webhook := deliver.NewWebhook(cfg.WebhookURL)

	p, err := pipeline.New(cfg, queues, leases, ctrl, seen,
		pipeline.NewHTTPFetcher(), enricher, webhook, log)
	if err != nil {
		return nil, err
	}
	return &App{Pipeline: p, Retry: ctrl, Redis: rdb, Log: log}, nil
}
