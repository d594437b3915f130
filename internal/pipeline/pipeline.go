// Package pipeline wires the stage runners: discovery scrapes the listing and
// enqueues unseen subjects, enrichment summarizes them, delivery posts them to
// the webhook. Stages never call each other; each one polls its queue on its
// own trigger and hands work forward by enqueueing. The lease manager is the
// only defense against overlapping invocations of the same stage.
package pipeline

import (
	"context"
	"io"
	"net/url"
	"regexp"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/scout/internal/config"
	"github.com/you/scout/internal/dedup"
	"github.com/you/scout/internal/deliver"
	"github.com/you/scout/internal/lease"
	"github.com/you/scout/internal/queue"
	"github.com/you/scout/internal/retry"
	"github.com/you/scout/internal/scrape"
)

// Item is the stage payload carried inside a queue entry. Discovery fills URL
// and Title; enrichment adds Summary before handing off to delivery.
type Item struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Fetcher retrieves a listing page. Kept as an interface so the fetch
// strategy (plain HTTP today, headless browser someday) stays swappable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Enricher produces a summary for an item, or an error when it cannot.
type Enricher interface {
	Enrich(ctx context.Context, url, title string) (string, error)
}

// Deliverer pushes a finished item out. It must return
// deliver.ErrRateLimited for back-off conditions; the retry policy
// branches on it.
type Deliverer interface {
	Deliver(ctx context.Context, n deliver.Notification) error
}

// Pipeline holds the shared coordination components plus the three stage
// collaborators. All dependencies are explicit; nothing global.
type Pipeline struct {
	queues *queue.Store
	leases *lease.Manager
	retry  *retry.Controller
	seen   *dedup.Ledger

	fetcher  Fetcher
	parser   *scrape.Parser
	enricher Enricher
	deliver  Deliverer

	listingURL *url.URL
	maxPages   int
	pollBatch  int

	enrichMaxAttempts  int
	deliverMaxAttempts int

	log *zap.Logger
}

// New validates the structural configuration up front: a missing collaborator
// or unparseable listing URL fails the whole construction, before any job is
// touched.
func New(
	cfg config.Config,
	queues *queue.Store,
	leases *lease.Manager,
	ctrl *retry.Controller,
	seen *dedup.Ledger,
	fetcher Fetcher,
	enricher Enricher,
	deliverer Deliverer,
	log *zap.Logger,
) (*Pipeline, error) {
	if queues == nil || leases == nil || ctrl == nil || seen == nil {
		return nil, errors.New("pipeline: queue store, lease manager, retry controller and dedup ledger are required")
	}
	if fetcher == nil || enricher == nil || deliverer == nil {
		return nil, errors.New("pipeline: fetcher, enricher and deliverer are required")
	}
	listing, err := url.Parse(cfg.ListingURL)
	if err != nil || listing.Host == "" {
		return nil, errors.Errorf("pipeline: invalid listing url %q", cfg.ListingURL)
	}

	var pattern *regexp.Regexp
	if cfg.ItemPattern != "" {
		pattern, err = regexp.Compile(cfg.ItemPattern)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline: invalid item pattern %q", cfg.ItemPattern)
		}
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	pollBatch := cfg.PollBatch
	if pollBatch <= 0 {
		pollBatch = 50
	}
	enrichMax := cfg.EnrichMaxAttempts
	if enrichMax <= 0 {
		enrichMax = 3
	}
	deliverMax := cfg.DeliverMaxAttempts
	if deliverMax <= 0 {
		deliverMax = 8
	}

	return &Pipeline{
		queues:             queues,
		leases:             leases,
		retry:              ctrl,
		seen:               seen,
		fetcher:            fetcher,
		parser:             scrape.NewParser(pattern),
		enricher:           enricher,
		deliver:            deliverer,
		listingURL:         listing,
		maxPages:           maxPages,
		pollBatch:          pollBatch,
		enrichMaxAttempts:  enrichMax,
		deliverMaxAttempts: deliverMax,
		log:                log,
	}, nil
}
