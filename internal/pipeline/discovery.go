package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/queue"
	"github.com/you/scout/internal/scrape"
)

// RunDiscovery walks the paginated listing, filters out subjects already in
// the dedup ledger, and enqueues the rest for enrichment. Only subjects that
// made it into the queue are marked seen, so an enqueue failure leaves the
// subject eligible for the next run.
func (p *Pipeline) RunDiscovery(ctx context.Context) error {
	subjects, err := p.discoverSubjects(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		p.log.Info("discovery: nothing on listing")
		return nil
	}

	urls := make([]string, len(subjects))
	for i, s := range subjects {
		urls[i] = s.URL
	}
	seen, err := p.seen.FilterSeen(ctx, urls)
	if err != nil {
		return err
	}

	enqueued := make(map[string]string)
	for _, s := range subjects {
		if seen[s.URL] {
			continue
		}
		raw, err := json.Marshal(Item{URL: s.URL, Title: s.Title})
		if err != nil {
			p.log.Error("discovery: marshal item", zap.String("subject", s.URL), zap.Error(err))
			continue
		}
		if _, err := p.queues.Enqueue(ctx, keys.QueueEnrich, s.URL, &queue.Job{Payload: raw}); err != nil {
			p.log.Error("discovery: enqueue", zap.String("subject", s.URL), zap.Error(err))
			continue
		}
		enqueued[s.URL] = s.Title
	}

	if len(enqueued) > 0 {
		if err := p.seen.MarkSeenBatch(ctx, enqueued); err != nil {
			return err
		}
	}
	p.log.Info("discovery run finished",
		zap.Int("listed", len(subjects)),
		zap.Int("alreadySeen", len(seen)),
		zap.Int("enqueued", len(enqueued)))
	return nil
}

// discoverSubjects fetches listing pages until one comes back empty or the
// page cap is reached. A fetch failure mid-walk keeps what earlier pages
// yielded rather than discarding the run.
func (p *Pipeline) discoverSubjects(ctx context.Context) ([]scrape.Subject, error) {
	var all []scrape.Subject
	found := make(map[string]bool)

	for page := 1; page <= p.maxPages; page++ {
		body, err := p.fetcher.Fetch(ctx, p.pageURL(page))
		if err != nil {
			if page == 1 {
				return nil, err
			}
			p.log.Warn("discovery: page fetch failed, stopping walk",
				zap.Int("page", page), zap.Error(err))
			break
		}
		subjects := p.parser.Parse(body, p.listingURL)
		body.Close()
		if len(subjects) == 0 {
			break
		}
		fresh := 0
		for _, s := range subjects {
			if !found[s.URL] {
				found[s.URL] = true
				all = append(all, s)
				fresh++
			}
		}
		// Listings that ignore the page parameter repeat themselves; stop
		// once a page adds nothing new.
		if fresh == 0 {
			break
		}
	}
	return all, nil
}

func (p *Pipeline) pageURL(page int) string {
	if page <= 1 {
		return p.listingURL.String()
	}
	u := *p.listingURL
	q := u.Query()
	q.Set("page", fmt.Sprintf("%d", page))
	u.RawQuery = q.Encode()
	return u.String()
}
