package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/queue"
)

// RunEnrichment drains one batch of the enrichment queue: summarize the item
// and hand it to the delivery queue. A failed or empty enrichment burns an
// attempt; the budget here is small since summarization failures tend to be
// permanent.
func (p *Pipeline) RunEnrichment(ctx context.Context) error {
	return p.pollQueue(ctx, keys.QueueEnrich, p.enrichOne)
}

func (p *Pipeline) enrichOne(ctx context.Context, entryKey string, job *queue.Job) {
	var item Item
	if err := json.Unmarshal(job.Payload, &item); err != nil {
		// Malformed payloads ride the generic fail path and age out into
		// the DLQ; no special permanent-failure classification.
		p.resolveFail(ctx, entryKey, job.Subject, "malformed payload: "+err.Error(), p.enrichMaxAttempts, keys.QueueEnrich)
		return
	}

	summary, err := p.enricher.Enrich(ctx, item.URL, item.Title)
	if err != nil {
		p.resolveFail(ctx, entryKey, job.Subject, err.Error(), p.enrichMaxAttempts, keys.QueueEnrich)
		return
	}
	item.Summary = summary

	raw, err := json.Marshal(item)
	if err != nil {
		p.resolveFail(ctx, entryKey, job.Subject, "marshal enriched item: "+err.Error(), p.enrichMaxAttempts, keys.QueueEnrich)
		return
	}
	if _, err := p.queues.Enqueue(ctx, keys.QueueDeliver, job.Subject, &queue.Job{Payload: raw}); err != nil {
		// Hand-off failed; keep the entry so the summary is retried rather
		// than lost.
		p.resolveFail(ctx, entryKey, job.Subject, "enqueue for delivery: "+err.Error(), p.enrichMaxAttempts, keys.QueueEnrich)
		return
	}

	if err := p.retry.Complete(ctx, entryKey, job.Subject); err != nil {
		p.log.Error("enrichment: complete", zap.String("subject", job.Subject), zap.Error(err))
		return
	}
	p.log.Info("item enriched", zap.String("subject", job.Subject))
}

// resolveFail funnels a failed attempt through the retry controller and logs
// if even that bookkeeping failed (the lease will still self-expire).
func (p *Pipeline) resolveFail(ctx context.Context, entryKey, subject, errMsg string, maxAttempts int, dlqQueue string) {
	if err := p.retry.Fail(ctx, entryKey, subject, errMsg, maxAttempts, dlqQueue); err != nil {
		p.log.Error("runner: fail bookkeeping",
			zap.String("subject", subject),
			zap.String("entryKey", entryKey),
			zap.Error(err))
	}
}
