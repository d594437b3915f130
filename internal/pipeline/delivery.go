package pipeline

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/scout/internal/deliver"
	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/queue"
)

// RunDelivery drains one batch of the delivery queue. Rate limiting is the
// one failure that does not count as an attempt: the lease is released so the
// item comes straight back on the next poll, since the condition is expected
// to clear on its own.
func (p *Pipeline) RunDelivery(ctx context.Context) error {
	return p.pollQueue(ctx, keys.QueueDeliver, p.deliverOne)
}

func (p *Pipeline) deliverOne(ctx context.Context, entryKey string, job *queue.Job) {
	var item Item
	if err := json.Unmarshal(job.Payload, &item); err != nil {
		p.resolveFail(ctx, entryKey, job.Subject, "malformed payload: "+err.Error(), p.deliverMaxAttempts, keys.QueueDeliver)
		return
	}

	err := p.deliver.Deliver(ctx, deliver.Notification{
		URL:     item.URL,
		Title:   item.Title,
		Summary: item.Summary,
	})
	switch {
	case err == nil:
		if err := p.retry.Complete(ctx, entryKey, job.Subject); err != nil {
			p.log.Error("delivery: complete", zap.String("subject", job.Subject), zap.Error(err))
			return
		}
		p.log.Info("item delivered", zap.String("subject", job.Subject))
	case errors.Is(err, deliver.ErrRateLimited):
		p.log.Info("delivery rate limited, backing off", zap.String("subject", job.Subject))
		if err := p.leases.Release(ctx, job.Subject); err != nil {
			p.log.Error("delivery: release after rate limit", zap.String("subject", job.Subject), zap.Error(err))
		}
	default:
		p.resolveFail(ctx, entryKey, job.Subject, err.Error(), p.deliverMaxAttempts, keys.QueueDeliver)
	}
}
