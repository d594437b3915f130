package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/you/scout/internal/queue"
)

// pollQueue is the shared stage-runner skeleton: list pending entries, skip
// the ones that vanished or are leased elsewhere, and hand each claimed job
// to the stage handler. The handler owns resolution (complete, fail or
// release); a handler problem never aborts the rest of the batch. Only a
// listing failure — the store itself being unreachable — fails the run.
func (p *Pipeline) pollQueue(ctx context.Context, queueName string, handle func(ctx context.Context, entryKey string, job *queue.Job)) error {
	entryKeys, err := p.queues.ListPending(ctx, queueName, p.pollBatch)
	if err != nil {
		return err
	}
	for _, entryKey := range entryKeys {
		job, err := p.queues.GetJob(ctx, entryKey)
		if err != nil {
			p.log.Error("runner: read job", zap.String("entryKey", entryKey), zap.Error(err))
			continue
		}
		if job == nil {
			continue // resolved or expired since listing
		}
		won, err := p.leases.Claim(ctx, job.Subject)
		if err != nil {
			p.log.Error("runner: claim", zap.String("subject", job.Subject), zap.Error(err))
			continue
		}
		if !won {
			continue // another runner has it
		}
		handle(ctx, entryKey, job)
	}
	return nil
}
