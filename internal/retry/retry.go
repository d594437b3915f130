// Package retry owns the job state machine past the leased state:
// Pending -> Leased -> {Completed | Retrying -> Pending | DeadLettered}.
// Every transition is a sequence of independent writes — the store has no
// multi-key transactions — so each step is arranged to be safe if the
// process dies between writes.
package retry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/kv"
	"github.com/you/scout/internal/lease"
	"github.com/you/scout/internal/queue"
)

// DeadLetter is the terminal record for a job that exhausted its retry
// budget. Keyed by subject hash and overwritten on re-fail, never appended,
// which keeps the fail path's crash window self-healing.
type DeadLetter struct {
	Job       *queue.Job `json:"job"`
	LastError string     `json:"lastError"`
	Attempts  int        `json:"attempts"`
	FailedAt  time.Time  `json:"failedAt"`
}

// Controller resolves leased queue entries via Complete and Fail.
type Controller struct {
	queues *queue.Store
	leases *lease.Manager
	kv     kv.Store
	log    *zap.Logger

	now func() time.Time // test seam
}

func New(queues *queue.Store, leases *lease.Manager, store kv.Store, log *zap.Logger) *Controller {
	return &Controller{queues: queues, leases: leases, kv: store, log: log, now: time.Now}
}

// Complete deletes the queue entry and releases the subject lease. The two
// deletes are issued concurrently; a crash after the first leaves a dangling
// lease that self-expires, which is safe. Calling Complete twice is a no-op
// the second time.
func (c *Controller) Complete(ctx context.Context, entryKey, subject string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.queues.Delete(ctx, entryKey) })
	g.Go(func() error { return c.leases.Release(ctx, subject) })
	return g.Wait()
}

// Fail records a failed attempt. Below maxAttempts the entry is written back
// with attempts incremented and the lease released, so it is eligible on the
// very next poll. At maxAttempts the entry moves to the dlqQueue dead-letter
// store instead. An entry that no longer exists is a benign skip: only the
// lease is released.
func (c *Controller) Fail(ctx context.Context, entryKey, subject, errMsg string, maxAttempts int, dlqQueue string) error {
	job, err := c.queues.GetJob(ctx, entryKey)
	if err != nil {
		return err
	}
	if job == nil {
		// Entry completed or expired underneath us; do not hold the lease
		// hostage for a TTL wait.
		return c.leases.Release(ctx, subject)
	}

	now := c.now().UTC()
	job.Attempts++
	job.LastAttempt = &now
	job.Error = errMsg

	if job.Attempts >= maxAttempts {
		if err := c.deadLetter(ctx, dlqQueue, subject, job, errMsg, now); err != nil {
			return err
		}
		c.log.Warn("job dead-lettered",
			zap.String("queue", dlqQueue),
			zap.String("subject", subject),
			zap.Int("attempts", job.Attempts),
			zap.String("error", errMsg))
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return c.queues.Delete(ctx, entryKey) })
		g.Go(func() error { return c.leases.Release(ctx, subject) })
		return g.Wait()
	}

	if err := c.queues.Update(ctx, entryKey, job); err != nil {
		return err
	}
	c.log.Info("job failed, will retry",
		zap.String("subject", subject),
		zap.Int("attempts", job.Attempts),
		zap.Int("maxAttempts", maxAttempts),
		zap.String("error", errMsg))
	return c.leases.Release(ctx, subject)
}

func (c *Controller) deadLetter(ctx context.Context, dlqQueue, subject string, job *queue.Job, errMsg string, at time.Time) error {
	dl := DeadLetter{Job: job, LastError: errMsg, Attempts: job.Attempts, FailedAt: at}
	raw, err := json.Marshal(dl)
	if err != nil {
		return errors.Wrap(err, "retry: marshal dead letter")
	}
	return c.kv.Put(ctx, keys.DLQKey(dlqQueue, subject), raw, keys.DLQTTL)
}

// DeadLetters lists a stage's dead letters for inspection; failures are only
// observable here and in logs, never surfaced synchronously.
func (c *Controller) DeadLetters(ctx context.Context, dlqQueue string, limit int) ([]DeadLetter, error) {
	ks, err := c.kv.List(ctx, keys.DLQPrefix(dlqQueue), limit)
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(ks))
	for _, k := range ks {
		raw, err := c.kv.Get(ctx, k)
		if errors.Is(err, kv.ErrNotFound) {
			continue // expired between list and get
		}
		if err != nil {
			return nil, err
		}
		var dl DeadLetter
		if err := json.Unmarshal(raw, &dl); err != nil {
			return nil, errors.Wrapf(err, "retry: decode %s", k)
		}
		out = append(out, dl)
	}
	return out, nil
}
