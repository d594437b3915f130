package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/kv"
	"github.com/you/scout/internal/lease"
	"github.com/you/scout/internal/queue"
)

type fixture struct {
	store  *kv.Memory
	queues *queue.Store
	leases *lease.Manager
	ctrl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemory()
	t.Cleanup(store.Close)
	queues := queue.New(store)
	leases := lease.New(store, zap.NewNop())
	return &fixture{
		store:  store,
		queues: queues,
		leases: leases,
		ctrl:   New(queues, leases, store, zap.NewNop()),
	}
}

func (f *fixture) enqueueClaimed(t *testing.T, subject string) string {
	t.Helper()
	ctx := context.Background()
	key, err := f.queues.Enqueue(ctx, keys.QueueEnrich, subject, &queue.Job{})
	require.NoError(t, err)
	won, err := f.leases.Claim(ctx, subject)
	require.NoError(t, err)
	require.True(t, won)
	return key
}

func TestComplete_RemovesEntryAndReleasesLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/1"
	key := f.enqueueClaimed(t, subject)

	require.NoError(t, f.ctrl.Complete(ctx, key, subject))

	pending, err := f.queues.ListPending(ctx, keys.QueueEnrich, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	won, err := f.leases.Claim(ctx, subject)
	require.NoError(t, err)
	assert.True(t, won, "lease must be released by complete")
}

func TestComplete_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/1"
	key := f.enqueueClaimed(t, subject)

	require.NoError(t, f.ctrl.Complete(ctx, key, subject))
	require.NoError(t, f.ctrl.Complete(ctx, key, subject))

	pending, err := f.queues.ListPending(ctx, keys.QueueEnrich, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFail_IncrementsAttemptsAndReleases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/1"
	key := f.enqueueClaimed(t, subject)

	require.NoError(t, f.ctrl.Fail(ctx, key, subject, "timeout", 3, keys.QueueEnrich))

	job, err := f.queues.GetJob(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, job, "below maxAttempts the entry stays queued")
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "timeout", job.Error)
	require.NotNil(t, job.LastAttempt)

	won, err := f.leases.Claim(ctx, subject)
	require.NoError(t, err)
	assert.True(t, won, "failed attempt must be retryable on the next poll")
}

func TestFail_AttemptsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/1"
	key := f.enqueueClaimed(t, subject)

	for want := 1; want <= 4; want++ {
		require.NoError(t, f.ctrl.Fail(ctx, key, subject, "err", 10, keys.QueueEnrich))
		job, err := f.queues.GetJob(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, want, job.Attempts)
	}
}

func TestFail_ExhaustedRetriesDeadLetters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/1"
	key := f.enqueueClaimed(t, subject)

	// Pre-set attempts to maxAttempts-1 so one more fail is terminal.
	job, err := f.queues.GetJob(ctx, key)
	require.NoError(t, err)
	job.Attempts = 2
	require.NoError(t, f.queues.Update(ctx, key, job))

	require.NoError(t, f.ctrl.Fail(ctx, key, subject, "permanent-looking", 3, keys.QueueEnrich))

	gone, err := f.queues.GetJob(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, gone, "terminal entry must leave the origin queue")

	letters, err := f.ctrl.DeadLetters(ctx, keys.QueueEnrich, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 3, letters[0].Attempts)
	assert.Equal(t, "permanent-looking", letters[0].LastError)
	assert.Equal(t, subject, letters[0].Job.Subject)
	assert.False(t, letters[0].FailedAt.IsZero())

	won, err := f.leases.Claim(ctx, subject)
	require.NoError(t, err)
	assert.True(t, won, "lease must be released on dead-letter")
}

func TestFail_DeadLetterOverwritesSameSubject(t *testing.T) {
	// The crash window between "write dead letter" and "delete entry" heals
	// because a re-fail overwrites the same DLQ key instead of appending.
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/1"
	key := f.enqueueClaimed(t, subject)

	require.NoError(t, f.ctrl.Fail(ctx, key, subject, "first", 1, keys.QueueEnrich))

	// Simulate the healed duplicate pass: same subject fails out again.
	key2 := f.enqueueClaimed(t, subject)
	require.NoError(t, f.ctrl.Fail(ctx, key2, subject, "second", 1, keys.QueueEnrich))

	letters, err := f.ctrl.DeadLetters(ctx, keys.QueueEnrich, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "second", letters[0].LastError)
}

func TestFail_MissingEntryReleasesLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := "https://example.com/2"

	won, err := f.leases.Claim(ctx, subject)
	require.NoError(t, err)
	require.True(t, won)

	err = f.ctrl.Fail(ctx, "q:enrich:0000000000000:missing", subject, "whatever", 3, keys.QueueEnrich)
	require.NoError(t, err)

	won, err = f.leases.Claim(ctx, subject)
	require.NoError(t, err)
	assert.True(t, won, "lease must be released even when the entry is gone")
}
