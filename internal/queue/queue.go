// Package queue layers named job queues over the kv store. Entry keys embed
// a fixed-width enqueue timestamp so listing in key order yields insertion
// order; entries expire after a bounded retention window rather than being
// garbage-collected.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/kv"
)

// Store reads and writes queue entries. Listing and claiming are separate
// steps: two pollers can see the same pending key, and the lease taken
// afterwards is what resolves that race, not the listing.
type Store struct {
	kv        kv.Store
	retention time.Duration

	now func() time.Time // test seam
}

func New(store kv.Store) *Store {
	return &Store{kv: store, retention: keys.QueueTTL, now: time.Now}
}

// Enqueue writes job under a fresh timestamped key and returns that key.
// The entry is visible to ListPending immediately.
func (s *Store) Enqueue(ctx context.Context, queue, subject string, job *Job) (string, error) {
	job.Subject = subject
	job.EnqueuedAt = s.now().UTC()
	raw, err := json.Marshal(job)
	if err != nil {
		return "", errors.Wrap(err, "queue: marshal job")
	}
	key := keys.EntryKey(queue, job.EnqueuedAt, subject)
	if err := s.kv.Put(ctx, key, raw, s.retention); err != nil {
		return "", err
	}
	return key, nil
}

// ListPending returns up to limit entry keys in enqueue order. The result is
// a restartable snapshot; a concurrent mutation may make a second call see a
// different view.
func (s *Store) ListPending(ctx context.Context, queue string, limit int) ([]string, error) {
	return s.kv.List(ctx, keys.QueuePrefix(queue), limit)
}

// GetJob fetches the entry under key. A nil job with nil error means the
// entry is gone (completed, expired or dead-lettered); callers treat that
// as a benign skip.
func (s *Store) GetJob(ctx context.Context, key string) (*Job, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, errors.Wrapf(err, "queue: decode %s", key)
	}
	return &job, nil
}

// Update writes job back under its existing key, refreshing the retention
// window. Used by the fail path to persist the incremented attempt count.
func (s *Store) Update(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "queue: marshal job")
	}
	return s.kv.Put(ctx, key, raw, s.retention)
}

// Delete removes the entry under key. Idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}
