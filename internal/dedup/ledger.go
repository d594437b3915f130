// Package dedup keeps discovery idempotent across runs: a subject marked seen
// is never enqueued again within the retention horizon. The ledger uses one
// key per subject rather than a consolidated document, which avoids the
// read-modify-write lost-update hazard under overlapping discovery runs.
package dedup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/kv"
)

const lookupConcurrency = 16

// Record is written once per unique subject and kept for debugging; the
// first-seen timestamp is preserved across re-marks.
type Record struct {
	Subject   string    `json:"subject"`
	Title     string    `json:"title,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
}

// Ledger answers "have I already queued this subject". It is an explicitly
// passed dependency of the discovery stage, not shared process state.
type Ledger struct {
	store     kv.Store
	retention time.Duration

	now func() time.Time // test seam
}

func New(store kv.Store) *Ledger {
	return &Ledger{store: store, retention: keys.SeenTTL, now: time.Now}
}

// IsSeen reports whether subject has been marked within the retention window.
func (l *Ledger) IsSeen(ctx context.Context, subject string) (bool, error) {
	_, err := l.store.Get(ctx, keys.SeenKey(subject))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FilterSeen returns the subset of subjects already marked seen. Lookups fan
// out with bounded concurrency so large discovery batches do not pay one
// sequential round-trip per subject.
func (l *Ledger) FilterSeen(ctx context.Context, subjects []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(subjects))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for _, subject := range subjects {
		subject := subject
		g.Go(func() error {
			ok, err := l.IsSeen(ctx, subject)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				seen[subject] = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return seen, nil
}

// MarkSeen records subject. Re-marking refreshes the metadata and retention
// window but keeps the original first-seen timestamp.
func (l *Ledger) MarkSeen(ctx context.Context, subject, title string) error {
	rec := Record{Subject: subject, Title: title, FirstSeen: l.now().UTC()}
	if raw, err := l.store.Get(ctx, keys.SeenKey(subject)); err == nil {
		var prev Record
		if json.Unmarshal(raw, &prev) == nil && !prev.FirstSeen.IsZero() {
			rec.FirstSeen = prev.FirstSeen
		}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "dedup: marshal record")
	}
	return l.store.Put(ctx, keys.SeenKey(subject), raw, l.retention)
}

// MarkSeenBatch marks every entry. A failed mark aborts the batch so the
// affected subjects stay eligible for the next discovery run.
func (l *Ledger) MarkSeenBatch(ctx context.Context, entries map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for subject, title := range entries {
		subject, title := subject, title
		g.Go(func() error { return l.MarkSeen(ctx, subject, title) })
	}
	return g.Wait()
}
