// Package lease provides advisory mutual exclusion over a subject for the
// duration of one processing attempt. A lease is a single TTL-bounded key;
// expiry is the sole crash-recovery path — there is no heartbeat or renewal.
package lease

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/kv"
)

// Manager issues and releases subject leases. Leases are advisory: they only
// exclude callers that go through Claim, so every stage runner must use the
// same primitive.
type Manager struct {
	store kv.Store
	ttl   time.Duration
	log   *zap.Logger
}

func New(store kv.Store, log *zap.Logger) *Manager {
	return &Manager{store: store, ttl: keys.LeaseTTL, log: log}
}

// Claim attempts to take the lease for subject, reporting whether this call
// became the exclusive holder. On stores with conditional writes the claim is
// a true atomic create-if-absent; otherwise it degrades to get-then-put with
// a narrow race window that downstream idempotency is expected to absorb.
func (m *Manager) Claim(ctx context.Context, subject string) (bool, error) {
	key := keys.LeaseKey(subject)
	val := []byte(time.Now().UTC().Format(time.RFC3339)) // diagnostic only

	if c, ok := m.store.(kv.Conditional); ok {
		won, err := c.PutIfAbsent(ctx, key, val, m.ttl)
		if err != nil {
			return false, errors.Wrapf(err, "lease: claim %s", subject)
		}
		return won, nil
	}

	_, err := m.store.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return false, errors.Wrapf(err, "lease: claim %s", subject)
	}
	if err := m.store.Put(ctx, key, val, m.ttl); err != nil {
		return false, errors.Wrapf(err, "lease: claim %s", subject)
	}
	return true, nil
}

// Release drops the lease for subject. Releasing a lease that does not exist
// (already released, or expired) is not an error.
func (m *Manager) Release(ctx context.Context, subject string) error {
	if err := m.store.Delete(ctx, keys.LeaseKey(subject)); err != nil {
		return errors.Wrapf(err, "lease: release %s", subject)
	}
	m.log.Debug("lease released", zap.String("subject", subject))
	return nil
}
