package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process Store with real per-key TTL expiry. It backs local
// runs without Redis and the test suite, where short TTLs exercise the same
// self-expiry behavior production relies on.
type Memory struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []byte]
}

var _ Store = (*Memory)(nil)
var _ Conditional = (*Memory)(nil)

// NewMemory starts the expiry janitor; call Close when done.
func NewMemory() *Memory {
	// Touch-on-hit would silently extend lease TTLs on every Get.
	c := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &Memory{cache: c}
}

// Close stops the expiry janitor.
func (s *Memory) Close() { s.cache.Stop() }

func (s *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrNotFound
	}
	return append([]byte(nil), item.Value()...), nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}

func (s *Memory) List(_ context.Context, prefix string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, item := range s.cache.Items() {
		if item.IsExpired() || !strings.HasPrefix(k, prefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// PutIfAbsent is atomic under the store mutex, matching the conditional-write
// semantics Redis provides with SET NX.
func (s *Memory) PutIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item := s.cache.Get(key); item != nil && !item.IsExpired() {
		return false, nil
	}
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	return true, nil
}
