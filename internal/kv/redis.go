package kv

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
)

const scanCount = 200

// Redis adapts a go-redis client to the Store contract. TTLs map to key
// expiry (SET ... EX), prefix listing to SCAN MATCH, and PutIfAbsent to
// SET ... NX, which closes the claim race the plain contract leaves open.
type Redis struct{ rdb *r.Client }

var _ Store = (*Redis)(nil)
var _ Conditional = (*Redis)(nil)

// NewRedis wraps an existing client; the caller owns its lifecycle.
func NewRedis(rdb *r.Client) *Redis { return &Redis{rdb} }

func (s *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrapf(s.rdb.Set(ctx, key, value, ttl).Err(), "kv: put %s", key)
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "kv: get %s", key)
	}
	return v, nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(s.rdb.Del(ctx, key).Err(), "kv: delete %s", key)
}

// List scans the whole keyspace under prefix before sorting: SCAN returns
// keys in no particular order, and the queue layer depends on ascending
// key order for its chronological listing.
func (s *Redis) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	var keys []string
	it := s.rdb.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for it.Next(ctx) {
		keys = append(keys, it.Val())
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrapf(err, "kv: list %s", prefix)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (s *Redis) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	return ok, errors.Wrapf(err, "kv: putifabsent %s", key)
}
