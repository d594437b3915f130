package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/scout/internal/keys"
	"github.com/you/scout/internal/kv"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	store := kv.NewMemory()
	t.Cleanup(store.Close)
	return New(store)
}

func TestMarkSeen_FlipsMembership(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	subject := "https://example.com/item/1"

	seen, err := l.IsSeen(ctx, subject)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.MarkSeen(ctx, subject, "Item One"))

	seen, err = l.IsSeen(ctx, subject)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMarkSeen_IdempotentAndKeepsFirstSeen(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	subject := "https://example.com/item/1"

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return first }
	require.NoError(t, l.MarkSeen(ctx, subject, "old title"))

	l.now = func() time.Time { return first.Add(48 * time.Hour) }
	require.NoError(t, l.MarkSeen(ctx, subject, "new title"))

	seen, err := l.IsSeen(ctx, subject)
	require.NoError(t, err)
	assert.True(t, seen)

	raw, err := l.store.Get(ctx, keys.SeenKey(subject))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"new title"`)
	assert.Contains(t, string(raw), first.Format(time.RFC3339), "re-marking must not move firstSeen")
}

func TestFilterSeen_Bulk(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	require.NoError(t, l.MarkSeenBatch(ctx, map[string]string{
		"https://example.com/a": "A",
		"https://example.com/c": "C",
	}))

	seen, err := l.FilterSeen(ctx, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/d",
	})
	require.NoError(t, err)
	assert.True(t, seen["https://example.com/a"])
	assert.True(t, seen["https://example.com/c"])
	assert.False(t, seen["https://example.com/b"])
	assert.False(t, seen["https://example.com/d"])
}

func TestFilterSeen_EmptyInput(t *testing.T) {
	l := newLedger(t)
	seen, err := l.FilterSeen(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, seen)
}
