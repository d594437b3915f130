package keys

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubjectHash_StableAndDistinct(t *testing.T) {
	a := SubjectHash("https://example.com/item/1")
	assert.Equal(t, a, SubjectHash("https://example.com/item/1"))
	assert.NotEqual(t, a, SubjectHash("https://example.com/item/2"))
}

func TestEntryKey_SortsByTime(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Millisecond)
	k1 := EntryKey("enrich", t1, "https://example.com/b")
	k2 := EntryKey("enrich", t2, "https://example.com/a")
	assert.Less(t, k1, k2, "later enqueue must sort after earlier regardless of subject")
	assert.True(t, strings.HasPrefix(k1, QueuePrefix("enrich")))
}

func TestKeyNamespacesAreDisjoint(t *testing.T) {
	subject := "https://example.com/item/1"
	ks := []string{
		EntryKey("enrich", time.Now(), subject),
		LeaseKey(subject),
		DLQKey("enrich", subject),
		SeenKey(subject),
	}
	for i := range ks {
		for j := range ks {
			if i != j {
				assert.False(t, strings.HasPrefix(ks[i], ks[j]), "%s vs %s", ks[i], ks[j])
			}
		}
	}
}

func TestDLQKey_PerStage(t *testing.T) {
	subject := "https://example.com/item/1"
	assert.NotEqual(t, DLQKey("enrich", subject), DLQKey("deliver", subject))
	assert.True(t, strings.HasPrefix(DLQKey("enrich", subject), DLQPrefix("enrich")))
}
