// Package keys centralizes key construction and retention policy for every
// record the pipeline writes to the shared store. All coordination state —
// queue entries, leases, dead letters, the seen ledger — lives under the
// prefixes defined here, so this file is the whole key schema.
package keys

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Queue names. Discovery feeds enrich, enrich feeds deliver.
const (
	QueueEnrich  = "enrich"
	QueueDeliver = "deliver"
)

const (
	queuePrefix = "q:"
	dlqPrefix   = "dlq:"
	leasePrefix = "lease:"
	seenPrefix  = "seen:"
)

const (
	// QueueTTL bounds how long an unprocessed entry survives. Anything older
	// has been stuck through many retry windows and is not worth keeping.
	QueueTTL = 7 * 24 * time.Hour

	// LeaseTTL is the only crash-recovery mechanism: a holder that dies
	// without releasing simply stops blocking claims after this long.
	LeaseTTL = 15 * time.Minute

	// DLQTTL keeps dead letters around long enough for postmortems.
	DLQTTL = 14 * 24 * time.Hour

	// SeenTTL is the dedup horizon. After it lapses a subject is treated as
	// new again; an accepted staleness trade-off.
	SeenTTL = 90 * 24 * time.Hour
)

// SubjectHash derives the stable identity used to key leases, dead letters
// and seen records from a subject's canonical URL.
func SubjectHash(subject string) string {
	return strconv.FormatUint(xxhash.Sum64String(subject), 16)
}

// QueuePrefix returns the listing prefix for a queue.
func QueuePrefix(queue string) string {
	return queuePrefix + queue + ":"
}

// EntryKey builds a queue entry key. The fixed-width millisecond timestamp
// makes lexicographic key order match enqueue order, which is what lets a
// plain prefix scan stand in for a FIFO queue.
func EntryKey(queue string, at time.Time, subject string) string {
	return fmt.Sprintf("%s%013d:%s", QueuePrefix(queue), at.UnixMilli(), SubjectHash(subject))
}

// LeaseKey is keyed by subject hash rather than entry key so a lease protects
// the subject across queue boundaries and outlives any one entry.
func LeaseKey(subject string) string {
	return leasePrefix + SubjectHash(subject)
}

// DLQKey keys dead letters by subject hash under a per-stage prefix. A retried
// terminal failure overwrites the same key instead of appending, which is what
// makes the fail path's crash window self-healing.
func DLQKey(queue, subject string) string {
	return dlqPrefix + queue + ":" + SubjectHash(subject)
}

// DLQPrefix returns the listing prefix for a stage's dead letters.
func DLQPrefix(queue string) string {
	return dlqPrefix + queue + ":"
}

// SeenKey keys the dedup ledger by subject hash.
func SeenKey(subject string) string {
	return seenPrefix + SubjectHash(subject)
}
