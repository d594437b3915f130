package queue

import (
	"encoding/json"
	"time"
)

// Job is the envelope stored under a queue entry key. Payload carries the
// stage-specific record; the envelope fields drive retry accounting.
type Job struct {
	Subject     string          `json:"subject"`
	Attempts    int             `json:"attempts"`
	LastAttempt *time.Time      `json:"lastAttempt,omitempty"`
	Error       string          `json:"error,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}
