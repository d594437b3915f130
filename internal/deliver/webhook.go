// Package deliver posts finished items to the configured webhook. The one
// distinction it must preserve for the queue core is rate limiting: a 429
// maps to ErrRateLimited so the caller can release the lease without burning
// a retry attempt.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	userAgent        = "scout/0.1"
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 512
)

// ErrRateLimited signals the receiver asked us to back off. Check with
// errors.Is; the retry controller treats it as "not an attempt".
var ErrRateLimited = errors.New("deliver: rate limited")

// Notification is the webhook payload for one enriched item.
type Notification struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Webhook posts notifications to a single endpoint.
type Webhook struct {
	endpoint   string
	httpClient *http.Client
}

func NewWebhook(endpoint string) *Webhook {
	return &Webhook{endpoint: endpoint, httpClient: &http.Client{Timeout: defaultTimeout}}
}

// WithHTTPClient overrides the default client, mainly for tests.
func (w *Webhook) WithHTTPClient(hc *http.Client) *Webhook {
	w.httpClient = hc
	return w
}

// Deliver posts n to the endpoint. Any 2xx is success; 429 returns
// ErrRateLimited; everything else is a generic failure.
func (w *Webhook) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "deliver: marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "deliver: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "deliver: post webhook")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return errors.Errorf("deliver: webhook returned %d: %s", resp.StatusCode, snippet)
	}
}
