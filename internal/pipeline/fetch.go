package pipeline

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const fetchTimeout = 20 * time.Second

type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns the plain-HTTP fetch strategy.
func NewHTTPFetcher() Fetcher {
	return &httpFetcher{client: &http.Client{Timeout: fetchTimeout}}
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch: build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", "scout/0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch: get %s", rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetch: %s returned %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}
