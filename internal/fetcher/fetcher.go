// Package fetcher handles feed downloading and parsing.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"

	"feedwatch/internal/model"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

// Fetch failure kinds.
const (
	KindNetwork ErrorKind = "network"
	KindParse   ErrorKind = "parse"
	KindEmpty   ErrorKind = "empty"
)

// FetchError reports a failed fetch of a feed source. All kinds are
// transient from the caller's perspective: a poll cycle treats any of them
// as "no new entries this cycle".
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client     HTTPClient
	maxRetries uint64
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:     client,
		maxRetries: 2,
	}
}

// Fetch downloads and parses the feed at url, returning its entries in the
// order the feed declares them. Transport failures are retried with capped
// exponential backoff; parse failures are not. A well-formed feed with zero
// items is a success.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.Entry, error) {
	var body string

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	err := backoff.Retry(func() error {
		var err error
		body, err = f.get(ctx, url)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, f.maxRetries), ctx))
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: url, Err: err}
	}

	if body == "" {
		return nil, &FetchError{Kind: KindEmpty, URL: url, Err: fmt.Errorf("empty response body")}
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(body)
	if err != nil {
		return nil, &FetchError{Kind: KindParse, URL: url, Err: err}
	}

	entries := make([]model.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, model.Entry{
			ID:        EntryID(item),
			Title:     item.Title,
			Link:      item.Link,
			Published: item.PublishedParsed,
		})
	}
	return entries, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", "FeedWatchBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// EntryID returns the stable identity of a feed item: the feed's own GUID,
// falling back to the link, falling back to a hash of title+link.
func EntryID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}
