// Package youtube resolves YouTube channel URLs to their feed URLs.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrResolutionFailed is returned when a channel URL cannot be mapped to a
// fetchable feed URL.
var ErrResolutionFailed = errors.New("channel resolution failed")

const (
	feedURLFormat = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	searchAPIURL  = "https://youtube.googleapis.com/youtube/v3/search"
)

var (
	channelIDRe = regexp.MustCompile(`channel/([\w-]+)`)
	handleRe    = regexp.MustCompile(`^https://youtube\.com/@[\w.-]+`)
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver maps YouTube channel URLs to feed URLs, consulting the YouTube
// Data API v3 for @handle URLs.
type Resolver struct {
	client HTTPClient
	apiKey string
}

// New creates a Resolver. The API key may be empty, in which case @handle
// URLs cannot be resolved (direct channel-ID URLs still work).
func New(client HTTPClient, apiKey string) *Resolver {
	return &Resolver{client: client, apiKey: apiKey}
}

// IsChannelURL reports whether rawURL looks like a YouTube URL that needs
// resolving (or passing through) rather than fetching directly.
func IsChannelURL(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com")
}

// Resolve converts a YouTube channel URL to its feed URL.
// URLs already pointing at a videos.xml feed pass through unchanged;
// channel-ID URLs are mapped directly; @handle URLs are looked up via the
// Data API. Anything else fails with ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	u := normalize(rawURL)

	if strings.Contains(u, "youtube.com/feeds/videos.xml") {
		return u, nil
	}

	if m := channelIDRe.FindStringSubmatch(u); m != nil {
		return fmt.Sprintf(feedURLFormat, m[1]), nil
	}

	if handleRe.MatchString(u) {
		return r.resolveHandle(ctx, u)
	}

	return "", fmt.Errorf("%w: unrecognized channel URL format %q", ErrResolutionFailed, rawURL)
}

func normalize(rawURL string) string {
	u := rawURL
	if !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.Replace(u, "www.", "", 1)
}

func (r *Resolver) resolveHandle(ctx context.Context, channelURL string) (string, error) {
	if r.apiKey == "" {
		return "", fmt.Errorf("%w: no API key configured for handle lookup", ErrResolutionFailed)
	}

	idx := strings.LastIndex(channelURL, "@")
	handle := channelURL[idx+1:]

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", handle)
	q.Set("type", "channel")
	q.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchAPIURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrResolutionFailed, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: search request: %v", ErrResolutionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: search returned status %d", ErrResolutionFailed, resp.StatusCode)
	}

	var result struct {
		Items []struct {
			Snippet struct {
				ChannelID string `json:"channelId"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1024*1024)).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode search response: %v", ErrResolutionFailed, err)
	}
	if len(result.Items) == 0 || result.Items[0].Snippet.ChannelID == "" {
		return "", fmt.Errorf("%w: channel %q not found", ErrResolutionFailed, handle)
	}

	return fmt.Sprintf(feedURLFormat, result.Items[0].Snippet.ChannelID), nil
}
