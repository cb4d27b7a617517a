package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	calls      int
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func newTestFetcher(transport *mockTransport) *Fetcher {
	f := New(transport)
	f.maxRetries = 0
	return f
}

func TestFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	tests := []struct {
		name      string
		transport *mockTransport
		wantIDs   []string
		wantKind  ErrorKind
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: xml, statusCode: 200},
			wantIDs:   []string{"entry-1", "entry-2", "entry-3"},
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantKind:  KindNetwork,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantKind:  KindNetwork,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantKind:  KindParse,
		},
		{
			name:      "empty body",
			transport: &mockTransport{body: "", statusCode: 200},
			wantKind:  KindEmpty,
		},
		{
			name:      "zero entries is not an error",
			transport: &mockTransport{body: "<rss version=\"2.0\"><channel><title>empty</title></channel></rss>", statusCode: 200},
			wantIDs:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(tt.transport)
			entries, err := f.Fetch(context.Background(), "https://example.com/rss")

			if tt.wantKind != "" {
				var fe *FetchError
				if !errors.As(err, &fe) {
					t.Fatalf("expected FetchError, got %v", err)
				}
				if diff := cmp.Diff(tt.wantKind, fe.Kind); diff != "" {
					t.Errorf("error kind mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			gotIDs := make([]string, 0, len(entries))
			for _, e := range entries {
				gotIDs = append(gotIDs, e.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, gotIDs); diff != "" {
				t.Errorf("entry IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchPreservesFeedOrder(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample_extended.xml")
	f := newTestFetcher(&mockTransport{body: xml, statusCode: 200})

	entries, err := f.Fetch(context.Background(), "https://example.com/rss")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotIDs []string
	for _, e := range entries {
		gotIDs = append(gotIDs, e.ID)
	}
	// The fixture lists the newest entry first; order must be feed-declared.
	want := []string{"entry-4", "entry-1", "entry-2", "entry-3"}
	if diff := cmp.Diff(want, gotIDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	transport := &mockTransport{err: io.ErrUnexpectedEOF}
	f := New(transport)
	f.maxRetries = 2

	_, err := f.Fetch(context.Background(), "https://example.com/rss")
	if err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(3, transport.calls); diff != "" {
		t.Errorf("attempt count mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchDoesNotRetryParseErrors(t *testing.T) {
	transport := &mockTransport{body: "not xml", statusCode: 200}
	f := New(transport)
	f.maxRetries = 2

	_, err := f.Fetch(context.Background(), "https://example.com/rss")
	if err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(1, transport.calls); diff != "" {
		t.Errorf("attempt count mismatch (-want +got):\n%s", diff)
	}
}

func TestEntryID(t *testing.T) {
	tests := []struct {
		name    string
		item    *gofeed.Item
		want    string
		hasHash bool
	}{
		{
			name: "with guid",
			item: &gofeed.Item{GUID: "abc-123", Link: "https://example.com/post"},
			want: "abc-123",
		},
		{
			name: "falls back to link",
			item: &gofeed.Item{Title: "Post", Link: "https://example.com/post-1"},
			want: "https://example.com/post-1",
		},
		{
			name:    "falls back to hash",
			item:    &gofeed.Item{Title: "Post Without Anything"},
			hasHash: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EntryID(tt.item)
			if tt.hasHash {
				if !strings.HasPrefix(got, "sha256:") {
					t.Errorf("expected sha256 prefix, got %q", got)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ID mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
