package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Auto News</title>
    <link>https://news.example.com</link>
    <item>
      <title>Demo Motors recall</title>
      <link>https://news.example.com/a</link>
      <description>&lt;p&gt;Demo Motors issues &lt;b&gt;recall&lt;/b&gt; for batteries&lt;/p&gt;</description>
      <pubDate>Sat, 01 Mar 2025 10:00:00 +0000</pubDate>
      <dc:creator>Jane Reporter</dc:creator>
    </item>
    <item>
      <title>Other news</title>
      <link>https://news.example.com/b</link>
      <description>Nothing about cars today</description>
    </item>
    <item>
      <title>No link for Demo Motors</title>
      <description>Demo Motors</description>
    </item>
    <item>
      <title>AutoX price cut</title>
      <link> https://news.example.com/c </link>
      <description></description>
    </item>
  </channel>
</rss>`

func TestParseFeed(t *testing.T) {
	items, err := ParseFeed(context.Background(), strings.NewReader(testFeed))
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(items))
	}

	first := items[0]
	if first.Link != "https://news.example.com/a" {
		t.Errorf("Unexpected link %q", first.Link)
	}
	if got := first.Text(); got != "Demo Motors issues recall for batteries" {
		t.Errorf("Expected HTML stripped text, got %q", got)
	}
	if first.Author != "Jane Reporter" {
		t.Errorf("Expected dc:creator author, got %q", first.Author)
	}
	expected := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if first.PublishedAt == nil || !first.PublishedAt.Equal(expected) {
		t.Errorf("Expected published %v, got %v", expected, first.PublishedAt)
	}
	if len(first.Raw) == 0 {
		t.Error("Expected raw payload")
	}

	if items[2].Link != "" {
		t.Errorf("Expected empty link, got %q", items[2].Link)
	}
	if items[3].Link != "https://news.example.com/c" {
		t.Errorf("Expected trimmed link, got %q", items[3].Link)
	}
	if got := items[3].Text(); got != "AutoX price cut" {
		t.Errorf("Expected title fallback, got %q", got)
	}
	if items[3].PublishedAt != nil {
		t.Errorf("Expected no publish date, got %v", items[3].PublishedAt)
	}
}

func TestParseFeed_Invalid(t *testing.T) {
	if _, err := ParseFeed(context.Background(), strings.NewReader("definitely not xml")); err == nil {
		t.Error("Expected parse error")
	}
}

func TestParseFeed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ParseFeed(ctx, strings.NewReader(testFeed)); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestFeedItem_Text(t *testing.T) {
	tests := []struct {
		name     string
		item     FeedItem
		expected string
	}{
		{"snippet first", FeedItem{Snippet: "snippet", Content: "<p>content</p>", Title: "title"}, "snippet"},
		{"content second", FeedItem{Content: " content ", Title: "title"}, "content"},
		{"title last", FeedItem{Title: " title "}, "title"},
		{"empty", FeedItem{Snippet: "  "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Text(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	tests := map[string]string{
		"":                                      "",
		"plain   text":                          "plain text",
		"<p>Hello <b>world</b></p>":             "Hello world",
		"<div>a<script>var x=1</script>b</div>": "ab",
		"<ul><li>one</li>\n<li>two</li></ul>":   "one two",
	}
	for in, expected := range tests {
		if got := HTMLToText(in); got != expected {
			t.Errorf("HTMLToText(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer server.Close()

	f := NewHTTPFetcher(5*time.Second, "IssueRadar-Test/1.0")
	items, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 4 {
		t.Errorf("Expected 4 items, got %d", len(items))
	}
	if userAgent != "IssueRadar-Test/1.0" {
		t.Errorf("Expected user agent to be sent, got %q", userAgent)
	}
}

func TestHTTPFetcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(time.Second, "").Fetch(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("Expected HTTP 500 error, got %v", err)
	}
}
