package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// maxFeedBytes bounds how much of a feed response is parsed
const maxFeedBytes = 4 << 20

// FeedItem is one parsed feed entry, reduced to what a mention needs
type FeedItem struct {
	Link        string
	Title       string
	Content     string
	Snippet     string
	Author      string
	PublishedAt *time.Time
	Raw         json.RawMessage
}

// Text returns the best available plain text for the item: the HTML-stripped
// content, then the raw content, then the title.
func (i FeedItem) Text() string {
	for _, s := range []string{i.Snippet, i.Content, i.Title} {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return ""
}

// Fetcher retrieves and parses a feed
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// HTTPFetcher fetches RSS and Atom feeds over HTTP
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given request timeout
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch downloads url and parses it as a feed
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return ParseFeed(ctx, io.LimitReader(resp.Body, maxFeedBytes))
}

// ParseFeed parses an RSS or Atom document
func ParseFeed(ctx context.Context, r io.Reader) ([]FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, convertItem(entry))
	}
	return items, nil
}

func convertItem(entry *gofeed.Item) FeedItem {
	content := entry.Content
	if content == "" {
		content = entry.Description
	}

	item := FeedItem{
		Link:    strings.TrimSpace(entry.Link),
		Title:   strings.TrimSpace(entry.Title),
		Content: content,
		Snippet: HTMLToText(content),
		Author:  authorOf(entry),
	}

	switch {
	case entry.PublishedParsed != nil:
		item.PublishedAt = entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		item.PublishedAt = entry.UpdatedParsed
	}

	if raw, err := json.Marshal(entry); err == nil {
		item.Raw = raw
	}
	return item
}

func authorOf(entry *gofeed.Item) string {
	if entry.Author != nil && strings.TrimSpace(entry.Author.Name) != "" {
		return strings.TrimSpace(entry.Author.Name)
	}
	for _, a := range entry.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if entry.DublinCoreExt != nil {
		for _, c := range entry.DublinCoreExt.Creator {
			if c = strings.TrimSpace(c); c != "" {
				return c
			}
		}
	}
	return ""
}

// HTMLToText strips markup from an HTML fragment and collapses whitespace.
// Input that is not HTML is returned whitespace-collapsed.
func HTMLToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
