package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/internal/store"
	"github.com/rajasatyajit/IssueRadar/pkg/utils"
)

var now = time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{Concurrency: 2, RateLimit: 100, RetryAttempts: 0, RetryDelay: time.Millisecond}
}

type fixture struct {
	st    *store.InMemoryStore
	org   *models.Organization
	brand *models.Brand
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewInMemoryStore()
	org, err := st.CreateOrganization(ctx, models.Organization{Name: "Org"})
	if err != nil {
		t.Fatal(err)
	}
	brand, err := st.CreateBrand(ctx, models.Brand{
		OrganizationID: org.ID,
		Name:           "Demo Motors",
		Competitors:    []string{"AutoX"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{st: st, org: org, brand: brand}
}

func (f *fixture) source(t *testing.T, name, url string, enabled bool) *models.Source {
	t.Helper()
	src, err := f.st.CreateSource(context.Background(), models.Source{
		BrandID: f.brand.ID, Type: models.SourceRSS, Name: name, URL: url, Enabled: enabled,
	})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunOrganization_IngestsMatchingItems(t *testing.T) {
	f := newFixture(t)
	server := feedServer(t)
	f.source(t, "Auto News", server.URL, true)

	svc := New(f.st, NewHTTPFetcher(5*time.Second, "test"), testConfig(), WithClock(func() time.Time { return now }))
	res, err := svc.RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatalf("RunOrganization: %v", err)
	}

	if res.TotalNew != 2 || res.TotalSkipped != 1 || len(res.Errors) != 0 {
		t.Fatalf("Unexpected result %+v", res)
	}

	ms, _ := f.st.ListUnclusteredMentions(context.Background(), f.brand.ID, 0)
	if len(ms) != 2 {
		t.Fatalf("Expected 2 mentions, got %d", len(ms))
	}

	// newest first: the undated item was stamped with the clock
	if ms[0].URL != "https://news.example.com/c" || !ms[0].CreatedAt.Equal(now) {
		t.Errorf("Unexpected first mention %+v", ms[0])
	}
	a := ms[1]
	if a.URLHash != utils.HashURL("https://news.example.com/a") {
		t.Errorf("Expected url hash of the link, got %s", a.URLHash)
	}
	if a.SourceType != models.SourceRSS || a.SourceName != "Auto News" {
		t.Errorf("Unexpected source fields %+v", a)
	}
	if a.Text != "Demo Motors issues recall for batteries" || a.Author != "Jane Reporter" {
		t.Errorf("Unexpected text/author %q / %q", a.Text, a.Author)
	}
	if !a.CreatedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected publish date as created_at, got %v", a.CreatedAt)
	}
}

func TestRunOrganization_DuplicatesAreSilent(t *testing.T) {
	f := newFixture(t)
	server := feedServer(t)
	f.source(t, "Auto News", server.URL, true)

	svc := New(f.st, NewHTTPFetcher(5*time.Second, "test"), testConfig())
	if _, err := svc.RunOrganization(context.Background(), f.org.ID); err != nil {
		t.Fatal(err)
	}
	res, err := svc.RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalNew != 0 || res.TotalSkipped != 1 || len(res.Errors) != 0 {
		t.Errorf("Expected only the skip on re-run, got %+v", res)
	}
}

func TestRunOrganization_SourceErrors(t *testing.T) {
	f := newFixture(t)
	good := feedServer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	missing := f.source(t, "No URL", "", true)
	broken := f.source(t, "Broken", bad.URL, true)
	f.source(t, "Auto News", good.URL, true)
	f.source(t, "Disabled", "http://127.0.0.1:1/never", false)

	svc := New(f.st, NewHTTPFetcher(5*time.Second, "test"), testConfig())
	res, err := svc.RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}

	if res.TotalNew != 2 {
		t.Errorf("Expected the healthy source to ingest, got %+v", res)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("Expected 2 source errors, got %+v", res.Errors)
	}
	if res.Errors[0].SourceID != missing.ID || res.Errors[0].Error != MsgMissingURL || res.Errors[0].Name != "No URL" {
		t.Errorf("Unexpected missing url entry %+v", res.Errors[0])
	}
	if res.Errors[1].SourceID != broken.ID {
		t.Errorf("Unexpected fetch error entry %+v", res.Errors[1])
	}
}

func TestRunOrganization_NoBrands(t *testing.T) {
	svc := New(store.NewInMemoryStore(), NewHTTPFetcher(time.Second, ""), testConfig())
	res, err := svc.RunOrganization(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalNew != 0 || res.Errors == nil || len(res.Errors) != 0 {
		t.Errorf("Expected empty result with non-nil errors, got %+v", res)
	}
}

type flakyFetcher struct {
	mu       sync.Mutex
	failures int
	calls    int
	items    []FeedItem
}

func (f *flakyFetcher) Fetch(ctx context.Context, url string) ([]FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.items, nil
}

func TestRunOrganization_RetriesFetch(t *testing.T) {
	f := newFixture(t)
	f.source(t, "Flaky", "http://flaky.example/rss", true)

	fetcher := &flakyFetcher{
		failures: 2,
		items:    []FeedItem{{Link: "https://x.example/1", Title: "Demo Motors launch"}},
	}
	cfg := testConfig()
	cfg.RetryAttempts = 2

	res, err := New(f.st, fetcher, cfg, WithClock(func() time.Time { return now })).RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 3 {
		t.Errorf("Expected 3 fetch attempts, got %d", fetcher.calls)
	}
	if res.TotalNew != 1 || len(res.Errors) != 0 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestRunOrganization_RetriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.source(t, "Flaky", "http://flaky.example/rss", true)

	fetcher := &flakyFetcher{failures: 5}
	cfg := testConfig()
	cfg.RetryAttempts = 1

	res, err := New(f.st, fetcher, cfg).RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 fetch attempts, got %d", fetcher.calls)
	}
	if len(res.Errors) != 1 || res.Errors[0].Error != "connection reset" {
		t.Errorf("Unexpected errors %+v", res.Errors)
	}
}

func TestRunOrganization_MaxItemsPerRun(t *testing.T) {
	f := newFixture(t)
	f.source(t, "Busy", "http://busy.example/rss", true)

	fetcher := &flakyFetcher{items: []FeedItem{
		{Link: "https://x.example/1", Title: "Demo Motors one"},
		{Link: "https://x.example/2", Title: "Demo Motors two"},
		{Link: "https://x.example/3", Title: "Demo Motors three"},
	}}
	cfg := testConfig()
	cfg.MaxItemsPerRun = 2

	res, err := New(f.st, fetcher, cfg, WithClock(func() time.Time { return now })).RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalNew != 2 {
		t.Errorf("Expected 2 new mentions, got %d", res.TotalNew)
	}
}

type failingMentions struct {
	*store.InMemoryStore
}

func (failingMentions) CreateMention(ctx context.Context, m models.Mention) (*models.Mention, error) {
	return nil, errors.New("connection refused")
}

func TestRunOrganization_StoreFailureEndsSource(t *testing.T) {
	f := newFixture(t)
	f.source(t, "Feed", "http://feed.example/rss", true)

	fetcher := &flakyFetcher{items: []FeedItem{
		{Link: "https://x.example/1", Title: "Demo Motors one"},
		{Link: "https://x.example/2", Title: "Demo Motors two"},
	}}
	res, err := New(failingMentions{f.st}, fetcher, testConfig(), WithClock(func() time.Time { return now })).
		RunOrganization(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalNew != 0 || len(res.Errors) != 1 {
		t.Errorf("Expected one source error, got %+v", res)
	}
}
