// Package ingest pulls feed items for an organization's brands, keeps the
// ones that mention the brand and stores them as deduplicated mentions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/metrics"
	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/pkg/utils"
)

// MsgMissingURL is reported for an enabled source with no feed URL
const MsgMissingURL = "Missing config.url"

// Store is the subset of the repository ingestion needs
type Store interface {
	ListBrands(ctx context.Context, organizationID string) ([]models.Brand, error)
	ListSources(ctx context.Context, brandID string, sourceType models.SourceType) ([]models.Source, error)
	CreateMention(ctx context.Context, m models.Mention) (*models.Mention, error)
}

// Config tunes fetching
type Config struct {
	Concurrency    int
	RateLimit      float64
	RetryAttempts  int
	RetryDelay     time.Duration
	MaxItemsPerRun int
}

// SourceError records a source that could not be ingested
type SourceError struct {
	SourceID string `json:"sourceId"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// Result summarizes an ingestion run
type Result struct {
	TotalNew     int           `json:"totalNew"`
	TotalSkipped int           `json:"totalSkipped"`
	Errors       []SourceError `json:"errors"`
}

// Service coordinates concurrent, rate limited feed ingestion
type Service struct {
	store   Store
	fetcher Fetcher
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	cfg     Config
	now     func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now for items without a publish date
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates an ingestion service
func New(st Store, fetcher Fetcher, cfg Config, opts ...Option) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}

	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}

	s := &Service{
		store:   st,
		fetcher: fetcher,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debug("Ingest service initialized",
		"concurrency", cfg.Concurrency,
		"rate_limit", cfg.RateLimit,
		"retry_attempts", cfg.RetryAttempts,
	)
	return s
}

type job struct {
	brand    models.Brand
	keywords []string
	source   models.Source
}

type sourceResult struct {
	newMentions int
	skipped     int
	err         error
}

// RunOrganization ingests every enabled RSS source of every brand of the
// organization. Sources are fetched concurrently; failures are reported per
// source in the result and never abort the run.
func (s *Service) RunOrganization(ctx context.Context, organizationID string) (Result, error) {
	res := Result{Errors: []SourceError{}}

	brands, err := s.store.ListBrands(ctx, organizationID)
	if err != nil {
		return res, apperrors.RunError{Engine: "ingest", Scope: organizationID, Stage: "list brands", Err: err}
	}

	var jobs []job
	for _, b := range brands {
		sources, err := s.store.ListSources(ctx, b.ID, models.SourceRSS)
		if err != nil {
			return res, apperrors.RunError{Engine: "ingest", Scope: b.ID, Stage: "list sources", Err: err}
		}
		keywords := b.Keywords()
		for _, src := range sources {
			jobs = append(jobs, job{brand: b, keywords: keywords, source: src})
		}
	}

	results := make([]sourceResult, len(jobs))
	var wg sync.WaitGroup
	for i := range jobs {
		if jobs[i].source.URL == "" {
			results[i].err = errors.New(MsgMissingURL)
			continue
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			results[i].err = fmt.Errorf("acquire semaphore: %w", err)
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer s.sem.Release(1)
			results[i] = s.runSource(ctx, jobs[i])
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		res.TotalNew += r.newMentions
		res.TotalSkipped += r.skipped
		if r.err != nil {
			src := jobs[i].source
			res.Errors = append(res.Errors, SourceError{SourceID: src.ID, Name: src.Name, Error: r.err.Error()})
		}
	}

	logger.WithContext(ctx).Info("RSS ingest completed",
		"organization_id", organizationID,
		"sources", len(jobs),
		"new", res.TotalNew,
		"skipped", res.TotalSkipped,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (s *Service) runSource(ctx context.Context, j job) sourceResult {
	start := time.Now()
	var out sourceResult

	defer func() {
		metrics.RecordIngestRun(j.source.Name, out.newMentions, out.skipped, time.Since(start))
	}()

	items, err := s.fetchWithRetry(ctx, j.source)
	if err != nil {
		out.err = err
		logger.WithContext(ctx).Warn("Feed fetch failed", "source", j.source.Name, "error", err)
		return out
	}

	if s.cfg.MaxItemsPerRun > 0 && len(items) > s.cfg.MaxItemsPerRun {
		items = items[:s.cfg.MaxItemsPerRun]
	}

	for _, item := range items {
		if item.Link == "" {
			continue
		}
		text := item.Text()
		if text == "" {
			continue
		}
		if !utils.MatchesAnyKeyword(text, j.keywords) {
			out.skipped++
			continue
		}

		createdAt := s.now()
		if item.PublishedAt != nil {
			createdAt = *item.PublishedAt
		}

		_, err := s.store.CreateMention(ctx, models.Mention{
			BrandID:    j.brand.ID,
			SourceType: models.SourceRSS,
			SourceName: j.source.Name,
			URL:        item.Link,
			URLHash:    utils.HashURL(item.Link),
			Text:       text,
			Author:     item.Author,
			CreatedAt:  createdAt,
			Raw:        item.Raw,
		})
		if errors.Is(err, apperrors.ErrConflict) {
			continue
		}
		if err != nil {
			out.err = fmt.Errorf("store mention: %w", err)
			return out
		}
		out.newMentions++
	}

	logger.Debug("Source ingested", "source", j.source.Name, "new", out.newMentions, "skipped", out.skipped)
	return out
}

// fetchWithRetry fetches the source feed, retrying with linear backoff
func (s *Service) fetchWithRetry(ctx context.Context, src models.Source) ([]FeedItem, error) {
	var items []FeedItem
	var err error

	for attempt := 0; attempt <= s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * s.cfg.RetryDelay
			logger.Debug("Retrying fetch", "source", src.Name, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		items, err = s.fetcher.Fetch(ctx, src.URL)
		if err == nil {
			return items, nil
		}

		logger.Warn("Fetch attempt failed",
			"source", src.Name,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, err
}
