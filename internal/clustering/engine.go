// Package clustering groups unclustered brand mentions into issues by
// term-frequency cosine similarity and keeps issue lifecycle status current.
package clustering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/metrics"
	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/internal/runlock"
	"github.com/rajasatyajit/IssueRadar/internal/textvec"
)

// FallbackTitle names an issue whose seed mention has no usable keywords
const FallbackTitle = "New issue"

// MsgInProgress is reported for a brand whose run lock is held elsewhere
const MsgInProgress = "clustering already in progress"

// Store is the subset of the repository the engine needs
type Store interface {
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context, organizationID string) ([]models.Brand, error)
	ListUnclusteredMentions(ctx context.Context, brandID string, limit int) ([]models.Mention, error)
	ListRecentIssues(ctx context.Context, brandID string, limit int) ([]models.Issue, error)
	ListIssueMentions(ctx context.Context, issueID string, limit int) ([]models.Mention, error)
	CreateIssue(ctx context.Context, issue models.Issue) (*models.Issue, error)
	AttachMention(ctx context.Context, issueID, mentionID string) error
	TouchIssue(ctx context.Context, issueID string, at time.Time) error
	UpdateIssueStatus(ctx context.Context, issueID string, status models.IssueStatus) error
	CountIssueMentionsSince(ctx context.Context, issueID string, since time.Time) (int, error)
}

// Config tunes a run. Zero fields fall back to DefaultConfig, except
// Threshold: 0 attaches on any shared token and only a negative value
// selects the default.
type Config struct {
	MentionBatch      int
	IssueWindow       int
	SignatureMentions int
	Threshold         float64
	TitleKeywords     int
	SummaryLength     int
	StatusWindow      int
	LockTTL           time.Duration
}

// DefaultConfig returns the stock run parameters
func DefaultConfig() Config {
	return Config{
		MentionBatch:      200,
		IssueWindow:       50,
		SignatureMentions: 25,
		Threshold:         0.28,
		TitleKeywords:     6,
		SummaryLength:     240,
		StatusWindow:      50,
		LockTTL:           5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MentionBatch <= 0 {
		c.MentionBatch = d.MentionBatch
	}
	if c.IssueWindow <= 0 {
		c.IssueWindow = d.IssueWindow
	}
	if c.SignatureMentions <= 0 {
		c.SignatureMentions = d.SignatureMentions
	}
	if c.Threshold < 0 {
		c.Threshold = d.Threshold
	}
	if c.TitleKeywords <= 0 {
		c.TitleKeywords = d.TitleKeywords
	}
	if c.SummaryLength <= 0 {
		c.SummaryLength = d.SummaryLength
	}
	if c.StatusWindow <= 0 {
		c.StatusWindow = d.StatusWindow
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	return c
}

// MentionOutcome is the per-mention result of a run
type MentionOutcome struct {
	MentionID  string
	IssueID    string
	Created    bool
	Similarity float64
	Err        error
}

// BrandResult summarizes one brand's run
type BrandResult struct {
	BrandID       string `json:"brandId"`
	Scanned       int    `json:"scannedMentions"`
	Assigned      int    `json:"assignedToExisting"`
	Created       int    `json:"createdIssues"`
	Errors        int    `json:"errors"`
	StatusUpdated int    `json:"statusUpdated"`
	StatusErrors  int    `json:"statusErrors"`
	Skipped       bool   `json:"skipped,omitempty"`
	Error         string `json:"error,omitempty"`

	Outcomes []MentionOutcome `json:"-"`
}

func (r *BrandResult) record(o MentionOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Err != nil:
		r.Errors++
	case o.Created:
		r.Created++
	default:
		r.Assigned++
	}
}

// Engine runs clustering passes
type Engine struct {
	store     Store
	locker    runlock.Locker
	tokenizer *textvec.Tokenizer
	cfg       Config
	now       func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithLocker sets the run lock; the default is an in-process locker
func WithLocker(l runlock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTokenizer swaps the tokenizer, e.g. for a different stopword list
func WithTokenizer(t *textvec.Tokenizer) Option {
	return func(e *Engine) { e.tokenizer = t }
}

// NewEngine creates a clustering engine
func NewEngine(st Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		locker:    runlock.NewLocal(),
		tokenizer: textvec.Default(),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// cachedIssue is a signature vector held for the duration of one brand run.
// Kept in a slice so that ties resolve to the earliest entry.
type cachedIssue struct {
	id  string
	vec textvec.Vector
}

// RunOrganization clusters every brand of the organization in order. A brand
// that fails to load is reported in its result and the run moves on. An
// unknown organization fails the whole call.
func (e *Engine) RunOrganization(ctx context.Context, organizationID string) ([]BrandResult, error) {
	if _, err := e.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, apperrors.RunError{Engine: "cluster", Scope: organizationID, Stage: "lookup organization", Err: err}
	}

	brands, err := e.store.ListBrands(ctx, organizationID)
	if err != nil {
		return nil, apperrors.RunError{Engine: "cluster", Scope: organizationID, Stage: "list brands", Err: err}
	}

	results := make([]BrandResult, 0, len(brands))
	for _, b := range brands {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.runBrand(ctx, b.ID)
		if err != nil {
			logger.WithContext(ctx).Error("Clustering run failed", "brand_id", b.ID, "error", err)
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// RunBrand clusters one brand's unclustered mentions and recomputes the
// status of its recent issues. An unknown brand is an error.
func (e *Engine) RunBrand(ctx context.Context, brandID string) (BrandResult, error) {
	if _, err := e.store.GetBrand(ctx, brandID); err != nil {
		return BrandResult{BrandID: brandID}, apperrors.RunError{Engine: "cluster", Scope: brandID, Stage: "lookup brand", Err: err}
	}
	return e.runBrand(ctx, brandID)
}

func (e *Engine) runBrand(ctx context.Context, brandID string) (BrandResult, error) {
	res := BrandResult{BrandID: brandID}
	start := time.Now()

	lease, err := e.locker.Acquire(ctx, "cluster:"+brandID, e.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunInProgress) {
			res.Skipped = true
			res.Error = MsgInProgress
			metrics.RecordClusterRun("skipped", 0, 0, time.Since(start))
			logger.WithContext(ctx).Info("Clustering skipped", "brand_id", brandID, "reason", MsgInProgress)
			return res, nil
		}
		return res, apperrors.RunError{Engine: "cluster", Scope: brandID, Stage: "lock", Err: err}
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release run lock", "brand_id", brandID, "error", err)
		}
	}()

	err = e.runLocked(ctx, brandID, &res)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordClusterRun(status, res.Assigned, res.Created, time.Since(start))

	logger.WithContext(ctx).Info("Clustering run completed",
		"brand_id", brandID,
		"scanned", res.Scanned,
		"assigned", res.Assigned,
		"created", res.Created,
		"errors", res.Errors,
		"status_updated", res.StatusUpdated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, err
}

func (e *Engine) runLocked(ctx context.Context, brandID string, res *BrandResult) error {
	mentions, err := e.store.ListUnclusteredMentions(ctx, brandID, e.cfg.MentionBatch)
	if err != nil {
		return apperrors.RunError{Engine: "cluster", Scope: brandID, Stage: "load mentions", Err: err}
	}
	res.Scanned = len(mentions)

	cache, err := e.loadSignatures(ctx, brandID)
	if err != nil {
		return apperrors.RunError{Engine: "cluster", Scope: brandID, Stage: "load issues", Err: err}
	}

	for _, m := range mentions {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, entry := e.assign(ctx, brandID, m, cache)
		if outcome.Err != nil {
			logger.WithContext(ctx).Warn("Mention clustering failed",
				"brand_id", brandID, "mention_id", m.ID, "error", outcome.Err)
		}
		if entry != nil {
			cache = append(cache, *entry)
		}
		res.record(outcome)
	}

	return e.refreshStatuses(ctx, brandID, res)
}

// loadSignatures builds the in-run vector cache from the brand's recent issues
func (e *Engine) loadSignatures(ctx context.Context, brandID string) ([]cachedIssue, error) {
	issues, err := e.store.ListRecentIssues(ctx, brandID, e.cfg.IssueWindow)
	if err != nil {
		return nil, err
	}

	cache := make([]cachedIssue, 0, len(issues))
	for _, issue := range issues {
		ms, err := e.store.ListIssueMentions(ctx, issue.ID, e.cfg.SignatureMentions)
		if err != nil {
			return nil, fmt.Errorf("issue %s mentions: %w", issue.ID, err)
		}
		parts := make([]string, 0, len(ms)+2)
		parts = append(parts, issue.Title)
		if issue.Summary != "" {
			parts = append(parts, issue.Summary)
		}
		for _, m := range ms {
			parts = append(parts, m.Text)
		}
		cache = append(cache, cachedIssue{id: issue.ID, vec: e.tokenizer.Vectorize(strings.Join(parts, " "))})
	}
	return cache, nil
}

// assign attaches m to the closest cached issue or spawns a new one. The
// returned entry, if any, must be appended to the cache.
func (e *Engine) assign(ctx context.Context, brandID string, m models.Mention, cache []cachedIssue) (MentionOutcome, *cachedIssue) {
	out := MentionOutcome{MentionID: m.ID}
	mv := e.tokenizer.Vectorize(m.Text)

	bestID, bestScore := "", 0.0
	for _, c := range cache {
		if s := textvec.Cosine(mv, c.vec); s > bestScore {
			bestID, bestScore = c.id, s
		}
	}
	out.Similarity = bestScore

	now := e.now()
	if bestID != "" && bestScore >= e.cfg.Threshold {
		out.IssueID = bestID
		if err := e.store.AttachMention(ctx, bestID, m.ID); err != nil {
			out.Err = fmt.Errorf("attach to issue %s: %w", bestID, err)
			return out, nil
		}
		if err := e.store.TouchIssue(ctx, bestID, now); err != nil {
			out.Err = fmt.Errorf("touch issue %s: %w", bestID, err)
		}
		return out, nil
	}

	title := FallbackTitle
	if kw := e.tokenizer.TopKeywords(m.Text, e.cfg.TitleKeywords); len(kw) > 0 {
		title = strings.Join(kw, " ")
	}
	summary := textvec.Summarize(m.Text, e.cfg.SummaryLength)

	issue, err := e.store.CreateIssue(ctx, models.Issue{
		BrandID:   brandID,
		Title:     title,
		Summary:   summary,
		Status:    models.StatusEmerging,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		out.Err = fmt.Errorf("create issue: %w", err)
		return out, nil
	}
	out.IssueID = issue.ID
	out.Created = true

	if err := e.store.AttachMention(ctx, issue.ID, m.ID); err != nil {
		out.Err = fmt.Errorf("attach to new issue %s: %w", issue.ID, err)
		return out, nil
	}

	entry := &cachedIssue{id: issue.ID, vec: e.tokenizer.Vectorize(title + " " + summary + " " + m.Text)}
	return out, entry
}

// refreshStatuses recomputes status for the brand's most recently updated
// issues. Failures are counted, not returned, unless the issue list itself
// cannot be loaded.
func (e *Engine) refreshStatuses(ctx context.Context, brandID string, res *BrandResult) error {
	issues, err := e.store.ListRecentIssues(ctx, brandID, e.cfg.StatusWindow)
	if err != nil {
		return apperrors.RunError{Engine: "cluster", Scope: brandID, Stage: "load status window", Err: err}
	}

	now := e.now()
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := e.statusFor(ctx, issue.ID, hourAgo, dayAgo)
		if err == nil && status != issue.Status {
			err = e.store.UpdateIssueStatus(ctx, issue.ID, status)
			if err == nil {
				res.StatusUpdated++
			}
		}
		if err != nil {
			res.StatusErrors++
			logger.WithContext(ctx).Warn("Issue status update failed", "issue_id", issue.ID, "error", err)
		}
	}
	return nil
}

func (e *Engine) statusFor(ctx context.Context, issueID string, hourAgo, dayAgo time.Time) (models.IssueStatus, error) {
	last1h, err := e.store.CountIssueMentionsSince(ctx, issueID, hourAgo)
	if err != nil {
		return "", fmt.Errorf("count last hour: %w", err)
	}
	last24h, err := e.store.CountIssueMentionsSince(ctx, issueID, dayAgo)
	if err != nil {
		return "", fmt.Errorf("count last day: %w", err)
	}
	return StatusFromCounts(last1h, last24h), nil
}
