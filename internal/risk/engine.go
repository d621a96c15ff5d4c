package risk

import (
	"context"
	"time"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/metrics"
	"github.com/rajasatyajit/IssueRadar/internal/models"
)

// Store is the subset of the repository scoring needs
type Store interface {
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context, organizationID string) ([]models.Brand, error)
	ListRecentIssues(ctx context.Context, brandID string, limit int) ([]models.Issue, error)
	ListIssueMentions(ctx context.Context, issueID string, limit int) ([]models.Mention, error)
	UpsertRiskScore(ctx context.Context, score models.RiskScore) error
	UpsertRecommendation(ctx context.Context, rec models.Recommendation) error
}

// Config bounds a scoring run
type Config struct {
	IssueLimit     int
	MentionLimit   int
	SentimentLimit int
}

// DefaultConfig returns the stock run bounds
func DefaultConfig() Config {
	return Config{IssueLimit: 80, MentionLimit: 250, SentimentLimit: 40}
}

// Result summarizes a scoring run. Errors counts issues that could not be
// scored; BrandErrors counts brands whose issues could not be listed.
type Result struct {
	IssuesScored int `json:"issuesScored"`
	Skipped      int `json:"skipped"`
	Errors       int `json:"errors"`
	BrandErrors  int `json:"brandErrors"`
}

func (r *Result) add(o Result) {
	r.IssuesScored += o.IssuesScored
	r.Skipped += o.Skipped
	r.Errors += o.Errors
	r.BrandErrors += o.BrandErrors
}

// Engine scores issues and writes their risk rows and recommendations
type Engine struct {
	store  Store
	scorer *Scorer
	cfg    Config
	now    func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithScorer replaces the default scorer
func WithScorer(s *Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// NewEngine creates a scoring engine
func NewEngine(st Store, cfg Config, opts ...Option) *Engine {
	d := DefaultConfig()
	if cfg.IssueLimit <= 0 {
		cfg.IssueLimit = d.IssueLimit
	}
	if cfg.MentionLimit <= 0 {
		cfg.MentionLimit = d.MentionLimit
	}
	if cfg.SentimentLimit <= 0 {
		cfg.SentimentLimit = d.SentimentLimit
	}

	e := &Engine{store: st, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorer == nil {
		e.scorer = NewScorer(DefaultWeights(), nil, cfg.SentimentLimit)
	}
	return e
}

// RunOrganization scores every brand of the organization with a single
// reference time. A brand that fails is counted in BrandErrors and the run
// moves on; an unknown organization fails the whole call.
func (e *Engine) RunOrganization(ctx context.Context, organizationID string) (Result, error) {
	start := time.Now()
	var total Result

	if _, err := e.store.GetOrganization(ctx, organizationID); err != nil {
		metrics.RecordRiskRun("error", 0, time.Since(start))
		return total, apperrors.RunError{Engine: "risk", Scope: organizationID, Stage: "lookup organization", Err: err}
	}

	brands, err := e.store.ListBrands(ctx, organizationID)
	if err != nil {
		metrics.RecordRiskRun("error", 0, time.Since(start))
		return total, apperrors.RunError{Engine: "risk", Scope: organizationID, Stage: "list brands", Err: err}
	}

	now := e.now()
	for _, b := range brands {
		res, err := e.scoreBrand(ctx, b.ID, now)
		total.add(res)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.RecordRiskRun("error", total.IssuesScored, time.Since(start))
				return total, ctxErr
			}
			total.BrandErrors++
			logger.WithContext(ctx).Error("Risk scoring failed for brand", "brand_id", b.ID, "error", err)
		}
	}

	status := "ok"
	if total.BrandErrors > 0 {
		status = "partial"
	}
	metrics.RecordRiskRun(status, total.IssuesScored, time.Since(start))
	logger.WithContext(ctx).Info("Risk scoring completed",
		"organization_id", organizationID,
		"brands", len(brands),
		"issues_scored", total.IssuesScored,
		"skipped", total.Skipped,
		"errors", total.Errors,
		"brand_errors", total.BrandErrors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return total, nil
}

// RunBrand scores the brand's most recently updated issues. An unknown brand
// is an error.
func (e *Engine) RunBrand(ctx context.Context, brandID string) (Result, error) {
	start := time.Now()
	if _, err := e.store.GetBrand(ctx, brandID); err != nil {
		metrics.RecordRiskRun("error", 0, time.Since(start))
		return Result{}, apperrors.RunError{Engine: "risk", Scope: brandID, Stage: "lookup brand", Err: err}
	}
	res, err := e.scoreBrand(ctx, brandID, e.now())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordRiskRun(status, res.IssuesScored, time.Since(start))
	return res, err
}

func (e *Engine) scoreBrand(ctx context.Context, brandID string, now time.Time) (Result, error) {
	var res Result

	issues, err := e.store.ListRecentIssues(ctx, brandID, e.cfg.IssueLimit)
	if err != nil {
		return res, apperrors.RunError{Engine: "risk", Scope: brandID, Stage: "list issues", Err: err}
	}

	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		scored, err := e.ScoreIssue(ctx, issue.ID, now)
		switch {
		case err != nil:
			res.Errors++
			logger.WithContext(ctx).Warn("Issue scoring failed", "issue_id", issue.ID, "error", err)
		case !scored:
			res.Skipped++
		default:
			res.IssuesScored++
		}
	}
	return res, nil
}

// ScoreIssue scores a single issue. It reports false without writing
// anything when the issue has no mentions.
func (e *Engine) ScoreIssue(ctx context.Context, issueID string, now time.Time) (bool, error) {
	mentions, err := e.store.ListIssueMentions(ctx, issueID, e.cfg.MentionLimit)
	if err != nil {
		return false, apperrors.RunError{Engine: "risk", Scope: issueID, Stage: "load mentions", Err: err}
	}

	a, ok := e.scorer.Score(mentions, now)
	if !ok {
		return false, nil
	}
	a.Score.IssueID = issueID

	if err := e.store.UpsertRiskScore(ctx, a.Score); err != nil {
		return false, apperrors.RunError{Engine: "risk", Scope: issueID, Stage: "write score", Err: err}
	}
	if err := e.store.UpsertRecommendation(ctx, Recommend(a)); err != nil {
		return false, apperrors.RunError{Engine: "risk", Scope: issueID, Stage: "write recommendation", Err: err}
	}
	return true, nil
}
