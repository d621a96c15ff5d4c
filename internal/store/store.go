package store

import (
	"context"
	"time"

	pgx "github.com/jackc/pgx/v5"

	"github.com/rajasatyajit/IssueRadar/internal/models"
)

// Store is the persistence contract for tenancy, mentions, issues and the
// derived risk rows. Implementations return apperrors.ErrNotFound for missing
// rows and apperrors.ErrConflict for uniqueness violations.
type Store interface {
	CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	// ListOrganizations returns organizations oldest first
	ListOrganizations(ctx context.Context) ([]models.Organization, error)

	CreateBrand(ctx context.Context, brand models.Brand) (*models.Brand, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context, organizationID string) ([]models.Brand, error)

	CreateSource(ctx context.Context, src models.Source) (*models.Source, error)
	// ListSources returns the enabled sources of one type for a brand
	ListSources(ctx context.Context, brandID string, sourceType models.SourceType) ([]models.Source, error)

	// CreateMention fails with ErrConflict when the brand already has the URL hash
	CreateMention(ctx context.Context, m models.Mention) (*models.Mention, error)
	// ListUnclusteredMentions returns mentions with no issue membership, newest first
	ListUnclusteredMentions(ctx context.Context, brandID string, limit int) ([]models.Mention, error)

	CreateIssue(ctx context.Context, issue models.Issue) (*models.Issue, error)
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	// ListRecentIssues returns issues by descending updated_at
	ListRecentIssues(ctx context.Context, brandID string, limit int) ([]models.Issue, error)
	// AttachMention fails with ErrConflict when the mention already belongs to an issue
	AttachMention(ctx context.Context, issueID, mentionID string) error
	TouchIssue(ctx context.Context, issueID string, at time.Time) error
	UpdateIssueStatus(ctx context.Context, issueID string, status models.IssueStatus) error
	// ListIssueMentions returns an issue's mentions by descending created_at
	ListIssueMentions(ctx context.Context, issueID string, limit int) ([]models.Mention, error)
	CountIssueMentionsSince(ctx context.Context, issueID string, since time.Time) (int, error)

	UpsertRiskScore(ctx context.Context, score models.RiskScore) error
	UpsertRecommendation(ctx context.Context, rec models.Recommendation) error
	// ListIssueOverviews joins recent issues with their derived rows
	ListIssueOverviews(ctx context.Context, brandID string, limit int) ([]models.IssueOverview, error)

	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db != nil && db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
