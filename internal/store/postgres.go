package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var mentionColumns = []string{
	"m.id", "m.brand_id", "m.source_type", "m.source_name", "m.url", "m.url_hash",
	"m.text", "m.author", "m.language", "m.created_at", "m.engagement_proxy", "m.raw",
}

var issueColumns = []string{
	"i.id", "i.brand_id", "i.title", "i.summary", "i.status", "i.created_at", "i.updated_at",
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// mapError translates driver errors into the application taxonomy
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%s: %w", op, apperrors.ErrInvalidInput)
		}
	}
	return apperrors.DatabaseError{Operation: op, Err: err}
}

func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) error {
	n, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error) {
	if org.Name == "" {
		return nil, apperrors.ValidationError{Field: "name", Message: "organization name is required"}
	}
	org.ID = ensureID(org.ID)
	org.CreatedAt = stamp(org.CreatedAt)

	_, err := s.db.Exec(ctx,
		`INSERT INTO organizations (id, name, created_at) VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.CreatedAt)
	if err != nil {
		return nil, mapError("create organization", err)
	}
	return &org, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM organizations WHERE id = $1`, id,
	).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, mapError("get organization", err)
	}
	return &org, nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	query, args, err := psql.Select("id", "name", "created_at").
		From("organizations").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list organizations", err)
	}
	defer rows.Close()

	var out []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, mapError("scan organization", err)
		}
		out = append(out, org)
	}
	return out, mapError("iterate organizations", rows.Err())
}

func (s *PostgresStore) CreateBrand(ctx context.Context, brand models.Brand) (*models.Brand, error) {
	if brand.Name == "" {
		return nil, apperrors.ValidationError{Field: "name", Message: "brand name is required"}
	}
	brand.ID = ensureID(brand.ID)
	brand.CreatedAt = stamp(brand.CreatedAt)
	if brand.Aliases == nil {
		brand.Aliases = []string{}
	}
	if brand.Competitors == nil {
		brand.Competitors = []string{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO brands (id, organization_id, name, aliases, competitors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		brand.ID, brand.OrganizationID, brand.Name, brand.Aliases, brand.Competitors, brand.CreatedAt)
	if err != nil {
		return nil, mapError("create brand", err)
	}
	return &brand, nil
}

func scanBrand(row pgx.Row) (*models.Brand, error) {
	var b models.Brand
	if err := row.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Aliases, &b.Competitors, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	b, err := scanBrand(s.db.QueryRow(ctx, `
		SELECT id, organization_id, name, aliases, competitors, created_at
		FROM brands WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get brand", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBrands(ctx context.Context, organizationID string) ([]models.Brand, error) {
	query, args, err := psql.Select("id", "organization_id", "name", "aliases", "competitors", "created_at").
		From("brands").
		Where(sq.Eq{"organization_id": organizationID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list brands", err)
	}
	defer rows.Close()

	var out []models.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, mapError("scan brand", err)
		}
		out = append(out, *b)
	}
	return out, mapError("iterate brands", rows.Err())
}

func (s *PostgresStore) CreateSource(ctx context.Context, src models.Source) (*models.Source, error) {
	if !src.Type.Valid() {
		return nil, apperrors.ValidationError{Field: "type", Message: fmt.Sprintf("invalid source type %q", src.Type)}
	}
	src.ID = ensureID(src.ID)
	src.CreatedAt = stamp(src.CreatedAt)

	_, err := s.db.Exec(ctx, `
		INSERT INTO sources (id, brand_id, type, name, url, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		src.ID, src.BrandID, string(src.Type), src.Name, src.URL, src.Enabled, src.CreatedAt)
	if err != nil {
		return nil, mapError("create source", err)
	}
	return &src, nil
}

func (s *PostgresStore) ListSources(ctx context.Context, brandID string, sourceType models.SourceType) ([]models.Source, error) {
	query, args, err := psql.Select("id", "brand_id", "type", "name", "url", "enabled", "created_at").
		From("sources").
		Where(sq.Eq{"brand_id": brandID, "type": string(sourceType), "enabled": true}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list sources", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var src models.Source
		var typ string
		if err := rows.Scan(&src.ID, &src.BrandID, &typ, &src.Name, &src.URL, &src.Enabled, &src.CreatedAt); err != nil {
			return nil, mapError("scan source", err)
		}
		src.Type = models.SourceType(typ)
		out = append(out, src)
	}
	return out, mapError("iterate sources", rows.Err())
}

// rawJSON returns nil for an empty payload so the column stays NULL
func rawJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *PostgresStore) CreateMention(ctx context.Context, m models.Mention) (*models.Mention, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	m.ID = ensureID(m.ID)

	_, err := s.db.Exec(ctx, `
		INSERT INTO mentions (
			id, brand_id, source_type, source_name, url, url_hash, text,
			author, language, created_at, engagement_proxy, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.BrandID, string(m.SourceType), m.SourceName, m.URL, m.URLHash, m.Text,
		m.Author, m.Language, m.CreatedAt, m.EngagementProxy, rawJSON(m.Raw),
	)
	if err != nil {
		return nil, mapError("create mention", err)
	}
	return &m, nil
}

func (s *PostgresStore) queryMentions(ctx context.Context, op string, q sq.SelectBuilder) ([]models.Mention, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []models.Mention
	for rows.Next() {
		var m models.Mention
		var typ string
		var raw []byte
		if err := rows.Scan(
			&m.ID, &m.BrandID, &typ, &m.SourceName, &m.URL, &m.URLHash,
			&m.Text, &m.Author, &m.Language, &m.CreatedAt, &m.EngagementProxy, &raw,
		); err != nil {
			return nil, mapError("scan mention", err)
		}
		m.SourceType = models.SourceType(typ)
		if len(raw) > 0 {
			m.Raw = json.RawMessage(raw)
		}
		out = append(out, m)
	}
	return out, mapError(op, rows.Err())
}

func withLimit(q sq.SelectBuilder, limit int) sq.SelectBuilder {
	if limit > 0 {
		return q.Limit(uint64(limit))
	}
	return q
}

func (s *PostgresStore) ListUnclusteredMentions(ctx context.Context, brandID string, limit int) ([]models.Mention, error) {
	q := psql.Select(mentionColumns...).
		From("mentions m").
		Where(sq.Eq{"m.brand_id": brandID}).
		Where("NOT EXISTS (SELECT 1 FROM issue_mentions im WHERE im.mention_id = m.id)").
		OrderBy("m.created_at DESC", "m.id DESC")
	return s.queryMentions(ctx, "list unclustered mentions", withLimit(q, limit))
}

func (s *PostgresStore) CreateIssue(ctx context.Context, issue models.Issue) (*models.Issue, error) {
	if err := issue.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	issue.ID = ensureID(issue.ID)
	issue.CreatedAt = stamp(issue.CreatedAt)
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO issues (id, brand_id, title, summary, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		issue.ID, issue.BrandID, issue.Title, issue.Summary, string(issue.Status), issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		return nil, mapError("create issue", err)
	}
	return &issue, nil
}

func scanIssue(row pgx.Row, extra ...any) (*models.Issue, error) {
	var issue models.Issue
	var status string
	dest := append([]any{
		&issue.ID, &issue.BrandID, &issue.Title, &issue.Summary, &status, &issue.CreatedAt, &issue.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	issue.Status = models.IssueStatus(status)
	return &issue, nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	query, args, err := psql.Select(issueColumns...).From("issues i").Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	issue, err := scanIssue(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError("get issue", err)
	}
	return issue, nil
}

func (s *PostgresStore) ListRecentIssues(ctx context.Context, brandID string, limit int) ([]models.Issue, error) {
	q := psql.Select(issueColumns...).
		From("issues i").
		Where(sq.Eq{"i.brand_id": brandID}).
		OrderBy("i.updated_at DESC", "i.created_at DESC")
	query, args, err := withLimit(q, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list issues", err)
	}
	defer rows.Close()

	var out []models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, mapError("scan issue", err)
		}
		out = append(out, *issue)
	}
	return out, mapError("iterate issues", rows.Err())
}

// AttachMention relies on the unique mention_id index for single membership
func (s *PostgresStore) AttachMention(ctx context.Context, issueID, mentionID string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO issue_mentions (issue_id, mention_id, created_at) VALUES ($1, $2, NOW())`,
		issueID, mentionID)
	return mapError("attach mention", err)
}

func (s *PostgresStore) TouchIssue(ctx context.Context, issueID string, at time.Time) error {
	return s.execOne(ctx, "touch issue", `UPDATE issues SET updated_at = $2 WHERE id = $1`, issueID, at)
}

func (s *PostgresStore) UpdateIssueStatus(ctx context.Context, issueID string, status models.IssueStatus) error {
	if !status.Valid() {
		return apperrors.ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", status)}
	}
	return s.execOne(ctx, "update issue status", `UPDATE issues SET status = $2 WHERE id = $1`, issueID, string(status))
}

func (s *PostgresStore) ListIssueMentions(ctx context.Context, issueID string, limit int) ([]models.Mention, error) {
	q := psql.Select(mentionColumns...).
		From("issue_mentions im").
		Join("mentions m ON m.id = im.mention_id").
		Where(sq.Eq{"im.issue_id": issueID}).
		OrderBy("m.created_at DESC", "m.id DESC")
	return s.queryMentions(ctx, "list issue mentions", withLimit(q, limit))
}

func (s *PostgresStore) CountIssueMentionsSince(ctx context.Context, issueID string, since time.Time) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("issue_mentions im").
		Join("mentions m ON m.id = im.mention_id").
		Where(sq.Eq{"im.issue_id": issueID}).
		Where(sq.GtOrEq{"m.created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError("count issue mentions", err)
	}
	return n, nil
}

func (s *PostgresStore) UpsertRiskScore(ctx context.Context, rs models.RiskScore) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO risk_scores (
			issue_id, score, velocity_score, authority_score, severity_score, spread_score,
			sentiment_score, pattern_score, escalation_24h, escalation_72h, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (issue_id) DO UPDATE SET
			score = EXCLUDED.score,
			velocity_score = EXCLUDED.velocity_score,
			authority_score = EXCLUDED.authority_score,
			severity_score = EXCLUDED.severity_score,
			spread_score = EXCLUDED.spread_score,
			sentiment_score = EXCLUDED.sentiment_score,
			pattern_score = EXCLUDED.pattern_score,
			escalation_24h = EXCLUDED.escalation_24h,
			escalation_72h = EXCLUDED.escalation_72h,
			computed_at = EXCLUDED.computed_at`,
		rs.IssueID, rs.Score, rs.VelocityScore, rs.AuthorityScore, rs.SeverityScore, rs.SpreadScore,
		rs.SentimentScore, rs.PatternScore, rs.Escalation24h, rs.Escalation72h, rs.ComputedAt,
	)
	return mapError("upsert risk score", err)
}

func (s *PostgresStore) UpsertRecommendation(ctx context.Context, rec models.Recommendation) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO recommendations (issue_id, action, owner, posture, rationale, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (issue_id) DO UPDATE SET
			action = EXCLUDED.action,
			owner = EXCLUDED.owner,
			posture = EXCLUDED.posture,
			rationale = EXCLUDED.rationale,
			updated_at = EXCLUDED.updated_at`,
		rec.IssueID, string(rec.Action), string(rec.Owner), string(rec.Posture), rec.Rationale, rec.UpdatedAt,
	)
	return mapError("upsert recommendation", err)
}

func (s *PostgresStore) ListIssueOverviews(ctx context.Context, brandID string, limit int) ([]models.IssueOverview, error) {
	cols := append(append([]string{}, issueColumns...),
		"(SELECT COUNT(*) FROM issue_mentions im WHERE im.issue_id = i.id)",
		"rs.score", "rs.velocity_score", "rs.authority_score", "rs.severity_score", "rs.spread_score",
		"rs.sentiment_score", "rs.pattern_score", "rs.escalation_24h", "rs.escalation_72h", "rs.computed_at",
		"rec.action", "rec.owner", "rec.posture", "rec.rationale", "rec.updated_at",
	)
	q := psql.Select(cols...).
		From("issues i").
		LeftJoin("risk_scores rs ON rs.issue_id = i.id").
		LeftJoin("recommendations rec ON rec.issue_id = i.id").
		Where(sq.Eq{"i.brand_id": brandID}).
		OrderBy("i.updated_at DESC", "i.created_at DESC")
	query, args, err := withLimit(q, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list issue overviews", err)
	}
	defer rows.Close()

	var out []models.IssueOverview
	for rows.Next() {
		var (
			count                                    int
			score, vel, auth, sev, spread, sent, pat *int
			esc24, esc72                             *int
			computedAt, recUpdatedAt                 *time.Time
			action, owner, posture, rationale        *string
		)
		issue, err := scanIssue(rows, &count,
			&score, &vel, &auth, &sev, &spread, &sent, &pat, &esc24, &esc72, &computedAt,
			&action, &owner, &posture, &rationale, &recUpdatedAt,
		)
		if err != nil {
			return nil, mapError("scan issue overview", err)
		}

		ov := models.IssueOverview{Issue: *issue, MentionCount: count}
		if score != nil {
			ov.RiskScore = &models.RiskScore{
				IssueID:        issue.ID,
				Score:          *score,
				VelocityScore:  *vel,
				AuthorityScore: *auth,
				SeverityScore:  *sev,
				SpreadScore:    *spread,
				SentimentScore: *sent,
				PatternScore:   *pat,
				Escalation24h:  *esc24,
				Escalation72h:  *esc72,
				ComputedAt:     *computedAt,
			}
		}
		if action != nil {
			ov.Recommendation = &models.Recommendation{
				IssueID:   issue.ID,
				Action:    models.Action(*action),
				Owner:     models.Owner(*owner),
				Posture:   models.Posture(*posture),
				Rationale: *rationale,
				UpdatedAt: *recUpdatedAt,
			}
		}
		out = append(out, ov)
	}
	return out, mapError("iterate issue overviews", rows.Err())
}

// Health checks database connectivity
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
