package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu  sync.RWMutex
	seq int64

	orgs      map[string]models.Organization
	brands    map[string]models.Brand
	sources   map[string]models.Source
	mentions  map[string]models.Mention
	urlHashes map[string]string // brandID + "/" + urlHash -> mention id
	issues    map[string]models.Issue
	members   map[string]string   // mention id -> issue id
	byIssue   map[string][]string // issue id -> mention ids
	risk      map[string]models.RiskScore
	recs      map[string]models.Recommendation

	// insertion order, used to break timestamp ties deterministically
	order map[string]int64
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orgs:      make(map[string]models.Organization),
		brands:    make(map[string]models.Brand),
		sources:   make(map[string]models.Source),
		mentions:  make(map[string]models.Mention),
		urlHashes: make(map[string]string),
		issues:    make(map[string]models.Issue),
		members:   make(map[string]string),
		byIssue:   make(map[string][]string),
		risk:      make(map[string]models.RiskScore),
		recs:      make(map[string]models.Recommendation),
		order:     make(map[string]int64),
	}
}

// track must be called with the write lock held
func (s *InMemoryStore) track(id string) {
	s.seq++
	s.order[id] = s.seq
}

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (s *InMemoryStore) CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error) {
	if org.Name == "" {
		return nil, apperrors.ValidationError{Field: "name", Message: "organization name is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	org.ID = ensureID(org.ID)
	if _, exists := s.orgs[org.ID]; exists {
		return nil, fmt.Errorf("organization %s: %w", org.ID, apperrors.ErrConflict)
	}
	org.CreatedAt = stamp(org.CreatedAt)
	s.orgs[org.ID] = org
	s.track(org.ID)
	return &org, nil
}

func (s *InMemoryStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", id, apperrors.ErrNotFound)
	}
	return &org, nil
}

func (s *InMemoryStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

func (s *InMemoryStore) CreateBrand(ctx context.Context, brand models.Brand) (*models.Brand, error) {
	if brand.Name == "" {
		return nil, apperrors.ValidationError{Field: "name", Message: "brand name is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[brand.OrganizationID]; !ok {
		return nil, fmt.Errorf("organization %s: %w", brand.OrganizationID, apperrors.ErrNotFound)
	}
	brand.ID = ensureID(brand.ID)
	if _, exists := s.brands[brand.ID]; exists {
		return nil, fmt.Errorf("brand %s: %w", brand.ID, apperrors.ErrConflict)
	}
	brand.CreatedAt = stamp(brand.CreatedAt)
	brand.Aliases = append([]string(nil), brand.Aliases...)
	brand.Competitors = append([]string(nil), brand.Competitors...)
	s.brands[brand.ID] = brand
	s.track(brand.ID)
	return &brand, nil
}

func (s *InMemoryStore) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brands[id]
	if !ok {
		return nil, fmt.Errorf("brand %s: %w", id, apperrors.ErrNotFound)
	}
	return &b, nil
}

func (s *InMemoryStore) ListBrands(ctx context.Context, organizationID string) ([]models.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Brand
	for _, b := range s.brands {
		if b.OrganizationID == organizationID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *InMemoryStore) CreateSource(ctx context.Context, src models.Source) (*models.Source, error) {
	if !src.Type.Valid() {
		return nil, apperrors.ValidationError{Field: "type", Message: fmt.Sprintf("invalid source type %q", src.Type)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[src.BrandID]; !ok {
		return nil, fmt.Errorf("brand %s: %w", src.BrandID, apperrors.ErrNotFound)
	}
	src.ID = ensureID(src.ID)
	src.CreatedAt = stamp(src.CreatedAt)
	s.sources[src.ID] = src
	s.track(src.ID)
	return &src, nil
}

func (s *InMemoryStore) ListSources(ctx context.Context, brandID string, sourceType models.SourceType) ([]models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Source
	for _, src := range s.sources {
		if src.BrandID == brandID && src.Type == sourceType && src.Enabled {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *InMemoryStore) CreateMention(ctx context.Context, m models.Mention) (*models.Mention, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := m.BrandID + "/" + m.URLHash
	if _, dup := s.urlHashes[key]; dup {
		return nil, fmt.Errorf("mention url hash %s: %w", m.URLHash, apperrors.ErrConflict)
	}
	m.ID = ensureID(m.ID)
	if _, exists := s.mentions[m.ID]; exists {
		return nil, fmt.Errorf("mention %s: %w", m.ID, apperrors.ErrConflict)
	}
	s.mentions[m.ID] = m
	s.urlHashes[key] = m.ID
	s.track(m.ID)
	return &m, nil
}

// newestMentionsFirst must be called with the lock held
func (s *InMemoryStore) newestMentionsFirst(ms []models.Mention) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return s.order[ms[i].ID] > s.order[ms[j].ID]
	})
}

func limitSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

func (s *InMemoryStore) ListUnclusteredMentions(ctx context.Context, brandID string, limit int) ([]models.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Mention
	for id, m := range s.mentions {
		if m.BrandID != brandID {
			continue
		}
		if _, clustered := s.members[id]; clustered {
			continue
		}
		out = append(out, m)
	}
	s.newestMentionsFirst(out)
	return limitSlice(out, limit), nil
}

func (s *InMemoryStore) CreateIssue(ctx context.Context, issue models.Issue) (*models.Issue, error) {
	if err := issue.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[issue.BrandID]; !ok {
		return nil, fmt.Errorf("brand %s: %w", issue.BrandID, apperrors.ErrNotFound)
	}
	issue.ID = ensureID(issue.ID)
	if _, exists := s.issues[issue.ID]; exists {
		return nil, fmt.Errorf("issue %s: %w", issue.ID, apperrors.ErrConflict)
	}
	issue.CreatedAt = stamp(issue.CreatedAt)
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	s.issues[issue.ID] = issue
	s.track(issue.ID)
	return &issue, nil
}

func (s *InMemoryStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, apperrors.ErrNotFound)
	}
	return &issue, nil
}

// recentIssues must be called with the lock held
func (s *InMemoryStore) recentIssues(brandID string, limit int) []models.Issue {
	var out []models.Issue
	for _, issue := range s.issues {
		if issue.BrandID == brandID {
			out = append(out, issue)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return limitSlice(out, limit)
}

func (s *InMemoryStore) ListRecentIssues(ctx context.Context, brandID string, limit int) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentIssues(brandID, limit), nil
}

func (s *InMemoryStore) AttachMention(ctx context.Context, issueID, mentionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[issueID]; !ok {
		return fmt.Errorf("issue %s: %w", issueID, apperrors.ErrNotFound)
	}
	if _, ok := s.mentions[mentionID]; !ok {
		return fmt.Errorf("mention %s: %w", mentionID, apperrors.ErrNotFound)
	}
	if owner, attached := s.members[mentionID]; attached {
		return fmt.Errorf("mention %s already in issue %s: %w", mentionID, owner, apperrors.ErrConflict)
	}
	s.members[mentionID] = issueID
	s.byIssue[issueID] = append(s.byIssue[issueID], mentionID)
	return nil
}

func (s *InMemoryStore) TouchIssue(ctx context.Context, issueID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return fmt.Errorf("issue %s: %w", issueID, apperrors.ErrNotFound)
	}
	issue.UpdatedAt = at
	s.issues[issueID] = issue
	return nil
}

func (s *InMemoryStore) UpdateIssueStatus(ctx context.Context, issueID string, status models.IssueStatus) error {
	if !status.Valid() {
		return apperrors.ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", status)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return fmt.Errorf("issue %s: %w", issueID, apperrors.ErrNotFound)
	}
	issue.Status = status
	s.issues[issueID] = issue
	return nil
}

// issueMentions must be called with the lock held
func (s *InMemoryStore) issueMentions(issueID string) []models.Mention {
	ids := s.byIssue[issueID]
	out := make([]models.Mention, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.mentions[id])
	}
	s.newestMentionsFirst(out)
	return out
}

func (s *InMemoryStore) ListIssueMentions(ctx context.Context, issueID string, limit int) ([]models.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return limitSlice(s.issueMentions(issueID), limit), nil
}

func (s *InMemoryStore) CountIssueMentionsSince(ctx context.Context, issueID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.byIssue[issueID] {
		if !s.mentions[id].CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) UpsertRiskScore(ctx context.Context, score models.RiskScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[score.IssueID]; !ok {
		return fmt.Errorf("issue %s: %w", score.IssueID, apperrors.ErrNotFound)
	}
	s.risk[score.IssueID] = score
	return nil
}

func (s *InMemoryStore) UpsertRecommendation(ctx context.Context, rec models.Recommendation) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[rec.IssueID]; !ok {
		return fmt.Errorf("issue %s: %w", rec.IssueID, apperrors.ErrNotFound)
	}
	s.recs[rec.IssueID] = rec
	return nil
}

func (s *InMemoryStore) ListIssueOverviews(ctx context.Context, brandID string, limit int) ([]models.IssueOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issues := s.recentIssues(brandID, limit)
	out := make([]models.IssueOverview, 0, len(issues))
	for _, issue := range issues {
		ov := models.IssueOverview{Issue: issue, MentionCount: len(s.byIssue[issue.ID])}
		if rs, ok := s.risk[issue.ID]; ok {
			ov.RiskScore = &rs
		}
		if rec, ok := s.recs[issue.ID]; ok {
			ov.Recommendation = &rec
		}
		out = append(out, ov)
	}
	return out, nil
}

// Health always succeeds for the in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
