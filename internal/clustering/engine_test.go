package clustering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/internal/runlock"
	"github.com/rajasatyajit/IssueRadar/internal/store"
	"github.com/rajasatyajit/IssueRadar/internal/textvec"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	st    *store.InMemoryStore
	org   *models.Organization
	brand *models.Brand
	n     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewInMemoryStore()
	org, err := st.CreateOrganization(ctx, models.Organization{Name: "Org"})
	if err != nil {
		t.Fatal(err)
	}
	brand, err := st.CreateBrand(ctx, models.Brand{OrganizationID: org.ID, Name: "Demo Motors"})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{st: st, org: org, brand: brand}
}

func (f *fixture) mention(t *testing.T, brandID, text string, age time.Duration) *models.Mention {
	t.Helper()
	f.n++
	m, err := f.st.CreateMention(context.Background(), models.Mention{
		BrandID:    brandID,
		SourceType: models.SourceRSS,
		SourceName: "Feed",
		URL:        fmt.Sprintf("https://example.com/%d", f.n),
		URLHash:    fmt.Sprintf("hash-%d", f.n),
		Text:       text,
		CreatedAt:  now.Add(-age),
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (f *fixture) issue(t *testing.T, title, summary string, updated time.Time) *models.Issue {
	t.Helper()
	issue, err := f.st.CreateIssue(context.Background(), models.Issue{
		BrandID: f.brand.ID, Title: title, Summary: summary, Status: models.StatusEmerging,
		CreatedAt: updated, UpdatedAt: updated,
	})
	if err != nil {
		t.Fatal(err)
	}
	return issue
}

func (f *fixture) engine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewEngine(f.st, DefaultConfig(), opts...)
}

func TestStatusFromCounts(t *testing.T) {
	tests := []struct {
		last1h, last24h int
		expected        models.IssueStatus
	}{
		{6, 6, models.StatusActive},
		{6, 0, models.StatusActive}, // regardless of last24h
		{5, 100, models.StatusActive},
		{0, 0, models.StatusDying},
		{1, 7, models.StatusStabilizing},
		{0, 5, models.StatusStabilizing},
		{2, 7, models.StatusEmerging},
		{2, 2, models.StatusEmerging},
		{0, 1, models.StatusEmerging},
	}

	for _, tt := range tests {
		if got := StatusFromCounts(tt.last1h, tt.last24h); got != tt.expected {
			t.Errorf("StatusFromCounts(%d, %d) = %s, expected %s", tt.last1h, tt.last24h, got, tt.expected)
		}
	}
}

func TestRunBrand_SharedVocabularyAttaches(t *testing.T) {
	f := newFixture(t)
	first := f.mention(t, f.brand.ID, "battery overheating fire safety recall", time.Minute)
	second := f.mention(t, f.brand.ID, "overheating battery fire hazard", 2*time.Minute)

	res, err := f.engine().RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatalf("RunBrand: %v", err)
	}

	if res.Scanned != 2 || res.Created != 1 || res.Assigned != 1 || res.Errors != 0 {
		t.Fatalf("Unexpected result: %+v", res)
	}

	created, attached := res.Outcomes[0], res.Outcomes[1]
	if created.MentionID != first.ID || !created.Created {
		t.Errorf("Expected the newest mention to spawn the issue, got %+v", created)
	}
	if attached.MentionID != second.ID || attached.IssueID != created.IssueID || attached.Created {
		t.Errorf("Expected second mention to attach to %s, got %+v", created.IssueID, attached)
	}

	issue, _ := f.st.GetIssue(context.Background(), created.IssueID)
	if !strings.Contains(issue.Title, "battery") || !strings.Contains(issue.Title, "overheating") {
		t.Errorf("Expected title from top keywords, got %q", issue.Title)
	}
	if issue.Summary != "battery overheating fire safety recall" {
		t.Errorf("Unexpected summary %q", issue.Summary)
	}
	if issue.Status != models.StatusEmerging {
		t.Errorf("Expected EMERGING with two mentions in the last hour, got %s", issue.Status)
	}
}

func TestRunBrand_ZeroOverlapSpawnsNewIssue(t *testing.T) {
	f := newFixture(t)
	existing := f.issue(t, "battery overheating", "battery overheating reports", now.Add(-time.Hour))
	m := f.mention(t, f.brand.ID, "dealer pricing markup complaint", time.Minute)

	res, err := f.engine().RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Assigned != 0 {
		t.Fatalf("Expected a new issue, got %+v", res)
	}
	if res.Outcomes[0].MentionID != m.ID || res.Outcomes[0].IssueID == existing.ID {
		t.Errorf("Mention must not join the unrelated issue: %+v", res.Outcomes[0])
	}
	if res.Outcomes[0].Similarity != 0 {
		t.Errorf("Expected zero similarity, got %v", res.Outcomes[0].Similarity)
	}
}

func TestRunBrand_IdenticalTextAttaches(t *testing.T) {
	f := newFixture(t)
	existing := f.issue(t, "steering wheel vibration", "", now.Add(-time.Hour))
	f.mention(t, f.brand.ID, "Steering wheel vibration!", time.Minute)

	res, err := f.engine().RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	o := res.Outcomes[0]
	if o.IssueID != existing.ID || o.Created {
		t.Fatalf("Expected attach to existing issue, got %+v", o)
	}
	if o.Similarity < 0.999999 {
		t.Errorf("Expected similarity 1, got %v", o.Similarity)
	}

	issue, _ := f.st.GetIssue(context.Background(), existing.ID)
	if !issue.UpdatedAt.Equal(now) {
		t.Errorf("Expected updated_at bumped to %v, got %v", now, issue.UpdatedAt)
	}
}

func TestRunBrand_NoKeywordsUsesFallbackTitle(t *testing.T) {
	f := newFixture(t)
	f.mention(t, f.brand.ID, "is it ok?", time.Minute)

	res, err := f.engine().RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	issue, _ := f.st.GetIssue(context.Background(), res.Outcomes[0].IssueID)
	if issue.Title != FallbackTitle {
		t.Errorf("Expected %q, got %q", FallbackTitle, issue.Title)
	}
}

func TestRunBrand_TieGoesToMostRecentIssue(t *testing.T) {
	f := newFixture(t)
	f.issue(t, "door handle broken", "", now.Add(-2*time.Hour))
	recent := f.issue(t, "door handle broken", "", now.Add(-time.Hour))
	f.mention(t, f.brand.ID, "door handle broken", time.Minute)

	res, err := f.engine().RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcomes[0].IssueID != recent.ID {
		t.Errorf("Expected tie to resolve to the most recently updated issue")
	}
}

func TestRunBrand_ClusteredMentionsAreNotRevisited(t *testing.T) {
	f := newFixture(t)
	f.mention(t, f.brand.ID, "infotainment screen freezes", time.Minute)
	e := f.engine()

	if _, err := e.RunBrand(context.Background(), f.brand.ID); err != nil {
		t.Fatal(err)
	}
	res, err := e.RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 0 || res.Created != 0 || res.Assigned != 0 {
		t.Errorf("Expected nothing to do on second run, got %+v", res)
	}
}

func TestRunBrand_BatchCapDefersRest(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.mention(t, f.brand.ID, fmt.Sprintf("topic%d alpha%d beta%d", i, i, i), time.Duration(i+1)*time.Minute)
	}

	cfg := DefaultConfig()
	cfg.MentionBatch = 2
	e := NewEngine(f.st, cfg, WithClock(func() time.Time { return now }))

	res, err := e.RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 2 {
		t.Errorf("Expected 2 scanned, got %d", res.Scanned)
	}

	left, _ := f.st.ListUnclusteredMentions(context.Background(), f.brand.ID, 0)
	if len(left) != 1 {
		t.Errorf("Expected one deferred mention, got %d", len(left))
	}
}

type failingStore struct {
	*store.InMemoryStore
	failMention string
}

func (s *failingStore) AttachMention(ctx context.Context, issueID, mentionID string) error {
	if mentionID == s.failMention {
		return errors.New("write conflict")
	}
	return s.InMemoryStore.AttachMention(ctx, issueID, mentionID)
}

func TestRunBrand_PerMentionFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.mention(t, f.brand.ID, "window seal leaks rain", time.Minute)
	bad := f.mention(t, f.brand.ID, "navigation maps outdated", 2*time.Minute)
	f.mention(t, f.brand.ID, "tyre pressure sensor faulty", 3*time.Minute)

	st := &failingStore{InMemoryStore: f.st, failMention: bad.ID}
	e := NewEngine(st, DefaultConfig(), WithClock(func() time.Time { return now }))

	res, err := e.RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatalf("Expected run to complete, got %v", err)
	}
	if res.Scanned != 3 || res.Created != 2 || res.Errors != 1 {
		t.Fatalf("Unexpected result: %+v", res)
	}
	if res.Outcomes[1].Err == nil || res.Outcomes[1].MentionID != bad.ID {
		t.Errorf("Expected failure recorded for %s, got %+v", bad.ID, res.Outcomes[1])
	}

	left, _ := f.st.ListUnclusteredMentions(context.Background(), f.brand.ID, 0)
	if len(left) != 1 || left[0].ID != bad.ID {
		t.Errorf("Expected failed mention to stay unclustered, got %+v", left)
	}
}

func TestRunBrand_StatusRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hot := f.issue(t, "hot", "", now.Add(-time.Minute))
	for i := 0; i < 6; i++ {
		m := f.mention(t, f.brand.ID, "x", time.Duration(i+1)*time.Minute)
		if err := f.st.AttachMention(ctx, hot.ID, m.ID); err != nil {
			t.Fatal(err)
		}
	}
	cold := f.issue(t, "cold", "", now.Add(-48*time.Hour))
	m := f.mention(t, f.brand.ID, "y", 48*time.Hour)
	if err := f.st.AttachMention(ctx, cold.ID, m.ID); err != nil {
		t.Fatal(err)
	}

	res, err := f.engine().RunBrand(ctx, f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusUpdated != 2 || res.StatusErrors != 0 {
		t.Errorf("Expected 2 status updates, got %+v", res)
	}

	if got, _ := f.st.GetIssue(ctx, hot.ID); got.Status != models.StatusActive {
		t.Errorf("Expected ACTIVE, got %s", got.Status)
	}
	if got, _ := f.st.GetIssue(ctx, cold.ID); got.Status != models.StatusDying {
		t.Errorf("Expected DYING, got %s", got.Status)
	}
}

func TestRunBrand_LockedBrandIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.mention(t, f.brand.ID, "battery overheating", time.Minute)

	locker := runlock.NewLocal()
	lease, err := locker.Acquire(context.Background(), "cluster:"+f.brand.ID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release(context.Background())

	res, err := f.engine(WithLocker(locker)).RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatalf("Expected skip without error, got %v", err)
	}
	if !res.Skipped || res.Error != MsgInProgress || res.Scanned != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestRunOrganization_BrandsAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.st.CreateBrand(ctx, models.Brand{OrganizationID: f.org.ID, Name: "AutoX"})
	if err != nil {
		t.Fatal(err)
	}

	f.issue(t, "battery overheating", "", now.Add(-time.Hour))
	f.mention(t, other.ID, "battery overheating", time.Minute)

	results, err := f.engine().RunOrganization(ctx, f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 brand results, got %d", len(results))
	}
	if results[0].BrandID != f.brand.ID || results[0].Scanned != 0 {
		t.Errorf("Unexpected first brand result: %+v", results[0])
	}
	if results[1].BrandID != other.ID || results[1].Created != 1 || results[1].Assigned != 0 {
		t.Errorf("Expected other brand to spawn its own issue, got %+v", results[1])
	}
}

func TestRun_UnknownScopeFails(t *testing.T) {
	f := newFixture(t)
	f.mention(t, f.brand.ID, "battery overheating fire", time.Minute)
	e := f.engine()

	results, err := e.RunOrganization(context.Background(), "nope")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("RunOrganization: expected ErrNotFound, got %v", err)
	}
	var runErr apperrors.RunError
	if !errors.As(err, &runErr) || runErr.Stage != "lookup organization" {
		t.Errorf("RunOrganization: expected RunError at organization lookup, got %v", err)
	}
	if results != nil {
		t.Errorf("Expected no results, got %+v", results)
	}

	res, err := e.RunBrand(context.Background(), "no-such-brand")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("RunBrand: expected ErrNotFound, got %v", err)
	}
	if res.Scanned != 0 || res.Skipped {
		t.Errorf("Expected an empty result, got %+v", res)
	}

	// nothing was touched for the real brand
	pending, _ := f.st.ListUnclusteredMentions(context.Background(), f.brand.ID, 10)
	if len(pending) != 1 {
		t.Errorf("Expected the mention to stay unclustered, got %d pending", len(pending))
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		expected  float64
	}{
		{"explicit", 0.5, 0.5},
		{"zero is a valid threshold", 0, 0},
		{"negative selects default", -1, 0.28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Threshold: tt.threshold}.withDefaults()
			if cfg.Threshold != tt.expected {
				t.Errorf("Expected threshold %v, got %v", tt.expected, cfg.Threshold)
			}
			if cfg.MentionBatch != 200 || cfg.IssueWindow != 50 || cfg.SignatureMentions != 25 || cfg.SummaryLength != 240 {
				t.Errorf("Unexpected defaults: %+v", cfg)
			}
		})
	}
}

func TestRunBrand_ZeroThresholdAttachesOnAnySharedToken(t *testing.T) {
	// sixteen distinct tokens; the shared one sits outside the title keywords
	long := "dealer refused claim paperwork delays service centre staff ignored calls repeatedly customers angry owners waiting warranty"

	tests := []struct {
		name      string
		threshold float64
		created   int
		assigned  int
	}{
		{"default threshold keeps them apart", 0.28, 2, 0},
		{"zero threshold joins them", 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mention(t, f.brand.ID, long, time.Minute)
			f.mention(t, f.brand.ID, "warranty", 2*time.Minute)

			cfg := DefaultConfig()
			cfg.Threshold = tt.threshold
			e := NewEngine(f.st, cfg, WithClock(func() time.Time { return now }))

			res, err := e.RunBrand(context.Background(), f.brand.ID)
			if err != nil {
				t.Fatal(err)
			}
			if res.Created != tt.created || res.Assigned != tt.assigned {
				t.Errorf("Expected created=%d assigned=%d, got %+v", tt.created, tt.assigned, res)
			}
		})
	}
}

func TestRunBrand_ExtraStopwordsSeparateIssues(t *testing.T) {
	texts := []string{"Demo Motors recall", "Demo Motors pricing"}

	f := newFixture(t)
	for i, text := range texts {
		f.mention(t, f.brand.ID, text, time.Duration(i+1)*time.Minute)
	}
	res, err := f.engine().RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Assigned != 1 {
		t.Errorf("Default tokenizer: expected the brand name to join the mentions, got %+v", res)
	}

	f = newFixture(t)
	for i, text := range texts {
		f.mention(t, f.brand.ID, text, time.Duration(i+1)*time.Minute)
	}
	tok := textvec.NewTokenizer(append(append([]string{}, textvec.DefaultStopwords...), "demo", "motors"))
	res, err = f.engine(WithTokenizer(tok)).RunBrand(context.Background(), f.brand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 2 || res.Assigned != 0 {
		t.Errorf("Brand name as stopword: expected separate issues, got %+v", res)
	}
}
