package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/pkg/utils"
)

// SeedResult holds the ids created by SeedDemo
type SeedResult struct {
	OrganizationID string   `json:"organization_id"`
	BrandID        string   `json:"brand_id"`
	IssueID        string   `json:"issue_id"`
	MentionIDs     []string `json:"mention_ids"`
}

// SeedDemo creates a demo organization with one brand, two sources, two
// mentions and a pre-scored issue. now anchors the mention timestamps.
func SeedDemo(ctx context.Context, st Store, now time.Time) (*SeedResult, error) {
	org, err := st.CreateOrganization(ctx, models.Organization{Name: "Demo Org", CreatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("seed organization: %w", err)
	}

	brand, err := st.CreateBrand(ctx, models.Brand{
		OrganizationID: org.ID,
		Name:           "Demo Motors UAE",
		Aliases:        []string{"DemoMotors", "Demo Motors", "DemoMotors UAE"},
		Competitors:    []string{"FastCar ME", "AutoX"},
		CreatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("seed brand: %w", err)
	}

	sources := []models.Source{
		{BrandID: brand.ID, Type: models.SourceRSS, Name: "Example News", URL: "https://rss.nytimes.com/services/xml/rss/nyt/Business.xml", Enabled: true},
		{BrandID: brand.ID, Type: models.SourceReddit, Name: "Reddit Search", Enabled: true},
	}
	for _, src := range sources {
		src.CreatedAt = now
		if _, err := st.CreateSource(ctx, src); err != nil {
			return nil, fmt.Errorf("seed source %s: %w", src.Name, err)
		}
	}

	mentions := []models.Mention{
		{
			SourceType:      models.SourceRSS,
			SourceName:      "Example News",
			URL:             "https://example.com/demo-motors-battery",
			Text:            "Customers report battery overheating in Demo Motors EVs, raising safety concerns.",
			CreatedAt:       now.Add(-30 * time.Minute),
			EngagementProxy: 120,
		},
		{
			SourceType:      models.SourceReddit,
			SourceName:      "Reddit",
			URL:             "https://reddit.com/r/cars/demo",
			Text:            "Anyone else having overheating issues with Demo Motors EV?",
			CreatedAt:       now.Add(-20 * time.Minute),
			EngagementProxy: 80,
		},
	}

	res := &SeedResult{OrganizationID: org.ID, BrandID: brand.ID}
	for _, m := range mentions {
		m.BrandID = brand.ID
		m.URLHash = utils.HashURL(m.URL)
		created, err := st.CreateMention(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("seed mention %s: %w", m.URL, err)
		}
		res.MentionIDs = append(res.MentionIDs, created.ID)
	}

	issue, err := st.CreateIssue(ctx, models.Issue{
		BrandID:   brand.ID,
		Title:     "Battery overheating safety complaints",
		Summary:   "Early reports across news and social indicate battery overheating framed as a safety risk.",
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("seed issue: %w", err)
	}
	res.IssueID = issue.ID

	for _, id := range res.MentionIDs {
		if err := st.AttachMention(ctx, issue.ID, id); err != nil {
			return nil, fmt.Errorf("seed attach %s: %w", id, err)
		}
	}

	err = st.UpsertRiskScore(ctx, models.RiskScore{
		IssueID:        issue.ID,
		Score:          78,
		VelocityScore:  80,
		AuthorityScore: 75,
		SeverityScore:  95,
		SpreadScore:    60,
		SentimentScore: 65,
		PatternScore:   50,
		Escalation24h:  63,
		Escalation72h:  74,
		ComputedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("seed risk score: %w", err)
	}

	err = st.UpsertRecommendation(ctx, models.Recommendation{
		IssueID:   issue.ID,
		Action:    models.ActionEscalate,
		Owner:     models.OwnerLegal,
		Posture:   models.PostureCorrective,
		Rationale: "High severity safety framing combined with rising velocity across platforms indicates escalation risk.",
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("seed recommendation: %w", err)
	}

	return res, nil
}
