// Package risk turns the mentions of an issue into a risk score, an
// escalation forecast and a recommended response.
package risk

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rajasatyajit/IssueRadar/internal/classifier"
	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/pkg/utils"
)

// Weights holds every tunable constant of the scoring model
type Weights struct {
	Velocity  float64 `yaml:"velocity"`
	Authority float64 `yaml:"authority"`
	Severity  float64 `yaml:"severity"`
	Spread    float64 `yaml:"spread"`
	Sentiment float64 `yaml:"sentiment"`
	Pattern   float64 `yaml:"pattern"`

	// VelocityScale multiplies the last-hour/baseline ratio
	VelocityScale float64 `yaml:"velocity_scale"`

	SourceWeights       map[models.SourceType]float64 `yaml:"source_weights"`
	DefaultSourceWeight float64                       `yaml:"default_source_weight"`

	// Escalation bases for the logistic forecast. The defaults put the 72h
	// base above the 24h base.
	Escalation24hBase float64 `yaml:"escalation_24h_base"`
	Escalation72hBase float64 `yaml:"escalation_72h_base"`
	EscalationMin     int     `yaml:"escalation_min"`
	EscalationMax     int     `yaml:"escalation_max"`
}

// DefaultWeights returns the stock scoring model
func DefaultWeights() Weights {
	return Weights{
		Velocity:      0.25,
		Authority:     0.25,
		Severity:      0.20,
		Spread:        0.15,
		Sentiment:     0.10,
		Pattern:       0.05,
		VelocityScale: 22,
		SourceWeights: map[models.SourceType]float64{
			models.SourceRSS:    0.9,
			models.SourceReddit: 0.6,
		},
		DefaultSourceWeight: 0.5,
		Escalation24hBase:   -2.2,
		Escalation72hBase:   -1.6,
		EscalationMin:       1,
		EscalationMax:       95,
	}
}

func (w Weights) sourceWeight(t models.SourceType) float64 {
	if v, ok := w.SourceWeights[t]; ok {
		return v
	}
	return w.DefaultSourceWeight
}

// Counts are the velocity windows of an issue
type Counts struct {
	Last1h  int `json:"last1h"`
	Last6h  int `json:"last6h"`
	Last24h int `json:"last24h"`
}

// Assessment is the full scoring output for one issue
type Assessment struct {
	Score    models.RiskScore
	Category models.SeverityCategory
	Counts   Counts
}

// Scorer computes risk assessments. It is stateless apart from its
// configuration and safe for concurrent use.
type Scorer struct {
	weights        Weights
	classifier     *classifier.Classifier
	sentimentLimit int
}

// NewScorer creates a scorer. A nil classifier uses the built-in lexicon.
func NewScorer(w Weights, c *classifier.Classifier, sentimentLimit int) *Scorer {
	if c == nil {
		c = classifier.New()
	}
	if sentimentLimit <= 0 {
		sentimentLimit = 40
	}
	return &Scorer{weights: w, classifier: c, sentimentLimit: sentimentLimit}
}

func round0to100(x float64) int {
	return utils.Clamp(int(math.Round(x)), 0, 100)
}

// Score assesses mentions, which must be ordered newest first. It returns
// false when there is nothing to score.
func (s *Scorer) Score(mentions []models.Mention, now time.Time) (Assessment, bool) {
	if len(mentions) == 0 {
		return Assessment{}, false
	}
	w := s.weights

	counts := windowCounts(mentions, now)
	prior5h := max(counts.Last6h-counts.Last1h, 0)
	ratio := float64(counts.Last1h) / math.Max(1, float64(prior5h)/5)
	velocity := round0to100(ratio * w.VelocityScale)

	authSum := 0.0
	for _, m := range mentions {
		authSum += w.sourceWeight(m.SourceType)
	}
	authority := round0to100(authSum / float64(len(mentions)) * 100)

	results := make([]classifier.Result, len(mentions))
	maxWeight := s.classifier.SeverityWeight(models.SeverityOther)
	for i, m := range mentions {
		results[i] = s.classifier.Classify(m.Text)
		maxWeight = math.Max(maxWeight, results[i].Weight)
	}
	severity := round0to100(maxWeight * 100)

	spread := round0to100(spreadRaw(mentions))

	sentiment := 0
	for i := 0; i < len(results) && i < s.sentimentLimit; i++ {
		sentiment = max(sentiment, results[i].NegativeIntensity)
	}
	sentiment = utils.Clamp(sentiment, 0, 100)

	pattern := 0
	if severity >= 85 {
		pattern += 40
	}
	if authority >= 70 {
		pattern += 30
	}
	if velocity >= 70 {
		pattern += 30
	}
	pattern = utils.Clamp(pattern, 0, 100)

	score := round0to100(float64(velocity)*w.Velocity +
		float64(authority)*w.Authority +
		float64(severity)*w.Severity +
		float64(spread)*w.Spread +
		float64(sentiment)*w.Sentiment +
		float64(pattern)*w.Pattern)

	category := results[0].Category
	if maxWeight >= s.classifier.SeverityWeight(models.SeveritySafety) {
		category = models.SeveritySafety
	}

	return Assessment{
		Score: models.RiskScore{
			Score:          score,
			VelocityScore:  velocity,
			AuthorityScore: authority,
			SeverityScore:  severity,
			SpreadScore:    spread,
			SentimentScore: sentiment,
			PatternScore:   pattern,
			Escalation24h:  w.Escalation(score, velocity, w.Escalation24hBase),
			Escalation72h:  w.Escalation(score, velocity, w.Escalation72hBase),
			ComputedAt:     now,
		},
		Category: category,
		Counts:   counts,
	}, true
}

// Escalation maps a risk and velocity score to a bounded percentage with a
// logistic curve.
func (w Weights) Escalation(score, velocity int, base float64) int {
	x := base + float64(score)/22 + float64(velocity)/35
	p := 1 / (1 + math.Exp(-x))
	return utils.Clamp(int(math.Round(p*100)), w.EscalationMin, w.EscalationMax)
}

func windowCounts(mentions []models.Mention, now time.Time) Counts {
	hourAgo := now.Add(-time.Hour)
	sixAgo := now.Add(-6 * time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	var c Counts
	for _, m := range mentions {
		if !m.CreatedAt.Before(hourAgo) {
			c.Last1h++
		}
		if !m.CreatedAt.Before(sixAgo) {
			c.Last6h++
		}
		if !m.CreatedAt.Before(dayAgo) {
			c.Last24h++
		}
	}
	return c
}

func spreadRaw(mentions []models.Mention) float64 {
	types := make(map[models.SourceType]struct{})
	names := make(map[string]struct{})
	urls := make(map[string]struct{})
	domains := make(map[string]struct{})

	for _, m := range mentions {
		types[m.SourceType] = struct{}{}
		names[m.SourceName] = struct{}{}
		urls[m.URL] = struct{}{}
		if m.SourceType == models.SourceRSS {
			if d := domainOf(m.URL); d != "" {
				domains[d] = struct{}{}
			}
		}
	}

	return float64(len(types))*12 +
		float64(len(names))*5 +
		float64(len(domains))*10 +
		math.Min(25, float64(len(urls))/10)
}

// domainOf returns the lower-case host of raw without a leading "www.", or
// "" when raw is not an absolute URL.
func domainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
