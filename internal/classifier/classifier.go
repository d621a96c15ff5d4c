package classifier

import (
	"github.com/rajasatyajit/IssueRadar/internal/models"
	"github.com/rajasatyajit/IssueRadar/pkg/utils"
)

// Result bundles the classifier outputs for one text
type Result struct {
	Category          models.SeverityCategory `json:"category"`
	Weight            float64                 `json:"weight"`
	NegativeIntensity int                     `json:"negative_intensity"`
}

// Classifier scores mention text for severity category and negative intensity
type Classifier struct {
	severity     *Ruleset[models.SeverityCategory]
	weights      map[models.SeverityCategory]float64
	negative     *Ruleset[string]
	pointsPerHit int
}

// New creates a classifier backed by the built-in lexicon
func New() *Classifier {
	c, err := NewFromLexicon(DefaultLexicon())
	if err != nil {
		panic(err)
	}
	return c
}

// NewFromFile creates a classifier from a YAML lexicon file, or the built-in
// lexicon when path is empty.
func NewFromFile(path string) (*Classifier, error) {
	if path == "" {
		return New(), nil
	}
	lex, err := LoadLexicon(path)
	if err != nil {
		return nil, err
	}
	return NewFromLexicon(lex)
}

// NewFromLexicon compiles a lexicon into a classifier
func NewFromLexicon(lex *Lexicon) (*Classifier, error) {
	if err := lex.Validate(); err != nil {
		return nil, err
	}

	rules := make([]Rule[models.SeverityCategory], 0, len(lex.Severity))
	weights := map[models.SeverityCategory]float64{models.SeverityOther: lex.OtherWeight}
	for _, c := range lex.Severity {
		rules = append(rules, Rule[models.SeverityCategory]{Label: c.Category, Terms: c.Terms})
		weights[c.Category] = c.Weight
	}

	negRules := []Rule[string]{{Label: "negative", Terms: lex.Negative.Terms}}

	return &Classifier{
		severity:     NewRuleset(rules),
		weights:      weights,
		negative:     NewRuleset(negRules),
		pointsPerHit: lex.Negative.PointsPerHit,
	}, nil
}

// ClassifySeverity returns the first lexicon category matching text, or OTHER
func (c *Classifier) ClassifySeverity(text string) models.SeverityCategory {
	if cat, ok := c.severity.First(text); ok {
		return cat
	}
	return models.SeverityOther
}

// SeverityWeight returns the configured weight of a category
func (c *Classifier) SeverityWeight(cat models.SeverityCategory) float64 {
	if w, ok := c.weights[cat]; ok {
		return w
	}
	return c.weights[models.SeverityOther]
}

// NegativeIntensity maps distinct negative-term hits to 0..100
func (c *Classifier) NegativeIntensity(text string) int {
	hits := c.negative.CountTerms(text)
	return utils.Clamp(hits*c.pointsPerHit, 0, 100)
}

// Classify runs both classifiers on text
func (c *Classifier) Classify(text string) Result {
	cat := c.ClassifySeverity(text)
	return Result{
		Category:          cat,
		Weight:            c.SeverityWeight(cat),
		NegativeIntensity: c.NegativeIntensity(text),
	}
}
