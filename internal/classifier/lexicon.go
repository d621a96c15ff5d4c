package classifier

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rajasatyajit/IssueRadar/internal/models"
)

//go:embed lexicons.yaml
var defaultLexiconYAML []byte

// CategoryLexicon is one priority-ordered severity bucket
type CategoryLexicon struct {
	Category models.SeverityCategory `yaml:"category"`
	Weight   float64                 `yaml:"weight"`
	Terms    []string                `yaml:"terms"`
}

// NegativeLexicon drives the negative-intensity score
type NegativeLexicon struct {
	PointsPerHit int      `yaml:"points_per_hit"`
	Terms        []string `yaml:"terms"`
}

// Lexicon is the swappable keyword data behind the classifiers
type Lexicon struct {
	Severity    []CategoryLexicon `yaml:"severity"`
	OtherWeight float64           `yaml:"other_weight"`
	Negative    NegativeLexicon   `yaml:"negative"`
}

// ParseLexicon decodes and validates YAML lexicon data
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// LoadLexicon reads a lexicon file from disk
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return ParseLexicon(data)
}

// DefaultLexicon returns the built-in lexicon
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon is invalid: %v", err))
	}
	return lex
}

// Validate rejects lexicons the classifier cannot use
func (l *Lexicon) Validate() error {
	seen := make(map[models.SeverityCategory]bool, len(l.Severity))
	for i, c := range l.Severity {
		if !c.Category.Valid() || c.Category == models.SeverityOther {
			return fmt.Errorf("lexicon: severity[%d] has invalid category %q", i, c.Category)
		}
		if seen[c.Category] {
			return fmt.Errorf("lexicon: category %s listed twice", c.Category)
		}
		seen[c.Category] = true
		if c.Weight < 0 || c.Weight > 1 {
			return fmt.Errorf("lexicon: weight for %s must be within [0,1]", c.Category)
		}
	}
	if l.OtherWeight < 0 || l.OtherWeight > 1 {
		return fmt.Errorf("lexicon: other_weight must be within [0,1]")
	}
	if l.Negative.PointsPerHit < 0 {
		return fmt.Errorf("lexicon: negative points_per_hit must not be negative")
	}
	return nil
}
