package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseWeights overlays YAML weights onto DefaultWeights. Keys left out keep
// their default value; source_weights entries are merged per source type.
func ParseWeights(data []byte) (Weights, error) {
	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("parse risk weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// LoadWeights reads a weights file. An empty path returns the defaults.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read risk weights %s: %w", path, err)
	}
	return ParseWeights(data)
}

// Validate rejects weights the scorer cannot use
func (w Weights) Validate() error {
	components := map[string]float64{
		"velocity":  w.Velocity,
		"authority": w.Authority,
		"severity":  w.Severity,
		"spread":    w.Spread,
		"sentiment": w.Sentiment,
		"pattern":   w.Pattern,
	}
	for name, v := range components {
		if v < 0 || v > 1 {
			return fmt.Errorf("risk weights: %s must be within [0,1]", name)
		}
	}
	if w.VelocityScale <= 0 {
		return fmt.Errorf("risk weights: velocity_scale must be positive")
	}
	for src, v := range w.SourceWeights {
		if v < 0 || v > 1 {
			return fmt.Errorf("risk weights: source weight for %s must be within [0,1]", src)
		}
	}
	if w.DefaultSourceWeight < 0 || w.DefaultSourceWeight > 1 {
		return fmt.Errorf("risk weights: default_source_weight must be within [0,1]")
	}
	if w.EscalationMin < 0 || w.EscalationMin > w.EscalationMax || w.EscalationMax > 100 {
		return fmt.Errorf("risk weights: escalation bounds must satisfy 0 <= min <= max <= 100")
	}
	return nil
}
