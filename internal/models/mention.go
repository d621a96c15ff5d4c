package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceType identifies where a mention came from. The set is open: any
// non-empty upper-case token is accepted so new providers need no code change.
type SourceType string

const (
	SourceRSS    SourceType = "RSS"
	SourceReddit SourceType = "REDDIT"
)

// Valid reports whether the source type is a usable identifier
func (t SourceType) Valid() bool {
	s := string(t)
	if s == "" {
		return false
	}
	return s == strings.ToUpper(s) && !strings.ContainsAny(s, " \t\n")
}

// Mention is one immutable observation about a brand
type Mention struct {
	ID              string          `json:"id" db:"id"`
	BrandID         string          `json:"brand_id" db:"brand_id"`
	SourceType      SourceType      `json:"source_type" db:"source_type"`
	SourceName      string          `json:"source_name" db:"source_name"`
	URL             string          `json:"url" db:"url"`
	URLHash         string          `json:"url_hash" db:"url_hash"`
	Text            string          `json:"text" db:"text"`
	Author          string          `json:"author,omitempty" db:"author"`
	Language        string          `json:"language,omitempty" db:"language"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	EngagementProxy float64         `json:"engagement_proxy" db:"engagement_proxy"`
	Raw             json.RawMessage `json:"raw,omitempty" db:"raw"`
}

// Validate checks the fields a store requires before persisting a mention
func (m Mention) Validate() error {
	switch {
	case m.BrandID == "":
		return fmt.Errorf("mention: brand id is required")
	case !m.SourceType.Valid():
		return fmt.Errorf("mention: invalid source type %q", m.SourceType)
	case m.URLHash == "":
		return fmt.Errorf("mention: url hash is required")
	case m.CreatedAt.IsZero():
		return fmt.Errorf("mention: created_at is required")
	}
	return nil
}
