package models

import (
	"strings"
	"time"
)

// Organization scopes brands and every run
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Brand is the identity all mentions and issues are attached to
type Brand struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Aliases        []string  `json:"aliases" db:"aliases"`
	Competitors    []string  `json:"competitors" db:"competitors"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Keywords returns the de-duplicated, normalized brand keywords (name, aliases
// and competitors) used to decide whether a feed item is about the brand.
// Entries shorter than two characters are dropped.
func (b Brand) Keywords() []string {
	raw := make([]string, 0, 1+len(b.Aliases)+len(b.Competitors))
	raw = append(raw, b.Name)
	raw = append(raw, b.Aliases...)
	raw = append(raw, b.Competitors...)

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if len(k) < 2 {
			continue
		}
		nk := strings.Join(strings.Fields(strings.ToLower(k)), " ")
		if _, dup := seen[nk]; dup {
			continue
		}
		seen[nk] = struct{}{}
		out = append(out, nk)
	}
	return out
}

// Source is an ingestion endpoint configured for a brand
type Source struct {
	ID        string     `json:"id" db:"id"`
	BrandID   string     `json:"brand_id" db:"brand_id"`
	Type      SourceType `json:"type" db:"type"`
	Name      string     `json:"name" db:"name"`
	URL       string     `json:"url" db:"url"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
