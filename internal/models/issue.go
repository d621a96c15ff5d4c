package models

import (
	"fmt"
	"time"
)

// IssueStatus is the lifecycle stage of an issue
type IssueStatus string

const (
	StatusEmerging    IssueStatus = "EMERGING"
	StatusActive      IssueStatus = "ACTIVE"
	StatusStabilizing IssueStatus = "STABILIZING"
	StatusDying       IssueStatus = "DYING"
)

// Valid reports whether s is one of the known statuses
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusEmerging, StatusActive, StatusStabilizing, StatusDying:
		return true
	}
	return false
}

// Issue is a cluster of mentions about the same emerging topic
type Issue struct {
	ID        string      `json:"id" db:"id"`
	BrandID   string      `json:"brand_id" db:"brand_id"`
	Title     string      `json:"title" db:"title"`
	Summary   string      `json:"summary" db:"summary"`
	Status    IssueStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields a store requires before persisting an issue
func (i Issue) Validate() error {
	if i.BrandID == "" {
		return fmt.Errorf("issue: brand id is required")
	}
	if !i.Status.Valid() {
		return fmt.Errorf("issue: invalid status %q", i.Status)
	}
	return nil
}

// IssueMention records that a mention belongs to an issue
type IssueMention struct {
	IssueID   string    `json:"issue_id" db:"issue_id"`
	MentionID string    `json:"mention_id" db:"mention_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
