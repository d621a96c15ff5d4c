package models

import (
	"fmt"
	"time"
)

// SeverityCategory is the lexicon bucket a mention's text falls into
type SeverityCategory string

const (
	SeveritySafety  SeverityCategory = "SAFETY"
	SeverityLegal   SeverityCategory = "LEGAL"
	SeverityFraud   SeverityCategory = "FRAUD"
	SeverityEthics  SeverityCategory = "ETHICS"
	SeverityPricing SeverityCategory = "PRICING"
	SeveritySupport SeverityCategory = "SUPPORT"
	SeverityOther   SeverityCategory = "OTHER"
)

// Valid reports whether c is a known category
func (c SeverityCategory) Valid() bool {
	switch c {
	case SeveritySafety, SeverityLegal, SeverityFraud, SeverityEthics,
		SeverityPricing, SeveritySupport, SeverityOther:
		return true
	}
	return false
}

// Action is what the recommendation asks the brand team to do
type Action string

const (
	ActionIgnore   Action = "IGNORE"
	ActionMonitor  Action = "MONITOR"
	ActionPrepare  Action = "PREPARE"
	ActionEscalate Action = "ESCALATE"
)

// Owner is the team a recommendation is routed to
type Owner string

const (
	OwnerPR    Owner = "PR"
	OwnerLegal Owner = "LEGAL"
	OwnerCX    Owner = "CX"
	OwnerExec  Owner = "EXEC"
)

// Posture is the recommended communication stance
type Posture string

const (
	PostureSilent     Posture = "SILENT"
	PostureCorrective Posture = "CORRECTIVE"
	PostureProactive  Posture = "PROACTIVE"
)

// RiskScore is the derived risk projection of an issue, overwritten every scoring run
type RiskScore struct {
	IssueID        string    `json:"issue_id" db:"issue_id"`
	Score          int       `json:"score0to100" db:"score"`
	VelocityScore  int       `json:"velocity_score" db:"velocity_score"`
	AuthorityScore int       `json:"authority_score" db:"authority_score"`
	SeverityScore  int       `json:"severity_score" db:"severity_score"`
	SpreadScore    int       `json:"spread_score" db:"spread_score"`
	SentimentScore int       `json:"sentiment_score" db:"sentiment_score"`
	PatternScore   int       `json:"pattern_score" db:"pattern_score"`
	Escalation24h  int       `json:"escalation_24h" db:"escalation_24h"`
	Escalation72h  int       `json:"escalation_72h" db:"escalation_72h"`
	ComputedAt     time.Time `json:"computed_at" db:"computed_at"`
}

// Recommendation is the decision-table output for an issue
type Recommendation struct {
	IssueID   string    `json:"issue_id" db:"issue_id"`
	Action    Action    `json:"action" db:"action"`
	Owner     Owner     `json:"owner" db:"owner"`
	Posture   Posture   `json:"posture" db:"posture"`
	Rationale string    `json:"rationale" db:"rationale"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks enum fields before persisting
func (r Recommendation) Validate() error {
	switch r.Action {
	case ActionIgnore, ActionMonitor, ActionPrepare, ActionEscalate:
	default:
		return fmt.Errorf("recommendation: invalid action %q", r.Action)
	}
	switch r.Owner {
	case OwnerPR, OwnerLegal, OwnerCX, OwnerExec:
	default:
		return fmt.Errorf("recommendation: invalid owner %q", r.Owner)
	}
	switch r.Posture {
	case PostureSilent, PostureCorrective, PostureProactive:
	default:
		return fmt.Errorf("recommendation: invalid posture %q", r.Posture)
	}
	return nil
}

// IssueOverview joins an issue with its latest derived rows for read models
type IssueOverview struct {
	Issue          Issue           `json:"issue"`
	MentionCount   int             `json:"mention_count"`
	RiskScore      *RiskScore      `json:"risk_score,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}
