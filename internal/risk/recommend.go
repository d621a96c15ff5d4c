package risk

import (
	"fmt"

	"github.com/rajasatyajit/IssueRadar/internal/models"
)

// Decision thresholds on the combined score
const (
	EscalateAt = 75
	PrepareAt  = 50
	MonitorAt  = 30

	// SevereAt is the severity score from which a safety, legal or fraud
	// issue goes to LEGAL regardless of its combined score
	SevereAt = 85
)

// Recommend applies the decision table to an assessment
func Recommend(a Assessment) models.Recommendation {
	s := a.Score
	safetyOrLegal := s.SeverityScore >= SevereAt && (a.Category == models.SeveritySafety ||
		a.Category == models.SeverityLegal || a.Category == models.SeverityFraud)

	rec := models.Recommendation{
		IssueID:   s.IssueID,
		Action:    models.ActionIgnore,
		Owner:     models.OwnerPR,
		Posture:   models.PostureSilent,
		Rationale: Rationale(a),
		UpdatedAt: s.ComputedAt,
	}

	switch {
	case s.Score >= EscalateAt || safetyOrLegal:
		rec.Action = models.ActionEscalate
		rec.Posture = models.PostureCorrective
		if safetyOrLegal {
			rec.Owner = models.OwnerLegal
		}
	case s.Score >= PrepareAt:
		rec.Action = models.ActionPrepare
		rec.Posture = models.PostureProactive
	case s.Score >= MonitorAt:
		rec.Action = models.ActionMonitor
	}
	return rec
}

// Rationale renders the drivers behind an assessment
func Rationale(a Assessment) string {
	s := a.Score
	return fmt.Sprintf("Drivers: velocity=%d, authority=%d, severity=%d, spread=%d, sentiment=%d. Mentions: last1h=%d, last6h=%d, last24h=%d.",
		s.VelocityScore, s.AuthorityScore, s.SeverityScore, s.SpreadScore, s.SentimentScore,
		a.Counts.Last1h, a.Counts.Last6h, a.Counts.Last24h)
}
