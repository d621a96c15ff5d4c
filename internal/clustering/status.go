package clustering

import "github.com/rajasatyajit/IssueRadar/internal/models"

// StatusFromCounts derives lifecycle status from recent mention counts alone;
// the previous status plays no part.
func StatusFromCounts(last1h, last24h int) models.IssueStatus {
	switch {
	case last1h >= 5:
		return models.StatusActive
	case last24h >= 5 && last1h <= 1:
		return models.StatusStabilizing
	case last24h >= 1:
		return models.StatusEmerging
	default:
		return models.StatusDying
	}
}
