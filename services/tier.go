// services/tier.go
package services

import "loyalty-points-service/models"

// Tier thresholds: fixed, non-overlapping, ascending.
// Bronze [0, 499], Silver [500, 1499], Gold [1500, ∞).
const (
	TierSilverMin = 500
	TierGoldMin   = 1500
)

// ResolveTier maps a point total to its tier. Pure and total — negative input
// clamps to Bronze.
func ResolveTier(points int64) models.Tier {
	switch {
	case points >= TierGoldMin:
		return models.TierGold
	case points >= TierSilverMin:
		return models.TierSilver
	default:
		return models.TierBronze
	}
}

// PointsToNextTier returns how many points are missing for the next tier, or 0
// at Gold.
func PointsToNextTier(points int64) int64 {
	switch ResolveTier(points) {
	case models.TierBronze:
		return TierSilverMin - points
	case models.TierSilver:
		return TierGoldMin - points
	case models.TierGold:
		return 0
	}
	return 0
}
