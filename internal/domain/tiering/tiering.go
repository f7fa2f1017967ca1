// Package tiering maps normalized scores to tiers.
package tiering

import (
	"sort"

	"github.com/okian/tierlist/internal/domain/model"
)

// AssignTier returns the tier whose range contains score, checking ranges in
// descending MinScore order. Scores outside every range fall back to the
// range with the lowest MinScore, or C when no ranges are configured.
func AssignTier(score float64, tiers []model.TierRange) model.Tier {
	if len(tiers) == 0 {
		return model.TierC
	}
	sorted := make([]model.TierRange, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinScore > sorted[j].MinScore })

	for _, t := range sorted {
		if score >= t.MinScore && score <= t.MaxScore {
			return t.Tier
		}
	}
	return sorted[len(sorted)-1].Tier
}
