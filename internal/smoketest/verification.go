package smoketest

import (
	"fmt"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/internal/domain/tiering"
)

// VerifyView checks the invariants of a served snapshot and returns one line
// per violation.
func VerifyView(view model.SnapshotView, cfg model.AppConfig) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	seen := make(map[string]bool, len(view.Specs))
	nextRank := make(map[model.Role]int, len(model.Roles))
	lastScore := make(map[model.Role]float64, len(model.Roles))
	lastOrder := -1

	for i, s := range view.Specs {
		key := s.Key()
		if seen[key] {
			report("spec %s appears twice", key)
		}
		seen[key] = true

		if s.Mode != view.Mode {
			report("spec %s has mode %s in a %s snapshot", key, s.Mode, view.Mode)
		}
		if order := s.Role.Order(); order < lastOrder {
			report("row %d: role %s out of display order", i, s.Role)
		} else {
			lastOrder = order
		}

		nextRank[s.Role]++
		if s.Rank != nextRank[s.Role] {
			report("spec %s has rank %d, want %d", key, s.Rank, nextRank[s.Role])
		}
		if s.Score < 0 || s.Score > 100 {
			report("spec %s score %.2f outside [0,100]", key, s.Score)
		}
		if prev, ok := lastScore[s.Role]; ok && s.Score > prev {
			report("spec %s score %.2f above the spec ranked before it (%.2f)", key, s.Score, prev)
		}
		lastScore[s.Role] = s.Score

		if want := tiering.AssignTier(s.Score, cfg.Tiers); s.Tier != want {
			report("spec %s tier %s, want %s for score %.2f", key, s.Tier, want, s.Score)
		}
		if s.TierLabel != s.Tier.Label() {
			report("spec %s tier label %q does not match tier %s", key, s.TierLabel, s.Tier)
		}
		if want := s.SpecScore.RankDelta(); s.RankDelta != want {
			report("spec %s rank delta %d, want %d", key, s.RankDelta, want)
		}
		if s.SampleSize < minSample(view.Mode, cfg) {
			report("spec %s sample size %d below the minimum", key, s.SampleSize)
		}
	}
	return problems
}

func minSample(mode model.Mode, cfg model.AppConfig) int {
	if mode == model.ModeRaid {
		return cfg.Raid.MinSampleSize
	}
	return cfg.MythicPlus.MinSampleSize
}
