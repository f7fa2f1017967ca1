package repository

import (
	"encoding/json"
	"sort"

	"github.com/okian/tierlist/internal/domain/model"
)

// buildView joins score, build and stats rows by spec key. Specs are ordered
// by role display order, then rank.
func buildView(snap model.Snapshot, scores []model.SpecScore, builds []model.SpecBuild, stats []model.SpecStats) model.SnapshotView {
	buildByKey := make(map[string]model.SpecBuild, len(builds))
	for _, b := range builds {
		buildByKey[model.SpecKey(b.Role, b.ClassName, b.SpecName)] = b
	}
	statsByKey := make(map[string]model.SpecStats, len(stats))
	for _, s := range stats {
		statsByKey[model.SpecKey(s.Role, s.ClassName, s.SpecName)] = s
	}

	sorted := append([]model.SpecScore(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if oi, oj := sorted[i].Role.Order(), sorted[j].Role.Order(); oi != oj {
			return oi < oj
		}
		return sorted[i].Rank < sorted[j].Rank
	})

	specs := make([]model.SpecView, 0, len(sorted))
	for _, sc := range sorted {
		v := model.SpecView{
			SpecScore: sc,
			RankDelta: sc.RankDelta(),
			TierLabel: sc.Tier.Label(),
			Build:     json.RawMessage("null"),
			Stats:     json.RawMessage("null"),
		}
		key := sc.Key()
		if b, ok := buildByKey[key]; ok {
			v.Build = b.BuildJSON
			source := b.BuildSource
			v.BuildSource = &source
			v.BuildImportString = b.BuildImportString
		}
		if s, ok := statsByKey[key]; ok {
			v.Stats = s.StatsJSON
		}
		specs = append(specs, v)
	}
	return model.SnapshotView{Snapshot: snap, Specs: specs}
}

func checkLimit(limit int) error {
	if limit <= 0 {
		return ErrInvalidLimit
	}
	return nil
}
