// Package scoring turns performance entries into per-spec aggregates with
// role-normalized scores.
package scoring

import (
	"sort"

	"github.com/okian/tierlist/internal/domain/model"
)

const maxEvidenceURLs = 5

// Scorer computes spec aggregates for one mode. Implementations are pure.
type Scorer interface {
	Score(entries []model.PerformanceEntry, cfg model.AppConfig) []model.SpecAggregate
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(entries []model.PerformanceEntry, cfg model.AppConfig) []model.SpecAggregate

// Score implements Scorer.
func (f ScorerFunc) Score(entries []model.PerformanceEntry, cfg model.AppConfig) []model.SpecAggregate {
	return f(entries, cfg)
}

// ForMode returns the scorer for mode.
func ForMode(mode model.Mode) Scorer {
	if mode == model.ModeRaid {
		return ScorerFunc(ScoreRaid)
	}
	return ScorerFunc(ScoreMythicPlus)
}

// ScoreMythicPlus scores dungeon entries: each kept entry contributes its key
// level plus the timed bonus (or overtime penalty), and the raw score is the
// median of those adjusted values.
func ScoreMythicPlus(entries []model.PerformanceEntry, cfg model.AppConfig) []model.SpecAggregate {
	p := cfg.MythicPlus
	return aggregate(model.ModeMythicPlus, entries, p.TopN, p.MinSampleSize, func(top []model.PerformanceEntry) float64 {
		adjusted := make([]float64, len(top))
		for i, e := range top {
			if e.Timed != nil && *e.Timed {
				adjusted[i] = e.Metric + p.TimedBonus
			} else {
				adjusted[i] = e.Metric + p.OvertimePenalty
			}
		}
		return Median(adjusted)
	})
}

// ScoreRaid scores raid entries: the raw score is the configured percentile of
// the kept metrics.
func ScoreRaid(entries []model.PerformanceEntry, cfg model.AppConfig) []model.SpecAggregate {
	p := cfg.Raid
	return aggregate(model.ModeRaid, entries, p.TopN, p.MinSampleSize, func(top []model.PerformanceEntry) float64 {
		metrics := make([]float64, len(top))
		for i, e := range top {
			metrics[i] = e.Metric
		}
		return Percentile(metrics, p.Percentile)
	})
}

type group struct {
	role      model.Role
	className string
	specName  string
	entries   []model.PerformanceEntry
}

// aggregate groups entries by spec (in first-seen order), truncates each group
// to topN by metric, computes the raw score, drops undersized groups and
// normalizes per role.
func aggregate(
	mode model.Mode,
	entries []model.PerformanceEntry,
	topN, minSample int,
	raw func(top []model.PerformanceEntry) float64,
) []model.SpecAggregate {
	index := make(map[string]int)
	var groups []*group
	for _, e := range entries {
		key := model.SpecKey(e.Role, e.ClassName, e.SpecName)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &group{role: e.Role, className: e.ClassName, specName: e.SpecName})
		}
		groups[i].entries = append(groups[i].entries, e)
	}

	out := make([]model.SpecAggregate, 0, len(groups))
	for _, g := range groups {
		sorted := make([]model.PerformanceEntry, len(g.entries))
		copy(sorted, g.entries)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Metric > sorted[j].Metric })
		top := sorted
		if topN > 0 && len(top) > topN {
			top = top[:topN]
		}
		if len(top) < minSample {
			continue
		}
		out = append(out, model.SpecAggregate{
			Mode:           mode,
			Role:           g.role,
			ClassName:      g.className,
			SpecName:       g.specName,
			RawScore:       raw(top),
			SampleSize:     len(top),
			RawSampleCount: len(g.entries),
			EvidenceURLs:   evidence(top),
			TopEntries:     top,
		})
	}

	normalizeByRole(out)
	return out
}

func normalizeByRole(aggs []model.SpecAggregate) {
	byRole := make(map[model.Role][]int)
	var roles []model.Role
	for i := range aggs {
		r := aggs[i].Role
		if _, ok := byRole[r]; !ok {
			roles = append(roles, r)
		}
		byRole[r] = append(byRole[r], i)
	}
	for _, r := range roles {
		idx := byRole[r]
		raw := make([]float64, len(idx))
		for j, i := range idx {
			raw[j] = aggs[i].RawScore
		}
		for j, v := range Normalize(raw) {
			aggs[idx[j]].Score = ClampScore(v)
		}
	}
}

func evidence(top []model.PerformanceEntry) []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0, maxEvidenceURLs)
	for _, e := range top {
		if e.EvidenceURL == "" {
			continue
		}
		if _, ok := seen[e.EvidenceURL]; ok {
			continue
		}
		seen[e.EvidenceURL] = struct{}{}
		urls = append(urls, e.EvidenceURL)
		if len(urls) == maxEvidenceURLs {
			break
		}
	}
	return urls
}
