package derive

import (
	"math"
	"sort"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/internal/domain/scoring"
)

const (
	statsNote        = "Data-driven from top performers"
	statsMissingNote = "Not available from source payloads"
)

// StatResult is the derived stat-priority artifact.
type StatResult struct {
	Available     bool               `json:"available"`
	SampleSize    int                `json:"sampleSize"`
	Medians       map[string]float64 `json:"medians,omitempty"`
	PriorityOrder []string           `json:"priorityOrder,omitempty"`
	Note          string             `json:"note"`
}

// DeriveStatPriority computes per-stat medians over the first topN entries and
// orders stats by descending median. Non-finite values are ignored.
func DeriveStatPriority(entries []model.PerformanceEntry, topN int) StatResult {
	top := head(entries, topN)

	var order []string
	values := make(map[string][]float64)
	contributors := 0
	for _, e := range top {
		contributed := false
		for _, stat := range sortedKeys(e.Stats) {
			v := e.Stats[stat]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if _, ok := values[stat]; !ok {
				order = append(order, stat)
			}
			values[stat] = append(values[stat], v)
			contributed = true
		}
		if contributed {
			contributors++
		}
	}

	if len(order) == 0 {
		return StatResult{Available: false, SampleSize: len(top), Note: statsMissingNote}
	}

	medians := make(map[string]float64, len(order))
	for _, stat := range order {
		medians[stat] = scoring.Round(scoring.Median(values[stat]), 2)
	}
	priority := make([]string, len(order))
	copy(priority, order)
	sort.SliceStable(priority, func(i, j int) bool { return medians[priority[i]] > medians[priority[j]] })

	return StatResult{
		Available:     true,
		SampleSize:    contributors,
		Medians:       medians,
		PriorityOrder: priority,
		Note:          statsNote,
	}
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
