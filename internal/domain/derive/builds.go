// Package derive computes descriptive artifacts (representative build, stat
// priority) from the contributing entries of a spec.
package derive

import (
	"sort"
	"strings"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/internal/domain/scoring"
)

// Build result types.
const (
	BuildImportString = "import_string"
	BuildNodeRates    = "node_rates"
	BuildNotAvailable = "not_available"
)

// Build sources.
const (
	SourceTopPerformers = "derived_from_top_performers"
	SourceNotAvailable  = "not_available"
)

const (
	maxNodePickRates   = 20
	noBuildDataMessage = "No build strings or talent node selections were present in source payloads."
)

// NodePickRate is the share of entries with talent data that picked Node.
type NodePickRate struct {
	Node     string  `json:"node"`
	PickRate float64 `json:"pickRate"`
}

// BuildResult is the derived build artifact. Which fields are set depends on Type.
type BuildResult struct {
	Type              string         `json:"type"`
	SampleSize        int            `json:"sampleSize"`
	BuildSource       string         `json:"buildSource"`
	MostCommonBuild   string         `json:"mostCommonBuild,omitempty"`
	BuildImportString string         `json:"buildImportString,omitempty"`
	BuildFrequency    float64        `json:"buildFrequency,omitempty"`
	NodePickRates     []NodePickRate `json:"nodePickRates,omitempty"`
	Reason            string         `json:"reason,omitempty"`
}

// ImportString returns the build import string when one was derived.
func (b BuildResult) ImportString() *string {
	if b.Type != BuildImportString {
		return nil
	}
	s := b.BuildImportString
	return &s
}

type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter { return &counter{counts: make(map[string]int)} }

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// DeriveMostCommonBuild picks the most frequent build string among the first
// topN entries, falling back to talent-node pick rates and then to a
// not-available result. Ties go to the first build encountered.
func DeriveMostCommonBuild(entries []model.PerformanceEntry, topN int) BuildResult {
	top := head(entries, topN)

	builds := newCounter()
	for _, e := range top {
		if e.BuildString == nil {
			continue
		}
		if b := strings.TrimSpace(*e.BuildString); b != "" {
			builds.add(b)
		}
	}
	if len(builds.order) > 0 {
		best := builds.order[0]
		for _, b := range builds.order[1:] {
			if builds.counts[b] > builds.counts[best] {
				best = b
			}
		}
		return BuildResult{
			Type:              BuildImportString,
			SampleSize:        len(top),
			BuildSource:       SourceTopPerformers,
			MostCommonBuild:   best,
			BuildImportString: best,
			BuildFrequency:    scoring.Round(float64(builds.counts[best])/float64(len(top)), 3),
		}
	}

	nodes := newCounter()
	withNodes := 0
	for _, e := range top {
		if len(e.TalentNodes) == 0 {
			continue
		}
		withNodes++
		for _, n := range e.TalentNodes {
			nodes.add(n)
		}
	}
	if len(nodes.order) > 0 {
		rates := make([]NodePickRate, 0, len(nodes.order))
		for _, n := range nodes.order {
			rates = append(rates, NodePickRate{
				Node:     n,
				PickRate: scoring.Round(float64(nodes.counts[n])/float64(withNodes), 3),
			})
		}
		sort.SliceStable(rates, func(i, j int) bool { return rates[i].PickRate > rates[j].PickRate })
		if len(rates) > maxNodePickRates {
			rates = rates[:maxNodePickRates]
		}
		return BuildResult{
			Type:          BuildNodeRates,
			SampleSize:    withNodes,
			BuildSource:   SourceTopPerformers,
			NodePickRates: rates,
		}
	}

	return BuildResult{
		Type:        BuildNotAvailable,
		SampleSize:  len(top),
		BuildSource: SourceNotAvailable,
		Reason:      noBuildDataMessage,
	}
}

func head(entries []model.PerformanceEntry, n int) []model.PerformanceEntry {
	if n >= 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
