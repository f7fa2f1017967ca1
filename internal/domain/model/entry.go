package model

import "encoding/json"

// PerformanceEntry is one observed performance sample for one character.
// Entries only live for the duration of a refresh run.
type PerformanceEntry struct {
	Mode      Mode
	Role      Role
	ClassName string
	SpecName  string
	// Metric is the key level for dungeons and the parse/score for raids.
	Metric float64
	// Timed is nil when the provider did not report completion status.
	Timed       *bool
	BuildString *string
	TalentNodes []string
	Stats       map[string]float64
	EvidenceURL string
	Raw         json.RawMessage
}

// SpecKey builds the role|class|spec identity shared by all per-spec rows.
func SpecKey(role Role, className, specName string) string {
	return string(role) + "|" + className + "|" + specName
}

// SpecAggregate is the per (mode, role, class, spec) result of one scoring pass.
type SpecAggregate struct {
	Mode      Mode
	Role      Role
	ClassName string
	SpecName  string

	RawScore float64
	// Score is normalized per role to [0,100] with two decimals.
	Score float64
	// SampleSize counts the entries kept after top-N truncation.
	SampleSize int
	// RawSampleCount counts the entries seen before truncation.
	RawSampleCount int
	EvidenceURLs   []string
	// TopEntries holds at most top-N entries sorted by metric descending.
	TopEntries []PerformanceEntry
}

// Key returns the role|class|spec key of the aggregate.
func (a *SpecAggregate) Key() string {
	return SpecKey(a.Role, a.ClassName, a.SpecName)
}
