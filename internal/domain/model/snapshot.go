package model

import (
	"encoding/json"
	"time"
)

// Snapshot is one immutable, timestamped scoring result set for one mode.
type Snapshot struct {
	ID        string           `json:"id"`
	Mode      Mode             `json:"mode"`
	CreatedAt time.Time        `json:"createdAt"`
	Metadata  SnapshotMetadata `json:"metadata"`
}

// SnapshotMetadata records where a snapshot came from and how it was sampled.
type SnapshotMetadata struct {
	Source        string   `json:"source"`
	EntryCount    int      `json:"entryCount"`
	ScoredCount   int      `json:"scoredCount"`
	MinSampleSize int      `json:"minSampleSize"`
	TopN          int      `json:"topN"`
	Percentile    *float64 `json:"percentile,omitempty"`
	Trigger       Trigger  `json:"trigger"`
}

// SpecScore is the persisted score row of one spec within a snapshot.
type SpecScore struct {
	ID           string          `json:"id"`
	SnapshotID   string          `json:"snapshotId"`
	Mode         Mode            `json:"mode"`
	Role         Role            `json:"role"`
	ClassName    string          `json:"className"`
	SpecName     string          `json:"specName"`
	Score        float64         `json:"score"`
	Tier         Tier            `json:"tier"`
	SampleSize   int             `json:"sampleSize"`
	Rank         int             `json:"rank"`
	PreviousRank *int            `json:"previousRank"`
	RawJSON      json.RawMessage `json:"rawJson"`
}

// Key returns the role|class|spec key of the row.
func (s *SpecScore) Key() string { return SpecKey(s.Role, s.ClassName, s.SpecName) }

// RankDelta is positive when the spec moved up since the previous snapshot
// and zero when it was not ranked there.
func (s *SpecScore) RankDelta() int {
	if s.PreviousRank == nil {
		return 0
	}
	return *s.PreviousRank - s.Rank
}

// ScoreBreakdown is the audit payload stored with each SpecScore.
type ScoreBreakdown struct {
	ScoreRaw       float64  `json:"scoreRaw"`
	EvidenceURLs   []string `json:"evidenceUrls"`
	RawSampleCount int      `json:"rawSampleCount"`
}

// SpecBuild holds the derived build artifact of one spec within a snapshot.
type SpecBuild struct {
	ID                string          `json:"id"`
	SnapshotID        string          `json:"snapshotId"`
	Mode              Mode            `json:"mode"`
	Role              Role            `json:"role"`
	ClassName         string          `json:"className"`
	SpecName          string          `json:"specName"`
	BuildJSON         json.RawMessage `json:"buildJson"`
	BuildSource       string          `json:"buildSource"`
	BuildImportString *string         `json:"buildImportString"`
}

// SpecStats holds the derived stat-priority artifact of one spec within a snapshot.
type SpecStats struct {
	ID         string          `json:"id"`
	SnapshotID string          `json:"snapshotId"`
	Mode       Mode            `json:"mode"`
	Role       Role            `json:"role"`
	ClassName  string          `json:"className"`
	SpecName   string          `json:"specName"`
	StatsJSON  json.RawMessage `json:"statsJson"`
}

// SnapshotWrite is everything written in one snapshot transaction.
type SnapshotWrite struct {
	Snapshot Snapshot
	Scores   []SpecScore
	Builds   []SpecBuild
	Stats    []SpecStats
}

// SpecView is one spec row of the read view, joined across score, build and stats.
type SpecView struct {
	SpecScore
	RankDelta         int             `json:"rankDelta"`
	TierLabel         string          `json:"tierLabel"`
	Build             json.RawMessage `json:"build"`
	BuildSource       *string         `json:"buildSource"`
	BuildImportString *string         `json:"buildImportString"`
	Stats             json.RawMessage `json:"stats"`
}

// SnapshotView is a snapshot with its spec rows ordered by role then rank.
type SnapshotView struct {
	Snapshot
	Specs []SpecView `json:"specs"`
}

// JobRun records one execution of the refresh orchestrator.
type JobRun struct {
	ID           string          `json:"id"`
	Mode         *Mode           `json:"mode"`
	Status       JobStatus       `json:"status"`
	Trigger      Trigger         `json:"trigger"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   *time.Time      `json:"finishedAt"`
	DurationMS   *int64          `json:"durationMs"`
	ItemsUpdated *int            `json:"itemsUpdated"`
	ErrorMessage *string         `json:"errorMessage"`
	Metadata     json.RawMessage `json:"metadata"`
}

// JobRunUpdate carries the terminal fields of a JobRun.
type JobRunUpdate struct {
	Status       JobStatus
	FinishedAt   time.Time
	DurationMS   int64
	ItemsUpdated *int
	ErrorMessage *string
}

// RefreshRequest is the payload delivered to the refresh entry point.
type RefreshRequest struct {
	Mode    RefreshMode `json:"mode,omitempty"`
	Trigger Trigger     `json:"trigger,omitempty"`
}
