// Package smoketest drives a running tier list server end to end: it triggers
// a refresh over HTTP, waits for the job run to finish and checks the served
// tier lists. It also generates fixture files for mock mode.
package smoketest

import (
	"encoding/json"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL      string            // Base URL of the service
	Mode         model.RefreshMode // Modes to refresh and verify
	Timeout      time.Duration     // HTTP request timeout
	PollInterval time.Duration     // Delay between admin log polls
	Wait         time.Duration     // How long to wait for the job run
}

// Stats holds smoke run statistics.
type Stats struct {
	JobID         string
	JobRunID      string
	ItemsUpdated  int
	SpecsVerified map[model.Mode]int
	Polls         int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

type refreshResponse struct {
	OK      bool              `json:"ok"`
	JobID   string            `json:"jobId"`
	Mode    model.RefreshMode `json:"mode"`
	Trigger model.Trigger     `json:"trigger"`
}

type jobRunLog struct {
	ID           string          `json:"id"`
	Status       model.JobStatus `json:"status"`
	ItemsUpdated *int            `json:"itemsUpdated"`
	ErrorMessage *string         `json:"errorMessage"`
}

type logsResponse struct {
	Logs []jobRunLog `json:"logs"`
}

type tierResponse struct {
	Mode     model.Mode          `json:"mode"`
	Snapshot *model.SnapshotView `json:"snapshot"`
	Message  string              `json:"message"`
}

type configResponse struct {
	Config json.RawMessage `json:"config"`
}
