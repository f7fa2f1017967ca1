// Package repository persists snapshots, job runs and the stored app config.
package repository

import (
	"context"
	"encoding/json"

	"github.com/okian/tierlist/internal/domain/model"
)

// Store provides read/write access to the persisted tier-list state.
type Store interface {
	// EnsureAppConfig returns the stored app config, writing the default
	// when none is stored or the stored one no longer validates.
	EnsureAppConfig(ctx context.Context) (model.AppConfig, error)
	// UpdateAppConfig validates and stores cfg.
	UpdateAppConfig(ctx context.Context, cfg model.AppConfig) error
	// RawAppConfig returns the stored JSON as is, or the default when absent.
	RawAppConfig(ctx context.Context) (json.RawMessage, error)

	// CreateJobRun inserts run with status running and returns it with its ID set.
	CreateJobRun(ctx context.Context, run model.JobRun) (model.JobRun, error)
	// FinishJobRun writes the terminal fields of a run.
	// Returns ErrNotFound if the run is unknown.
	FinishJobRun(ctx context.Context, id string, u model.JobRunUpdate) error
	// ListJobRuns returns the most recent runs first.
	ListJobRuns(ctx context.Context, limit int) ([]model.JobRun, error)

	// PreviousRanks maps role|class|spec to rank in the latest snapshot of mode.
	PreviousRanks(ctx context.Context, mode model.Mode) (map[string]int, error)
	// SaveSnapshot writes the snapshot and all of its rows atomically.
	SaveSnapshot(ctx context.Context, w model.SnapshotWrite) error

	// LatestSnapshotView returns the newest snapshot of mode with its specs.
	// Returns ErrNotFound if mode has no snapshot.
	LatestSnapshotView(ctx context.Context, mode model.Mode) (model.SnapshotView, error)
	// SnapshotView returns one snapshot with its specs.
	SnapshotView(ctx context.Context, id string) (model.SnapshotView, error)
	// ListSnapshots returns snapshot headers newest first, optionally for one mode.
	ListSnapshots(ctx context.Context, mode *model.Mode, limit int) ([]model.Snapshot, error)
	// CountSnapshots returns the number of stored snapshots across modes.
	CountSnapshots(ctx context.Context) (int, error)

	Close() error
}

// Backend names a storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
	BackendMemory   Backend = "memory"
)

// Open returns the store for backend. SQL backends are migrated before use.
func Open(ctx context.Context, backend Backend, dsn string, opts ...Option) (Store, error) {
	if backend == BackendMemory {
		return NewMemoryStore(opts...), nil
	}
	return OpenSQL(ctx, backend, dsn, opts...)
}
