package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tierlist/internal/adapters/repository"
	"github.com/okian/tierlist/internal/domain/derive"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/internal/domain/tiering"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
)

// SnapshotStore is the part of repository.Store the persister writes to.
type SnapshotStore interface {
	PreviousRanks(ctx context.Context, mode model.Mode) (map[string]int, error)
	SaveSnapshot(ctx context.Context, w model.SnapshotWrite) error
}

var _ SnapshotStore = (repository.Store)(nil)

// Persister turns scored aggregates into one ranked, tiered snapshot.
type Persister struct {
	store SnapshotStore
	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithPersistClock overrides the snapshot timestamp source.
func WithPersistClock(now func() time.Time) PersisterOption {
	return func(p *Persister) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides the id source of snapshot rows.
func WithIDGenerator(gen func() string) PersisterOption {
	return func(p *Persister) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// NewPersister creates a Persister over store.
func NewPersister(store SnapshotStore, opts ...PersisterOption) *Persister {
	p := &Persister{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		log:   logger.Get().Named("persist"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PersistSnapshot ranks specs within each role, assigns tiers, derives builds
// and stat priorities and writes everything as one snapshot. It returns the
// number of spec rows written.
func (p *Persister) PersistSnapshot(
	ctx context.Context,
	mode model.Mode,
	specs []model.SpecAggregate,
	cfg model.AppConfig,
	meta model.SnapshotMetadata,
) (int, error) {
	start := p.now()

	previous, err := p.store.PreviousRanks(ctx, mode)
	if err != nil {
		return 0, fmt.Errorf("load previous ranks: %w", err)
	}

	snap := model.Snapshot{
		ID:        p.newID(),
		Mode:      mode,
		CreatedAt: start.UTC(),
		Metadata:  meta,
	}
	w := model.SnapshotWrite{
		Snapshot: snap,
		Scores:   make([]model.SpecScore, 0, len(specs)),
		Builds:   make([]model.SpecBuild, 0, len(specs)),
		Stats:    make([]model.SpecStats, 0, len(specs)),
	}

	topN := topNFor(mode, cfg)
	for _, role := range model.Roles {
		ranked := rankRole(specs, role)
		for i, spec := range ranked {
			score, build, stats, err := p.rows(snap.ID, mode, spec, i+1, previous, cfg, topN)
			if err != nil {
				return 0, err
			}
			w.Scores = append(w.Scores, score)
			w.Builds = append(w.Builds, build)
			w.Stats = append(w.Stats, stats)
		}
	}

	if err := p.store.SaveSnapshot(ctx, w); err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	metrics.RecordSnapshotPersisted(string(mode), len(w.Scores), p.now().Sub(start), snap.CreatedAt)
	p.log.Info(ctx, "snapshot persisted",
		logger.String("snapshotId", snap.ID),
		logger.String("mode", string(mode)),
		logger.Int("specs", len(w.Scores)),
	)
	return len(w.Scores), nil
}

func (p *Persister) rows(
	snapshotID string,
	mode model.Mode,
	spec model.SpecAggregate,
	rank int,
	previous map[string]int,
	cfg model.AppConfig,
	topN int,
) (model.SpecScore, model.SpecBuild, model.SpecStats, error) {
	breakdown, err := json.Marshal(model.ScoreBreakdown{
		ScoreRaw:       spec.RawScore,
		EvidenceURLs:   nonNil(spec.EvidenceURLs),
		RawSampleCount: spec.RawSampleCount,
	})
	if err != nil {
		return model.SpecScore{}, model.SpecBuild{}, model.SpecStats{}, fmt.Errorf("encode breakdown: %w", err)
	}

	build := derive.DeriveMostCommonBuild(spec.TopEntries, topN)
	buildJSON, err := json.Marshal(build)
	if err != nil {
		return model.SpecScore{}, model.SpecBuild{}, model.SpecStats{}, fmt.Errorf("encode build: %w", err)
	}
	stats := derive.DeriveStatPriority(spec.TopEntries, topN)
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return model.SpecScore{}, model.SpecBuild{}, model.SpecStats{}, fmt.Errorf("encode stats: %w", err)
	}

	var prev *int
	if r, ok := previous[spec.Key()]; ok {
		prev = &r
	}

	score := model.SpecScore{
		ID:           p.newID(),
		SnapshotID:   snapshotID,
		Mode:         mode,
		Role:         spec.Role,
		ClassName:    spec.ClassName,
		SpecName:     spec.SpecName,
		Score:        spec.Score,
		Tier:         tiering.AssignTier(spec.Score, cfg.Tiers),
		SampleSize:   spec.SampleSize,
		Rank:         rank,
		PreviousRank: prev,
		RawJSON:      breakdown,
	}
	sb := model.SpecBuild{
		ID:                p.newID(),
		SnapshotID:        snapshotID,
		Mode:              mode,
		Role:              spec.Role,
		ClassName:         spec.ClassName,
		SpecName:          spec.SpecName,
		BuildJSON:         buildJSON,
		BuildSource:       build.BuildSource,
		BuildImportString: build.ImportString(),
	}
	ss := model.SpecStats{
		ID:         p.newID(),
		SnapshotID: snapshotID,
		Mode:       mode,
		Role:       spec.Role,
		ClassName:  spec.ClassName,
		SpecName:   spec.SpecName,
		StatsJSON:  statsJSON,
	}
	return score, sb, ss, nil
}

// rankRole returns the specs of role ordered by score descending. Ties keep
// their input order.
func rankRole(specs []model.SpecAggregate, role model.Role) []model.SpecAggregate {
	var out []model.SpecAggregate
	for _, s := range specs {
		if s.Role == role {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func topNFor(mode model.Mode, cfg model.AppConfig) int {
	if mode == model.ModeRaid {
		return cfg.Raid.TopN
	}
	return cfg.MythicPlus.TopN
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
