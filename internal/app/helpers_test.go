package app_test

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// stubProvider returns fixed entries for one mode.
type stubProvider struct {
	mu      sync.Mutex
	name    string
	mode    model.Mode
	entries []model.PerformanceEntry
	err     error
	calls   int
}

func (p *stubProvider) Name() string     { return p.name }
func (p *stubProvider) Mode() model.Mode { return p.mode }

func (p *stubProvider) FetchEntries(ctx context.Context, _ model.AppConfig) ([]model.PerformanceEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.entries, p.err
}

func (p *stubProvider) set(entries []model.PerformanceEntry) {
	p.mu.Lock()
	p.entries = entries
	p.mu.Unlock()
}

func boolPtr(b bool) *bool { return &b }

// runs builds n dungeon entries of one spec at key level.
func runs(role model.Role, class, spec string, n int, level float64, timed *bool) []model.PerformanceEntry {
	out := make([]model.PerformanceEntry, n)
	for i := range out {
		out[i] = model.PerformanceEntry{
			Mode:        model.ModeMythicPlus,
			Role:        role,
			ClassName:   class,
			SpecName:    spec,
			Metric:      level,
			Timed:       timed,
			EvidenceURL: "https://example.test/run/" + spec + "/" + strconv.Itoa(i),
		}
	}
	return out
}

// parses builds n raid entries of one spec with the given metric.
func parses(role model.Role, class, spec string, n int, metric float64) []model.PerformanceEntry {
	out := make([]model.PerformanceEntry, n)
	for i := range out {
		out[i] = model.PerformanceEntry{
			Mode:      model.ModeRaid,
			Role:      role,
			ClassName: class,
			SpecName:  spec,
			Metric:    metric,
		}
	}
	return out
}

func concat(groups ...[]model.PerformanceEntry) []model.PerformanceEntry {
	var out []model.PerformanceEntry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// stepClock returns a clock advancing by step on each call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func findSpec(v *model.SnapshotView, spec string) *model.SpecView {
	for i := range v.Specs {
		if v.Specs[i].SpecName == spec {
			return &v.Specs[i]
		}
	}
	return nil
}
