package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/tierlist/internal/adapters/fetch"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	raiderIONamespace = "raiderio"
	raiderIORunsPath  = "/api/v1/mythic-plus/runs"
)

// RaiderIOSettings configures the Raider.IO provider.
type RaiderIOSettings struct {
	BaseURL string
	Season  string
	Region  string
	Pages   int
}

// RaiderIO reads top dungeon runs and emits one entry per roster member.
type RaiderIO struct {
	base
	settings RaiderIOSettings
	fetcher  Fetcher
}

// NewRaiderIO returns the Raider.IO dungeon provider.
func NewRaiderIO(f Fetcher, s RaiderIOSettings, opts ...Option) *RaiderIO {
	if s.Season == "" {
		s.Season = "current"
	}
	if s.Region == "" {
		s.Region = "world"
	}
	return &RaiderIO{base: newBase("provider.raiderio", opts), settings: s, fetcher: f}
}

// Name implements Provider.
func (r *RaiderIO) Name() string { return SourceRaiderIO }

// Mode implements Provider.
func (r *RaiderIO) Mode() model.Mode { return model.ModeMythicPlus }

// FetchEntries implements Provider.
func (r *RaiderIO) FetchEntries(ctx context.Context, cfg model.AppConfig) ([]model.PerformanceEntry, error) {
	if r.mock {
		entries, err := LoadFixture(r.fixtureDir, FixtureMythicPlus, model.ModeMythicPlus)
		if err != nil {
			return nil, err
		}
		metrics.RecordProviderEntries(r.Name(), len(entries))
		return entries, nil
	}

	policy := fetch.PolicyFrom(cfg.Fetch)
	pages := max(r.settings.Pages, 1)
	results := make([][]model.PerformanceEntry, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Fetch.APIConcurrency, 1))
	for page := range pages {
		g.Go(func() error {
			body, err := r.fetcher.FetchJSON(gctx, r.pageURL(page), fetch.Request{
				Namespace: raiderIONamespace,
				Policy:    &policy,
			})
			if err != nil {
				return fmt.Errorf("raiderio page %d: %w", page, err)
			}
			results[page] = r.parseRuns(body)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []model.PerformanceEntry
	for _, rows := range results {
		entries = append(entries, rows...)
	}
	metrics.RecordProviderEntries(r.Name(), len(entries))
	r.log.Info(ctx, "runs fetched", logger.Int("pages", pages), logger.Int("entries", len(entries)))
	return entries, nil
}

func (r *RaiderIO) pageURL(page int) string {
	q := url.Values{}
	q.Set("season", r.settings.Season)
	q.Set("region", r.settings.Region)
	q.Set("page", strconv.Itoa(page))
	return strings.TrimRight(r.settings.BaseURL, "/") + raiderIORunsPath + "?" + q.Encode()
}

func (r *RaiderIO) parseRuns(body []byte) []model.PerformanceEntry {
	doc := gjson.ParseBytes(body)
	runs := doc.Get("runs")
	if !runs.IsArray() {
		runs = doc.Get("results")
	}

	var entries []model.PerformanceEntry
	runs.ForEach(func(_, item gjson.Result) bool {
		// Ranked results wrap the run object.
		run := item
		if inner := item.Get("run"); inner.IsObject() {
			run = inner
		}
		level, ok := firstNumber(run, []numberExtractor{numberField("mythic_level"), numberField("key_level")})
		if !ok || level <= 0 {
			return true
		}
		timed := firstBool(run, []boolExtractor{boolField("is_completed_within_time"), boolField("timed")})

		roster := run.Get("characters")
		if !roster.IsArray() {
			roster = run.Get("roster")
		}
		roster.ForEach(func(_, member gjson.Result) bool {
			if e, ok := r.parseMember(run, member, level, timed); ok {
				entries = append(entries, e)
			}
			return true
		})
		return true
	})
	return entries
}

func (r *RaiderIO) parseMember(run, member gjson.Result, level float64, timed *bool) (model.PerformanceEntry, bool) {
	// Roster entries either are the character or wrap it.
	char := member
	if inner := member.Get("character"); inner.IsObject() {
		char = inner
	}
	className := firstString(char, "class_name", "class", "class.name")
	specName := firstString(char, "spec_name", "spec", "spec.name")
	if className == "" || specName == "" {
		return model.PerformanceEntry{}, false
	}
	role, ok := resolveRole(firstString(member, "role", "character.role", "spec.role"), specName)
	if !ok {
		role, ok = resolveRole(firstString(char, "role", "spec.role"), specName)
	}
	if !ok {
		return model.PerformanceEntry{}, false
	}

	evidence := firstString(char, "profile_url")
	if evidence == "" {
		evidence = firstString(run, "run_url", "url")
	}
	if evidence == "" {
		evidence = strings.TrimRight(r.settings.BaseURL, "/")
	}

	return model.PerformanceEntry{
		Mode:        model.ModeMythicPlus,
		Role:        role,
		ClassName:   className,
		SpecName:    specName,
		Metric:      level,
		Timed:       timed,
		BuildString: optionalString(firstString(char, "talent_build")),
		TalentNodes: talentList(char.Get("talents")),
		Stats:       numericMap(char.Get("secondary_stats")),
		EvidenceURL: evidence,
		Raw:         []byte(run.Raw),
	}, true
}
