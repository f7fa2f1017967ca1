package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/tierlist/internal/adapters/fetch"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const zoneQuery = `query Zone($zoneID: Int!) {
  worldData {
    zone(id: $zoneID) {
      encounters { id name }
    }
  }
}`

const raidRankingsQuery = `query Rankings($encounterID: Int!, $difficulty: Int!, $page: Int!) {
  worldData {
    encounter(id: $encounterID) {
      characterRankings(difficulty: $difficulty, partition: 1, page: $page, includeCombatantInfo: true)
    }
  }
}`

const dungeonRankingsQuery = `query Rankings($encounterID: Int!, $difficulty: Int!, $bracket: Int!, $page: Int!) {
  worldData {
    encounter(id: $encounterID) {
      characterRankings(difficulty: $difficulty, bracket: $bracket, partition: 1, page: $page, includeCombatantInfo: true)
    }
  }
}`

const rankingsPath = "data.worldData.encounter.characterRankings.rankings"

// WarcraftLogsSettings configures one Warcraft Logs provider.
type WarcraftLogsSettings struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ZoneID       int
	Difficulty   int
	// Bracket is only sent for dungeon rankings.
	Bracket int
	Pages   int
}

// WarcraftLogs reads character rankings through the v2 GraphQL API.
type WarcraftLogs struct {
	base
	mode     model.Mode
	settings WarcraftLogsSettings
	fetcher  Fetcher
}

// NewWarcraftLogsRaid returns the raid rankings provider.
func NewWarcraftLogsRaid(f Fetcher, s WarcraftLogsSettings, opts ...Option) *WarcraftLogs {
	return &WarcraftLogs{base: newBase("provider.warcraftlogs", opts), mode: model.ModeRaid, settings: s, fetcher: f}
}

// NewWarcraftLogsMythicPlus returns the dungeon rankings provider.
func NewWarcraftLogsMythicPlus(f Fetcher, s WarcraftLogsSettings, opts ...Option) *WarcraftLogs {
	return &WarcraftLogs{base: newBase("provider.warcraftlogs", opts), mode: model.ModeMythicPlus, settings: s, fetcher: f}
}

// Name implements Provider.
func (w *WarcraftLogs) Name() string {
	if w.mode == model.ModeMythicPlus {
		return SourceWarcraftLogsMythicPlus
	}
	return SourceWarcraftLogs
}

// Mode implements Provider.
func (w *WarcraftLogs) Mode() model.Mode { return w.mode }

// FetchEntries implements Provider.
func (w *WarcraftLogs) FetchEntries(ctx context.Context, cfg model.AppConfig) ([]model.PerformanceEntry, error) {
	if w.mock {
		name := FixtureRaid
		if w.mode == model.ModeMythicPlus {
			name = FixtureMythicPlus
		}
		entries, err := LoadFixture(w.fixtureDir, name, w.mode)
		if err != nil {
			return nil, err
		}
		metrics.RecordProviderEntries(w.Name(), len(entries))
		return entries, nil
	}
	if err := requireCredentials(w.settings.ClientID, w.settings.ClientSecret); err != nil {
		return nil, fmt.Errorf("warcraftlogs: %w", err)
	}

	policy := fetch.PolicyFrom(cfg.Fetch)
	token, err := accessToken(ctx, w.fetcher, w.settings.BaseURL, w.settings.ClientID, w.settings.ClientSecret, policy)
	if err != nil {
		return nil, err
	}

	encounters, err := w.encounters(ctx, token, policy)
	if err != nil {
		return nil, err
	}
	if len(encounters) == 0 {
		w.log.Warn(ctx, "zone has no encounters", logger.Int("zone_id", w.settings.ZoneID), logger.String("mode", string(w.mode)))
		return nil, nil
	}

	type job struct {
		encounter int
		page      int
	}
	pages := max(w.settings.Pages, 1)
	jobs := make([]job, 0, len(encounters)*pages)
	for _, id := range encounters {
		for p := 1; p <= pages; p++ {
			jobs = append(jobs, job{encounter: id, page: p})
		}
	}

	results := make([][]model.PerformanceEntry, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Fetch.APIConcurrency, 1))
	for i, j := range jobs {
		g.Go(func() error {
			rows, err := w.rankings(gctx, token, j.encounter, j.page, policy)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []model.PerformanceEntry
	for _, r := range results {
		entries = append(entries, r...)
	}
	metrics.RecordProviderEntries(w.Name(), len(entries))
	w.log.Info(ctx, "rankings fetched",
		logger.String("mode", string(w.mode)),
		logger.Int("encounters", len(encounters)),
		logger.Int("entries", len(entries)))
	return entries, nil
}

func (w *WarcraftLogs) namespace(kind string) string {
	if w.mode == model.ModeMythicPlus {
		return "wcl-mplus-" + kind
	}
	return "wcl-" + kind
}

func (w *WarcraftLogs) encounters(ctx context.Context, token string, policy fetch.Policy) ([]int, error) {
	body, err := w.graphql(ctx, token, zoneQuery, map[string]int{"zoneID": w.settings.ZoneID}, w.namespace("zone"), policy)
	if err != nil {
		return nil, fmt.Errorf("zone %d: %w", w.settings.ZoneID, err)
	}
	var ids []int
	gjson.GetBytes(body, "data.worldData.zone.encounters").ForEach(func(_, e gjson.Result) bool {
		if id := e.Get("id"); id.Type == gjson.Number {
			ids = append(ids, int(id.Int()))
		}
		return true
	})
	return ids, nil
}

func (w *WarcraftLogs) rankings(ctx context.Context, token string, encounter, page int, policy fetch.Policy) ([]model.PerformanceEntry, error) {
	query := raidRankingsQuery
	vars := map[string]int{"encounterID": encounter, "difficulty": w.settings.Difficulty, "page": page}
	if w.mode == model.ModeMythicPlus {
		query = dungeonRankingsQuery
		vars["bracket"] = w.settings.Bracket
	}
	ns := fmt.Sprintf("%s-%d-%d", w.namespace("rankings"), encounter, page)
	body, err := w.graphql(ctx, token, query, vars, ns, policy)
	if err != nil {
		return nil, fmt.Errorf("encounter %d page %d: %w", encounter, page, err)
	}

	rows := gjson.GetBytes(body, rankingsPath)
	if !rows.IsArray() {
		if errs := gjson.GetBytes(body, "errors"); errs.Exists() {
			w.log.Warn(ctx, "graphql errors", logger.Int("encounter", encounter), logger.String("errors", errs.Raw))
		}
		return nil, nil
	}

	var entries []model.PerformanceEntry
	rows.ForEach(func(_, row gjson.Result) bool {
		if e, ok := w.parseRow(row); ok {
			entries = append(entries, e)
		}
		return true
	})
	return entries, nil
}

func (w *WarcraftLogs) graphql(ctx context.Context, token, query string, vars map[string]int, ns string, policy fetch.Policy) ([]byte, error) {
	payload, err := json.Marshal(struct {
		Query     string         `json:"query"`
		Variables map[string]int `json:"variables"`
	}{Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}
	return w.fetcher.FetchJSON(ctx, strings.TrimRight(w.settings.BaseURL, "/")+"/api/v2/client", fetch.Request{
		Method: "POST",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + token,
		},
		Body:      payload,
		Namespace: ns,
		Policy:    &policy,
	})
}

// parseRow drops rows without class, spec, role or a finite metric.
func (w *WarcraftLogs) parseRow(row gjson.Result) (model.PerformanceEntry, bool) {
	className := firstString(row, "className", "class")
	specName := firstString(row, "specName", "spec")
	if className == "" || specName == "" {
		return model.PerformanceEntry{}, false
	}
	role, ok := resolveRole(firstString(row, "role"), specName)
	if !ok {
		return model.PerformanceEntry{}, false
	}
	metric, ok := firstNumber(row, metricExtractors)
	if !ok {
		return model.PerformanceEntry{}, false
	}

	stats := numericMap(row.Get("combatantInfo.secondaryStats"))
	if stats == nil {
		stats = numericMap(row.Get("combatantInfo.stats"))
	}

	e := model.PerformanceEntry{
		Mode:        w.mode,
		Role:        role,
		ClassName:   className,
		SpecName:    specName,
		Metric:      metric,
		BuildString: optionalString(firstString(row, "talentTree")),
		TalentNodes: talentList(row.Get("talents")),
		Stats:       stats,
		EvidenceURL: w.evidenceURL(row),
		Raw:         []byte(row.Raw),
	}
	if w.mode == model.ModeMythicPlus {
		e.Timed = firstBool(row, timedExtractors)
	}
	return e, true
}

// evidenceURL links the ranked character's report when both the report code
// and the character id are known, and the site root otherwise.
func (w *WarcraftLogs) evidenceURL(row gjson.Result) string {
	baseURL := strings.TrimRight(w.settings.BaseURL, "/")
	report := firstString(row, "report.code", "reportID")
	source := firstScalar(row, "id", "characterID")
	if report == "" || source == "" {
		return baseURL
	}
	return baseURL + "/reports/" + report + "#fight=last&type=summary&source=" + source
}
