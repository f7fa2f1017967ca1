package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/tidwall/gjson"
)

// LoadFixture reads dir/name and converts its rows into entries of mode.
// Dungeon rows carry keyLevel and timed; raid rows carry parse.
func LoadFixture(dir, name string, mode model.Mode) ([]model.PerformanceEntry, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFixture, path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrFixture, path)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: %s must hold an array", ErrFixture, path)
	}

	metric := numberField("parse")
	if mode == model.ModeMythicPlus {
		metric = numberField("keyLevel")
	}

	var (
		entries []model.PerformanceEntry
		rowErr  error
	)
	doc.ForEach(func(idx, row gjson.Result) bool {
		e, err := fixtureEntry(row, mode, metric)
		if err != nil {
			rowErr = fmt.Errorf("%w: %s row %d: %w", ErrFixture, path, idx.Int(), err)
			return false
		}
		entries = append(entries, e)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return entries, nil
}

func fixtureEntry(row gjson.Result, mode model.Mode, metric numberExtractor) (model.PerformanceEntry, error) {
	className := firstString(row, "className")
	specName := firstString(row, "specName")
	if className == "" || specName == "" {
		return model.PerformanceEntry{}, fmt.Errorf("className and specName are required")
	}
	role, ok := roleFromText(firstString(row, "role"))
	if !ok {
		return model.PerformanceEntry{}, fmt.Errorf("unknown role %q", row.Get("role").String())
	}
	value, ok := metric(row)
	if !ok {
		return model.PerformanceEntry{}, fmt.Errorf("missing metric for %s %s", specName, className)
	}

	e := model.PerformanceEntry{
		Mode:        mode,
		Role:        role,
		ClassName:   className,
		SpecName:    specName,
		Metric:      value,
		BuildString: optionalString(firstString(row, "buildString")),
		TalentNodes: talentList(row.Get("talents")),
		Stats:       numericMap(row.Get("stats")),
		EvidenceURL: firstString(row, "evidenceUrl"),
		Raw:         []byte(row.Raw),
	}
	if mode == model.ModeMythicPlus {
		timed := row.Get("timed").Bool()
		e.Timed = &timed
	}
	return e, nil
}
