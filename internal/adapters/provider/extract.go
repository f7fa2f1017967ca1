package provider

import (
	"math"
	"strings"
	"unicode"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/tidwall/gjson"
)

// numberExtractor reads one candidate metric from a row.
type numberExtractor func(row gjson.Result) (float64, bool)

// boolExtractor reads one candidate flag from a row.
type boolExtractor func(row gjson.Result) (bool, bool)

func numberField(path string) numberExtractor {
	return func(row gjson.Result) (float64, bool) {
		v := row.Get(path)
		if v.Type != gjson.Number {
			return 0, false
		}
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
}

func boolField(path string) boolExtractor {
	return func(row gjson.Result) (bool, bool) {
		v := row.Get(path)
		if !v.IsBool() {
			return false, false
		}
		return v.Bool(), true
	}
}

// metricExtractors lists the ranking fields that may carry the metric, in
// priority order.
var metricExtractors = []numberExtractor{
	numberField("amount"),
	numberField("total"),
	numberField("parsePercent"),
	numberField("score"),
	numberField("playerScore"),
	numberField("playerscore"),
	numberField("dps"),
	numberField("hps"),
	numberField("tankhps"),
	numberField("metric"),
}

// timedExtractors lists the fields that may report an in-time completion.
var timedExtractors = []boolExtractor{
	boolField("completedWithinTime"),
	boolField("completeInTime"),
	boolField("timed"),
	boolField("inTime"),
	boolField("wasCompletedInTime"),
}

// firstNumber returns the first finite value produced by extractors.
func firstNumber(row gjson.Result, extractors []numberExtractor) (float64, bool) {
	for _, ex := range extractors {
		if v, ok := ex(row); ok {
			return v, true
		}
	}
	return 0, false
}

// firstBool returns the first present flag, or nil when none is present.
func firstBool(row gjson.Result, extractors []boolExtractor) *bool {
	for _, ex := range extractors {
		if v, ok := ex(row); ok {
			return &v
		}
	}
	return nil
}

// firstString returns the first non-empty string value among paths.
func firstString(row gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := row.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// resolveRole uses the explicit role when it names one, else the spec table.
func resolveRole(explicit, specName string) (model.Role, bool) {
	if r, ok := roleFromText(explicit); ok {
		return r, true
	}
	r, ok := specRoles[stripSpaces(specName)]
	return r, ok
}

func roleFromText(s string) (model.Role, bool) {
	u := strings.ToUpper(s)
	switch {
	case u == "":
		return "", false
	case strings.Contains(u, "TANK"):
		return model.RoleTank, true
	case strings.Contains(u, "HEAL"):
		return model.RoleHealer, true
	case strings.Contains(u, "DPS"), strings.Contains(u, "DAMAGE"):
		return model.RoleDPS, true
	default:
		return "", false
	}
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// numericMap returns the finite numeric members of an object, or nil.
func numericMap(v gjson.Result) map[string]float64 {
	if !v.IsObject() {
		return nil
	}
	out := make(map[string]float64)
	v.ForEach(func(k, val gjson.Result) bool {
		if val.Type == gjson.Number {
			if f := val.Float(); !math.IsNaN(f) && !math.IsInf(f, 0) {
				out[k.String()] = f
			}
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// talentList accepts ["node", ...] or [{"talentID": 1}, {"id": 2}, ...].
func talentList(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	v.ForEach(func(_, t gjson.Result) bool {
		switch {
		case t.Type == gjson.String && t.Str != "":
			out = append(out, t.Str)
		case t.IsObject():
			if id := firstScalar(t, "talentID", "id", "name"); id != "" {
				out = append(out, id)
			}
		case t.Type == gjson.Number:
			out = append(out, t.Raw)
		}
		return true
	})
	return out
}

func firstScalar(row gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := row.Get(p)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
		if v.Type == gjson.Number {
			return v.Raw
		}
	}
	return ""
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
