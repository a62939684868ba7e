package mcp

import (
	"strconv"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// argString/argInt/argBool pull a typed value out of a loosely-typed
// JSON-RPC arguments map. No schema library, just narrow type switches
// with a sensible zero default.
func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func argInt(args map[string]interface{}, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

func argBool(args map[string]interface{}, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

func argStringSlice(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return splitCommaList(s)
	}
	return nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFilters accepts either a raw models.Filters-shaped map (from
// filters.year_min etc.) or the composite comma-separated string form
// (e.g. "year:2015-2024,age:child,sex:f"). In the string form, unknown
// keys are appended to Warnings rather than rejected; the map form
// ignores keys it does not recognize.
func parseFilters(raw interface{}) models.Filters {
	switch v := raw.(type) {
	case string:
		return parseFiltersString(v)
	case map[string]interface{}:
		return parseFiltersMap(v)
	default:
		return models.Filters{}
	}
}

func parseFiltersMap(m map[string]interface{}) models.Filters {
	var f models.Filters
	if ymin, ok := m["year_min"]; ok {
		if n := toInt(ymin); n != 0 {
			v := n
			f.YearMin = &v
		}
	}
	if ymax, ok := m["year_max"]; ok {
		if n := toInt(ymax); n != 0 {
			v := n
			f.YearMax = &v
		}
	}
	if s, ok := m["age_group"].(string); ok {
		f.AgeGroup = s
	}
	if s, ok := m["sex"].(string); ok {
		f.Sex = s
	}
	if s, ok := m["species"].(string); ok {
		f.Species = s
	}
	if s, ok := m["language"].(string); ok {
		f.Language = s
	}
	if s, ok := m["clinical_query"].(string); ok {
		f.ClinicalKind = s
	}
	if s, ok := m["min_citations"]; ok {
		if n := toInt(s); n != 0 {
			v := n
			f.MinCitations = &v
		}
	}
	return f
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return 0
}

// parseFiltersString parses the composite comma-separated form:
// "year:Y-Y, age:<group>, sex:<f/m>, species:<humans/...>,
// lang:<english/...>, clinical:<therapy/diagnosis/...>".
func parseFiltersString(s string) models.Filters {
	var f models.Filters
	for _, tok := range splitCommaList(s) {
		key, val, ok := splitKV(tok)
		if !ok {
			f.Warnings = append(f.Warnings, "unrecognized filter token: "+tok)
			continue
		}
		switch key {
		case "year":
			lo, hi, ok := splitRange(val)
			if !ok {
				f.Warnings = append(f.Warnings, "malformed year range: "+val)
				continue
			}
			f.YearMin = &lo
			f.YearMax = &hi
		case "age":
			f.AgeGroup = val
		case "sex":
			f.Sex = val
		case "species":
			f.Species = val
		case "lang":
			f.Language = val
		case "clinical":
			f.ClinicalKind = val
		default:
			f.Warnings = append(f.Warnings, "unknown filter key: "+key)
		}
	}
	return f
}

// SearchOptions are the `options` boolean flags for unified_search.
type SearchOptions struct {
	Preprints     bool
	Shallow       bool
	NoPeerReview  bool
	NoOA          bool
	NoAnalysis    bool
	NoScores      bool
	NoRelax       bool
	Warnings      []string
}

// parseOptions accepts either a map of booleans or the composite
// comma-separated flag-string form ("preprints,shallow,no_oa").
func parseOptions(raw interface{}) SearchOptions {
	switch v := raw.(type) {
	case string:
		return parseOptionsString(v)
	case map[string]interface{}:
		return parseOptionsMap(v)
	default:
		return SearchOptions{}
	}
}

func parseOptionsMap(m map[string]interface{}) SearchOptions {
	get := func(key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	return SearchOptions{
		Preprints:    get("preprints"),
		Shallow:      get("shallow"),
		NoPeerReview: get("all_types") || get("no_peer_review"),
		NoOA:         get("no_oa"),
		NoAnalysis:   get("no_analysis"),
		NoScores:     get("no_scores"),
		NoRelax:      get("no_relax"),
	}
}

func parseOptionsString(s string) SearchOptions {
	var opts SearchOptions
	for _, tok := range splitCommaList(s) {
		switch strings.TrimSpace(tok) {
		case "preprints":
			opts.Preprints = true
		case "shallow":
			opts.Shallow = true
		case "all_types", "no_peer_review":
			opts.NoPeerReview = true
		case "no_oa":
			opts.NoOA = true
		case "no_analysis":
			opts.NoAnalysis = true
		case "no_scores":
			opts.NoScores = true
		case "no_relax":
			opts.NoRelax = true
		default:
			opts.Warnings = append(opts.Warnings, "unknown option flag: "+tok)
		}
	}
	return opts
}

func splitKV(tok string) (key, val string, ok bool) {
	idx := strings.Index(tok, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(tok[:idx]), strings.TrimSpace(tok[idx+1:]), true
}

func splitRange(s string) (lo, hi int, ok bool) {
	idx := strings.Index(s, "-")
	if idx < 0 {
		return 0, 0, false
	}
	loN, err1 := strconv.Atoi(strings.TrimSpace(s[:idx]))
	hiN, err2 := strconv.Atoi(strings.TrimSpace(s[idx+1:]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return loN, hiN, true
}
