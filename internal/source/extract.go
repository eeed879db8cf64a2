package source

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractValue normalizes a numeric value from the shapes providers emit.
//
// StatsBomb and Transfermarkt deliver flat numbers or numeric strings.
// SkillCorner occasionally nests aggregates like {"total": 10432.5, "p90": ...}.
// This handles all of them, extracting the aggregate.
//
// Returns the scalar float64 value, and ok=false if not extractable.
func ExtractValue(val interface{}) (float64, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
		return 0, false
	case map[string]interface{}:
		for _, key := range []string{"total", "all", "count", "average"} {
			if inner, exists := v[key]; exists && inner != nil {
				return ExtractValue(inner)
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// ExtractString returns a trimmed textual form of val, or "" when val is
// nil or blank.
func ExtractString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// FirstValue returns the first non-nil attribute among keys. Providers
// rename fields between API versions (SkillCorner 2024+ appends
// "_full_all"), so callers list every known spelling.
func FirstValue(attrs map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := attrs[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// FirstFloat is FirstValue followed by ExtractValue.
func FirstFloat(attrs map[string]interface{}, keys ...string) (float64, bool) {
	v, ok := FirstValue(attrs, keys...)
	if !ok {
		return 0, false
	}
	return ExtractValue(v)
}
