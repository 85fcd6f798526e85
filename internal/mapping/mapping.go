// Package mapping normalizes Tasking Manager mapping-type tokens into the
// canonical category names used by extraction-config templates.
package mapping

import "strings"

// canonicalOrder fixes the ordinal positions: 1=Roads, 2=Buildings,
// 3=Waterways, 4=Landuse. Ordinals are 1-based; 0 is invalid.
var canonicalOrder = []string{"Roads", "Buildings", "Waterways", "Landuse"}

// byName maps Tasking Manager type identifiers to canonical names.
var byName = map[string]string{
	"ROADS":     "Roads",
	"BUILDINGS": "Buildings",
	"WATERWAYS": "Waterways",
	"LAND_USE":  "Landuse",
}

// Normalize translates a single mapping-type token into its canonical
// category name. Tokens are either a 1-based ordinal into the canonical list
// or a case-insensitive type name. Unrecognized tokens return ok=false,
// never an error; callers log and skip them.
func Normalize(token interface{}) (string, bool) {
	switch v := token.(type) {
	case string:
		name, ok := byName[strings.ToUpper(v)]
		return name, ok
	case int:
		return byOrdinal(v)
	case int64:
		return byOrdinal(int(v))
	case float64:
		// JSON numbers decode as float64; only integral values are ordinals
		if v != float64(int(v)) {
			return "", false
		}
		return byOrdinal(int(v))
	}
	return "", false
}

func byOrdinal(ordinal int) (string, bool) {
	idx := ordinal - 1
	if idx < 0 || idx >= len(canonicalOrder) {
		return "", false
	}
	return canonicalOrder[idx], true
}

// NormalizeAll filters a token sequence down to the recognized canonical
// names, preserving input order. Unsupported tokens are dropped.
func NormalizeAll(tokens []interface{}) []string {
	names := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if name, ok := Normalize(token); ok {
			names = append(names, name)
		}
	}
	return names
}
