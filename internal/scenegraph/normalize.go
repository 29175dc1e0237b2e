package scenegraph

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and applies Unicode NFC so that
// visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NormalizeSettings converts a settings bag to its JSON value forms: numbers
// become float64, nested objects map[string]any, arrays []any. A nil bag becomes
// an empty map. Stores serialize settings as JSON, so normalizing on entry keeps
// save/load round trips exact.
func NormalizeSettings(settings map[string]any) (map[string]any, error) {
	if len(settings) == 0 {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("settings are not JSON-serializable: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("settings round trip: %w", err)
	}
	return out, nil
}

// cloneValue deep-copies normalized settings values.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return t
	}
}
