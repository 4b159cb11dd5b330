package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// decodeArgs unmarshals a JSON object argument string into dst.
func decodeArgs(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// stringArg extracts a single string argument. Models send either a JSON
// object ({"city": "Lucknow"}), a JSON string ("Lucknow") or bare text
// (Lucknow); all three are accepted.
func stringArg(raw, key string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", fmt.Errorf("missing argument %q", key)
	case strings.HasPrefix(raw, "{"):
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		v, ok := obj[key]
		if !ok {
			// Some models use a generic key for single-argument tools.
			v, ok = obj["input"]
		}
		s, isString := v.(string)
		if !ok || !isString || strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("missing argument %q", key)
		}
		return s, nil
	case strings.HasPrefix(raw, `"`):
		s, err := strconv.Unquote(raw)
		if err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return s, nil
	default:
		return raw, nil
	}
}
