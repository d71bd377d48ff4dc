package fallback

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SafeString returns a trimmed string or the provided fallback.
func SafeString(value interface{}, fallback string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallback
}

// FirstString returns the first non-blank string among the given keys of m.
func FirstString(m map[string]interface{}, fallback string, keys ...string) string {
	for _, key := range keys {
		if s := SafeString(m[key], ""); s != "" {
			return s
		}
	}
	return fallback
}

// SafeInt converts common number shapes into int with a fallback.
// Negative values are kept (vote tallies can go below zero).
func SafeInt(value interface{}, fallback int) int {
	n, ok := toInt64(value)
	if !ok {
		return fallback
	}
	return int(n)
}

// SafeTimestamp converts a millisecond timestamp into int64; non-positive values use the fallback.
func SafeTimestamp(value interface{}, fallback int64) int64 {
	n, ok := toInt64(value)
	if !ok || n <= 0 {
		return fallback
	}
	return n
}

// SafeAspectRatio provides a sane default aspect ratio.
func SafeAspectRatio(value interface{}) string {
	return SafeString(value, "1:1")
}

// SafeStrings converts a JSON array into a string slice, skipping non-string items.
func SafeStrings(value interface{}) []string {
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
