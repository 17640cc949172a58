package platform

import "fmt"

// toInt converts the numeric types produced by codecs to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// parseString extracts a string from an any value.
func parseString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// parseBool extracts a bool from an any value.
func parseBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// parseStringSlice extracts a list of strings, failing on any non-string element.
func parseStringSlice(value any) ([]string, bool) {
	items, ok := value.([]any)
	if !ok {
		if s, ok := value.([]string); ok {
			return s, true
		}
		return nil, false
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// parseIntSlice extracts a list of integers, failing on any non-integer element.
func parseIntSlice(value any) ([]int, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, ok := toInt(item)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
