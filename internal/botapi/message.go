package botapi

import "fmt"

// NormalizeMessage converts anything an operation may surface into a
// displayable string: strings pass through, errors use their message, maps
// with a string "message" field use that, everything else is stringified.
func NormalizeMessage(v any) string {
	switch m := v.(type) {
	case nil:
		return ""
	case string:
		return m
	case error:
		return m.Error()
	case map[string]any:
		if s, ok := m["message"].(string); ok {
			return s
		}
	case fmt.Stringer:
		return m.String()
	}
	return fmt.Sprintf("%v", v)
}
