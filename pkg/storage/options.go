package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Options values come from YAML, JSON or DBB_* env vars, so scalars may arrive
// as strings, ints or float64s. The helpers below normalise them.

// StringOption returns options[key] as a string, or def when absent
func StringOption(options map[string]interface{}, key, def string) string {
	v, ok := options[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// BoolOption returns options[key] as a bool, or def when absent
func BoolOption(options map[string]interface{}, key string, def bool) (bool, error) {
	switch v := options[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: option %s: %q is not a boolean", ErrInvalidConfig, key, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: option %s has unsupported type %T", ErrInvalidConfig, key, v)
	}
}

// IntOption returns options[key] as an int, or def when absent
func IntOption(options map[string]interface{}, key string, def int) (int, error) {
	switch v := options[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: option %s: %q is not a number", ErrInvalidConfig, key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: option %s has unsupported type %T", ErrInvalidConfig, key, v)
	}
}
