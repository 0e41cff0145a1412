package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GetStringParam safely gets a string parameter from arguments.
// Numeric values are converted to strings.
func GetStringParam(arguments map[string]interface{}, key string, required bool) (string, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return "", fmt.Errorf("missing required argument: %s", key)
		}
		return "", nil
	}

	switch v := val.(type) {
	case string:
		if required && strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("missing required argument: %s", key)
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("invalid type for argument %s: expected string or number, got %T", key, val)
	}
}

// GetObjectParam safely gets a map/object parameter from arguments.
// A string holding a JSON object is decoded.
func GetObjectParam(arguments map[string]interface{}, key string, required bool) (map[string]interface{}, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return nil, fmt.Errorf("missing required argument: %s", key)
		}
		return nil, nil
	}

	switch v := val.(type) {
	case map[string]interface{}:
		return v, nil
	case string:
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, fmt.Errorf("invalid type for argument %s: expected object", key)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("invalid type for argument %s: expected object", key)
}

// GetIntParam safely gets an integer parameter from arguments
func GetIntParam(arguments map[string]interface{}, key string, required bool) (int, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return 0, fmt.Errorf("missing required argument: %s", key)
		}
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for argument %s: %q is not a number", key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid type for argument %s: expected number or string, got %T", key, val)
	}
}

// GetFloatParam safely gets a float parameter from arguments
func GetFloatParam(arguments map[string]interface{}, key string, required bool) (float64, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return 0, fmt.Errorf("missing required argument: %s", key)
		}
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid value for argument %s: %q is not a number", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("invalid type for argument %s: expected number, got %T", key, val)
	}
}

// GetBoolParam safely gets a boolean parameter from arguments
func GetBoolParam(arguments map[string]interface{}, key string, required bool) (bool, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return false, fmt.Errorf("missing required argument: %s", key)
		}
		return false, nil
	}

	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("invalid type for argument %s: expected boolean or string, got %T", key, val)
	}
}

// GetBoolParamDefault returns def when the argument is absent.
func GetBoolParamDefault(arguments map[string]interface{}, key string, def bool) (bool, error) {
	if _, ok := arguments[key]; !ok {
		return def, nil
	}
	return GetBoolParam(arguments, key, false)
}

// GetArrayParam safely gets an array parameter from arguments
func GetArrayParam(arguments map[string]interface{}, key string, required bool) ([]interface{}, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return nil, fmt.Errorf("missing required argument: %s", key)
		}
		return nil, nil
	}

	arr, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid type for argument %s: expected array", key)
	}

	return arr, nil
}

// GetStringArrayParam safely gets a string array parameter from arguments.
// A single string is accepted as a one-element array.
func GetStringArrayParam(arguments map[string]interface{}, key string, required bool) ([]string, error) {
	if s, ok := arguments[key].(string); ok {
		if s == "" {
			return GetStringArrayParam(map[string]interface{}{}, key, required)
		}
		return []string{s}, nil
	}
	arr, err := GetArrayParam(arguments, key, required)
	if err != nil {
		return nil, err
	}
	if arr == nil {
		return nil, nil
	}

	result := make([]string, 0, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("invalid type for element %d of argument %s: expected string", i, key)
		}
		result = append(result, s)
	}

	return result, nil
}
