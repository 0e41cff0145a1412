// Package filter implements grep-like predicates over decoded JSON data.
//
// A filter set maps a field name to a condition; all conditions are ANDed.
// Supported conditions:
//
//	{"status": "error"}              equality (numbers compare numerically)
//	{"status": ["error", "down"]}    membership
//	{"name": "~^osd\\."}             case-insensitive regex
//	{"size": ">1000"}                numeric comparison (>=, <=, !=, >, <, =)
//	{"_text": "timeout"}             substring over every string value
//	{"_has": ["error", "host"]}      field existence
//	{"name__contains": "osd"}        suffix operators: contains, gt, gte, lt, lte, ne, regex
package filter

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Pseudo-fields.
const (
	TextField = "_text"
	HasField  = "_has"
)

var suffixOps = map[string]string{
	"contains": "contains",
	"gt":       ">",
	"gte":      ">=",
	"lt":       "<",
	"lte":      "<=",
	"ne":       "!=",
	"regex":    "regex",
}

// comparison operators, longest first
var numericOps = []string{">=", "<=", "!=", ">", "<", "="}

var regexCache sync.Map // pattern -> *regexp.Regexp or nil

// Apply filters data. A list keeps only the map items that match. A single
// map is returned as is when it matches, else as an empty list.
func Apply(data interface{}, filters map[string]interface{}) interface{} {
	if len(filters) == 0 || isEmpty(data) {
		return data
	}

	items, isList := data.([]interface{})
	if !isList {
		items = []interface{}{data}
	}

	filtered := make([]interface{}, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if Matches(obj, filters) {
			filtered = append(filtered, obj)
		}
	}

	if !isList && len(filtered) == 1 {
		return filtered[0]
	}
	return filtered
}

// Matches reports whether obj satisfies every condition.
func Matches(obj map[string]interface{}, filters map[string]interface{}) bool {
	for key, cond := range filters {
		switch key {
		case TextField:
			if !TextSearch(obj, fmt.Sprint(cond)) {
				return false
			}
			continue
		case HasField:
			for _, f := range toStrings(cond) {
				if _, ok := obj[f]; !ok {
					return false
				}
			}
			continue
		}

		field, op := splitSuffix(key)
		value, ok := obj[field]
		if !ok {
			return false
		}
		if op != "" {
			if !matchSuffix(value, op, cond) {
				return false
			}
			continue
		}
		if !matchValue(value, cond) {
			return false
		}
	}
	return true
}

func matchValue(value, cond interface{}) bool {
	switch c := cond.(type) {
	case string:
		if strings.HasPrefix(c, "~") {
			return MatchRegex(value, c[1:])
		}
		if hasNumericOp(c) {
			return CompareNumeric(value, c)
		}
		return equal(value, c)
	case []interface{}:
		for _, v := range c {
			if equal(value, v) {
				return true
			}
		}
		return false
	case []string:
		for _, v := range c {
			if equal(value, v) {
				return true
			}
		}
		return false
	default:
		return equal(value, cond)
	}
}

func matchSuffix(value interface{}, op string, cond interface{}) bool {
	switch op {
	case "contains":
		return strings.Contains(strings.ToLower(stringify(value)), strings.ToLower(stringify(cond)))
	case "regex":
		return MatchRegex(value, stringify(cond))
	case "!=":
		if _, ok := toFloat(cond); ok {
			return CompareNumeric(value, op+stringify(cond))
		}
		return !equal(value, cond)
	default:
		return CompareNumeric(value, op+stringify(cond))
	}
}

// splitSuffix splits "field__op" into the field and the operator it maps to.
// Unknown suffixes leave the key untouched.
func splitSuffix(key string) (string, string) {
	idx := strings.LastIndex(key, "__")
	if idx <= 0 {
		return key, ""
	}
	op, ok := suffixOps[key[idx+2:]]
	if !ok {
		return key, ""
	}
	return key[:idx], op
}

func hasNumericOp(s string) bool {
	for _, op := range numericOps {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

// CompareNumeric evaluates expr, such as ">100" or "<=50", against value.
// Values that are not numeric never match.
func CompareNumeric(value interface{}, expr string) bool {
	v, ok := toFloat(value)
	if !ok {
		return false
	}
	expr = strings.TrimSpace(expr)
	for _, op := range numericOps {
		if !strings.HasPrefix(expr, op) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(expr[len(op):]), 64)
		if err != nil {
			return false
		}
		switch op {
		case ">=":
			return v >= n
		case "<=":
			return v <= n
		case "!=":
			return v != n
		case ">":
			return v > n
		case "<":
			return v < n
		default:
			return v == n
		}
	}
	n, err := strconv.ParseFloat(expr, 64)
	return err == nil && v == n
}

// MatchRegex reports a case-insensitive regex match against the string form
// of value. An invalid pattern matches nothing.
func MatchRegex(value interface{}, pattern string) bool {
	re := compile(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(stringify(value))
}

func compile(pattern string) *regexp.Regexp {
	if cached, ok := regexCache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		regexCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil
	}
	regexCache.Store(pattern, re)
	return re
}

// TextSearch reports whether text occurs, case-insensitively, in any string
// value of item, descending into nested maps and lists.
func TextSearch(item interface{}, text string) bool {
	needle := strings.ToLower(text)
	var walk func(v interface{}) bool
	walk = func(v interface{}) bool {
		switch t := v.(type) {
		case string:
			return strings.Contains(strings.ToLower(t), needle)
		case map[string]interface{}:
			for _, child := range t {
				if walk(child) {
					return true
				}
			}
		case []interface{}:
			for _, child := range t {
				if walk(child) {
					return true
				}
			}
		}
		return false
	}
	return walk(item)
}

func equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if _, ok := toFloat(b); ok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, s := range t {
			out = append(out, fmt.Sprint(s))
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

func isEmpty(data interface{}) bool {
	switch d := data.(type) {
	case nil:
		return true
	case []interface{}:
		return len(d) == 0
	case map[string]interface{}:
		return len(d) == 0
	case string:
		return d == ""
	}
	return false
}
