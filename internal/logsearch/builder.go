package logsearch

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Log record fields used in where predicates.
const (
	FieldUnit      = "_SYSTEMD_UNIT"
	FieldPriority  = "PRIORITY"
	FieldMessage   = "MESSAGE"
	FieldTransport = "_TRANSPORT"
	FieldSyslogID  = "SYSLOG_IDENTIFIER"
	FieldServerID  = "CROIT_SERVER_ID"
	FieldHostname  = "_HOSTNAME"
)

// Logical operators of the where language.
const (
	OpAnd    = "_and"
	OpOr     = "_or"
	OpNot    = "_not"
	OpSearch = "_search"
)

var comparisonOps = map[string]struct{}{
	"_eq": {}, "_neq": {}, "_gt": {}, "_gte": {}, "_lt": {}, "_lte": {},
	"_in": {}, "_nin": {}, "_contains": {}, "_starts_with": {}, "_ends_with": {},
	"_regex": {}, "_exists": {}, "_missing": {},
}

// BuildFlat renders intent as a flat query string. The time clause always
// comes first, followed by services, severities and keywords.
func BuildFlat(intent SearchIntent) string {
	var clauses []string

	if !intent.TimeRange.IsZero() {
		clauses = append(clauses, fmt.Sprintf("_time:[%s, %s]",
			intent.TimeRange.Start.UTC().Format(time.RFC3339),
			intent.TimeRange.End.UTC().Format(time.RFC3339)))
	}

	if c := orClause("service:%s", intent.Services); c != "" {
		clauses = append(clauses, c)
	}

	levels := make([]string, 0, len(intent.Severities))
	for _, s := range intent.Severities {
		levels = append(levels, s.String())
	}
	if c := orClause("level:%s", levels); c != "" {
		clauses = append(clauses, c)
	}

	if c := orClause(`_msg:"%s"`, intent.Keywords); c != "" {
		clauses = append(clauses, c)
	}

	return strings.Join(clauses, " AND ")
}

func orClause(format string, values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf(format, values[0])
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf(format, v))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// BuildWhere renders intent as a nested where predicate. The time range is
// not part of the predicate; it travels in the query envelope.
func BuildWhere(intent SearchIntent) map[string]interface{} {
	var categories []map[string]interface{}

	if len(intent.Services) > 0 {
		leaves := make([]map[string]interface{}, 0, len(intent.Services))
		for _, s := range intent.Services {
			op := "_contains"
			if isUnitName(s) {
				op = "_eq"
			}
			leaves = append(leaves, leaf(FieldUnit, op, s))
		}
		categories = append(categories, anyOf(leaves))
	}

	if len(intent.Severities) > 0 {
		leaves := make([]map[string]interface{}, 0, len(intent.Severities))
		for _, s := range intent.Severities {
			leaves = append(leaves, leaf(FieldPriority, "_eq", int(s)))
		}
		categories = append(categories, anyOf(leaves))
	}

	if len(intent.Keywords) > 0 {
		leaves := make([]map[string]interface{}, 0, len(intent.Keywords))
		for _, k := range intent.Keywords {
			leaves = append(leaves, leaf(FieldMessage, "_contains", k))
		}
		categories = append(categories, anyOf(leaves))
	}

	switch len(categories) {
	case 0:
		return map[string]interface{}{}
	case 1:
		return categories[0]
	}
	return map[string]interface{}{OpAnd: toList(categories)}
}

func isUnitName(s string) bool {
	return strings.Contains(s, "@") || strings.HasSuffix(s, ".service")
}

func leaf(field, op string, value interface{}) map[string]interface{} {
	return map[string]interface{}{field: map[string]interface{}{op: value}}
}

func anyOf(leaves []map[string]interface{}) map[string]interface{} {
	if len(leaves) == 1 {
		return leaves[0]
	}
	return map[string]interface{}{OpOr: toList(leaves)}
}

func toList(maps []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out
}

// MergeSearch folds a full-text search string into where. An existing _and
// list gets the search appended; any other predicate is wrapped.
func MergeSearch(where map[string]interface{}, search string) map[string]interface{} {
	if search == "" {
		return where
	}
	term := map[string]interface{}{OpSearch: search}
	if len(where) == 0 {
		return term
	}

	if and, ok := where[OpAnd].([]interface{}); ok {
		merged := make(map[string]interface{}, len(where))
		for k, v := range where {
			merged[k] = v
		}
		list := make([]interface{}, 0, len(and)+1)
		list = append(list, and...)
		merged[OpAnd] = append(list, term)
		return merged
	}

	return map[string]interface{}{OpAnd: []interface{}{where, term}}
}

// PriorityAtMost returns a where predicate selecting PRIORITY <= max.
func PriorityAtMost(max Severity) map[string]interface{} {
	return leaf(FieldPriority, "_lte", int(max))
}

// ValidateWhere checks that every key of where is a known logical operator
// or a field whose value is a map of known comparison operators.
func ValidateWhere(where map[string]interface{}) error {
	return validateNode(where, "where")
}

func validateNode(node map[string]interface{}, path string) error {
	for _, key := range sortedMapKeys(node) {
		value := node[key]
		at := path + "." + key
		switch key {
		case OpAnd, OpOr:
			list, ok := value.([]interface{})
			if !ok {
				return fmt.Errorf("%s: expected a list of predicates", at)
			}
			for i, item := range list {
				child, ok := item.(map[string]interface{})
				if !ok {
					return fmt.Errorf("%s[%d]: expected an object", at, i)
				}
				if err := validateNode(child, fmt.Sprintf("%s[%d]", at, i)); err != nil {
					return err
				}
			}
		case OpNot:
			child, ok := value.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%s: expected an object", at)
			}
			if err := validateNode(child, at); err != nil {
				return err
			}
		case OpSearch:
			if _, ok := value.(string); !ok {
				return fmt.Errorf("%s: expected a string", at)
			}
		default:
			if strings.HasPrefix(key, "_") && isOperatorLike(key) {
				return fmt.Errorf("%s: unknown operator %q", path, key)
			}
			ops, ok := value.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%s: expected an operator object such as {\"_eq\": ...}", at)
			}
			for _, op := range sortedMapKeys(ops) {
				if _, known := comparisonOps[op]; !known {
					return fmt.Errorf("%s: unknown operator %q", at, op)
				}
			}
		}
	}
	return nil
}

// journald fields such as _SYSTEMD_UNIT start with an underscore too; only
// lower-case names are treated as operators
func isOperatorLike(key string) bool {
	return strings.ToLower(key) == key
}

func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
