// Package logsearch turns natural-language log searches into structured
// queries for the croit log backend, runs them over the streaming channel
// with a fallback to the export channel, and analyzes the returned records.
package logsearch

import (
	"strconv"
	"strings"
)

// Severity is a syslog priority. Lower values are more severe.
type Severity int

// Syslog priorities.
const (
	Emergency Severity = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Info
	Debug
)

var severityNames = [...]string{
	Emergency: "EMERGENCY",
	Alert:     "ALERT",
	Critical:  "CRITICAL",
	Error:     "ERROR",
	Warning:   "WARNING",
	Notice:    "NOTICE",
	Info:      "INFO",
	Debug:     "DEBUG",
}

var severityAliases = map[string]Severity{
	"EMERGENCY": Emergency,
	"EMERG":     Emergency,
	"FATAL":     Emergency,
	"PANIC":     Emergency,
	"ALERT":     Alert,
	"CRITICAL":  Critical,
	"CRIT":      Critical,
	"ERROR":     Error,
	"ERR":       Error,
	"WARNING":   Warning,
	"WARN":      Warning,
	"NOTICE":    Notice,
	"INFO":      Info,
	"DEBUG":     Debug,
}

// String returns the upper-case severity name.
func (s Severity) String() string {
	if s.Valid() {
		return severityNames[s]
	}
	return "LEVEL_" + strconv.Itoa(int(s))
}

// Valid reports whether s is one of the eight syslog priorities.
func (s Severity) Valid() bool {
	return s >= Emergency && s <= Debug
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity accepts a severity name, a common alias such as WARN or
// FATAL, or a numeric priority.
func ParseSeverity(v string) (Severity, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if s, ok := severityAliases[v]; ok {
		return s, true
	}
	if n, err := strconv.Atoi(v); err == nil && Severity(n).Valid() {
		return Severity(n), true
	}
	return 0, false
}

// AtOrAbove returns every severity at least as severe as threshold, most
// severe first.
func AtOrAbove(threshold Severity) []Severity {
	if threshold > Debug {
		threshold = Debug
	}
	out := make([]Severity, 0, int(threshold)+1)
	for s := Emergency; s <= threshold; s++ {
		out = append(out, s)
	}
	return out
}
