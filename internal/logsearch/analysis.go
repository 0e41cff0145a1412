package logsearch

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Pattern types.
const (
	PatternRepeatedError = "repeated_error"
	PatternBurst         = "burst"
)

// Insight severities.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityNormal   = "normal"
)

const (
	normalizedKeyLength = 100
	patternPreview      = 50
	burstThreshold      = 50
	maxRecommendations  = 3
	burstBucketLayout   = "2006-01-02 15:04"
)

var (
	digitsPattern = regexp.MustCompile(`\b\d+\b`)
	hexPattern    = regexp.MustCompile(`\b[0-9a-f]{8,}\b`)
)

// Pattern is a derived fact about a set of records.
type Pattern struct {
	Type              string   `json:"type"`                         // repeated_error or burst
	Pattern           string   `json:"pattern,omitempty"`            // preview of the normalized message
	NormalizedMessage string   `json:"normalized_message,omitempty"` // grouping key
	Time              string   `json:"time,omitempty"`               // burst minute
	Count             int      `json:"count"`
	ErrorCount        int      `json:"error_count"`
	Hosts             []string `json:"hosts,omitempty"`
	Services          []string `json:"services,omitempty"`
}

// Analysis is the result of Analyze.
type Analysis struct {
	Summary         string    `json:"summary"`
	Severity        string    `json:"severity"`
	Patterns        []Pattern `json:"patterns"`
	Recommendations []string  `json:"recommendations"`
	TotalCount      int       `json:"total_count"`
	ErrorCount      int       `json:"error_count"`
	FatalCount      int       `json:"fatal_count"`
}

// NormalizeMessage replaces numbers and long hex tokens with placeholders so
// that messages differing only in ids group together.
func NormalizeMessage(msg string) string {
	normalized := digitsPattern.ReplaceAllString(msg, "N")
	normalized = hexPattern.ReplaceAllString(normalized, "HEX")
	return truncateRunes(normalized, normalizedKeyLength)
}

// Analyze clusters repeated errors, finds per-minute bursts and grades the
// overall severity. It is a pure function of logs.
func Analyze(logs []Record) Analysis {
	analysis := Analysis{
		Severity:        SeverityNormal,
		Patterns:        []Pattern{},
		Recommendations: []string{},
		TotalCount:      len(logs),
	}
	if len(logs) == 0 {
		analysis.Summary = "No logs found matching the search criteria"
		return analysis
	}

	for _, r := range logs {
		switch {
		case r.IsFatal():
			analysis.FatalCount++
		case r.IsError():
			analysis.ErrorCount++
		}
	}

	analysis.Patterns = append(analysis.Patterns, repeatedErrors(logs)...)
	analysis.Patterns = append(analysis.Patterns, bursts(logs)...)

	switch {
	case analysis.FatalCount > 0:
		analysis.Severity = SeverityCritical
		analysis.Summary = fmt.Sprintf("CRITICAL: %d fatal errors found", analysis.FatalCount)
	case analysis.ErrorCount > 20:
		analysis.Severity = SeverityHigh
		analysis.Summary = fmt.Sprintf("HIGH: %d errors detected", analysis.ErrorCount)
	case analysis.ErrorCount > 5:
		analysis.Severity = SeverityMedium
		analysis.Summary = fmt.Sprintf("MEDIUM: %d errors found", analysis.ErrorCount)
	default:
		analysis.Summary = fmt.Sprintf("Analyzed %d logs", analysis.TotalCount)
	}

	for i, p := range analysis.Patterns {
		if i == maxRecommendations {
			break
		}
		switch p.Type {
		case PatternRepeatedError:
			analysis.Recommendations = append(analysis.Recommendations,
				fmt.Sprintf("Investigate repeated error on %d hosts", len(p.Hosts)))
		case PatternBurst:
			analysis.Recommendations = append(analysis.Recommendations,
				fmt.Sprintf("Check event at %s (%d logs)", p.Time, p.Count))
		}
	}

	return analysis
}

type errorGroup struct {
	key      string
	count    int
	hosts    map[string]struct{}
	services map[string]struct{}
}

func repeatedErrors(logs []Record) []Pattern {
	groups := map[string]*errorGroup{}
	var order []string

	for _, r := range logs {
		if !r.IsError() {
			continue
		}
		key := NormalizeMessage(r.Message())
		g, ok := groups[key]
		if !ok {
			g = &errorGroup{key: key, hosts: map[string]struct{}{}, services: map[string]struct{}{}}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		g.hosts[r.Host()] = struct{}{}
		g.services[r.Service()] = struct{}{}
	}

	var patterns []Pattern
	for _, key := range order {
		g := groups[key]
		if g.count < 2 {
			continue
		}
		patterns = append(patterns, Pattern{
			Type:              PatternRepeatedError,
			Pattern:           truncateRunes(key, patternPreview),
			NormalizedMessage: key,
			Count:             g.count,
			ErrorCount:        g.count,
			Hosts:             sortedKeys(g.hosts),
			Services:          sortedKeys(g.services),
		})
	}

	return patterns
}

func bursts(logs []Record) []Pattern {
	type bucket struct {
		count  int
		errors int
	}
	buckets := map[time.Time]*bucket{}

	for _, r := range logs {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		minute := ts.Truncate(time.Minute)
		b, ok := buckets[minute]
		if !ok {
			b = &bucket{}
			buckets[minute] = b
		}
		b.count++
		if r.IsError() {
			b.errors++
		}
	}

	minutes := make([]time.Time, 0, len(buckets))
	for m, b := range buckets {
		if b.count > burstThreshold {
			minutes = append(minutes, m)
		}
	}
	sort.Slice(minutes, func(i, j int) bool { return minutes[i].Before(minutes[j]) })

	patterns := make([]Pattern, 0, len(minutes))
	for _, m := range minutes {
		b := buckets[m]
		patterns = append(patterns, Pattern{
			Type:       PatternBurst,
			Time:       m.Format(burstBucketLayout),
			Count:      b.count,
			ErrorCount: b.errors,
		})
	}
	return patterns
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
