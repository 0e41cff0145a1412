package logsearch

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var criticalKeywords = []string{
	"failed", "error", "crash", "panic", "fatal", "abort", "exception",
	"timeout", "unreachable", "down", "offline", "corruption", "loss",
}

const (
	defaultPriority   = Info
	messagePreviewLen = 100
	maxServices       = 10
	maxPeakHours      = 3
	hourBucketLayout  = "2006-01-02 15:00"
)

// CriticalEvent is a record ranked by criticality. Lower scores are more
// critical.
type CriticalEvent struct {
	Score          int    `json:"score"`
	Timestamp      string `json:"timestamp,omitempty"`
	Service        string `json:"service"`
	Priority       string `json:"priority"`
	MessagePreview string `json:"message_preview"`
	Log            Record `json:"log"`
}

// PeakHour is an hour bucket and its record count.
type PeakHour struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// Trends describes hourly activity.
type Trends struct {
	HourlyDistribution map[string]int `json:"hourly_distribution,omitempty"`
	PeakHours          []PeakHour     `json:"peak_hours,omitempty"`
	ActiveServices     int            `json:"active_services"`
	BusiestService     string         `json:"busiest_service,omitempty"`
}

// SpanInfo is the actual time span covered by a set of records.
type SpanInfo struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationHours float64   `json:"duration_hours"`
}

// Summary is a presentation-oriented digest of a record set.
type Summary struct {
	Summary           string          `json:"summary"`
	TotalLogs         int             `json:"total_logs"`
	PriorityBreakdown map[string]int  `json:"priority_breakdown,omitempty"`
	ServiceBreakdown  map[string]int  `json:"service_breakdown,omitempty"`
	CriticalEvents    []CriticalEvent `json:"critical_events"`
	Highlights        []Record        `json:"highlights"`
	Trends            Trends          `json:"trends"`
	Recommendations   []string        `json:"recommendations"`
	TimeRange         *SpanInfo       `json:"time_range,omitempty"`
}

// Score ranks a record: priority times ten, minus 20 for each critical
// keyword and 15 more for failing OSDs.
func Score(r Record) int {
	p, ok := r.Priority()
	if !ok {
		p = defaultPriority
	}
	msg := strings.ToLower(r.Message())

	score := int(p) * 10
	for _, kw := range criticalKeywords {
		if strings.Contains(msg, kw) {
			score -= 20
		}
	}
	if strings.Contains(msg, "osd") && containsAny(msg, []string{"failed", "down", "crash"}) {
		score -= 15
	}
	return score
}

// Summarize ranks logs by criticality and merges the maxCritical most
// critical records with the maxRecent newest ones, without duplicates.
func Summarize(logs []Record, maxCritical, maxRecent int) Summary {
	s := Summary{
		TotalLogs:       len(logs),
		CriticalEvents:  []CriticalEvent{},
		Highlights:      []Record{},
		Recommendations: []string{},
	}
	if len(logs) == 0 {
		s.Summary = "No logs found"
		return s
	}

	s.PriorityBreakdown = priorityBreakdown(logs)
	s.ServiceBreakdown, _ = serviceBreakdown(logs)
	s.CriticalEvents = criticalEvents(logs, maxCritical)
	s.Highlights = merge(s.CriticalEvents, logs, maxRecent, maxCritical+maxRecent)
	s.Trends = trends(logs)
	s.Summary = summaryText(len(logs), s.PriorityBreakdown, logs, s.CriticalEvents)
	s.Recommendations = summaryRecommendations(s.PriorityBreakdown, s.ServiceBreakdown, s.CriticalEvents, s.Trends)
	s.TimeRange = span(logs)
	return s
}

func priorityBreakdown(logs []Record) map[string]int {
	counts := map[string]int{}
	for _, r := range logs {
		p, ok := r.Priority()
		if !ok {
			p = defaultPriority
		}
		counts[p.String()]++
	}
	return counts
}

func unitOf(r Record) string {
	if u := r.firstString(FieldUnit, FieldSyslogID); u != "" {
		return u
	}
	return "unknown"
}

// serviceBreakdown returns the ten busiest units and their order.
func serviceBreakdown(logs []Record) (map[string]int, []string) {
	counts := map[string]int{}
	for _, r := range logs {
		counts[unitOf(r)]++
	}
	names := topByCount(counts, maxServices)
	top := make(map[string]int, len(names))
	for _, n := range names {
		top[n] = counts[n]
	}
	return top, names
}

func topByCount(counts map[string]int, n int) []string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

func criticalEvents(logs []Record, max int) []CriticalEvent {
	events := make([]CriticalEvent, 0, len(logs))
	for _, r := range logs {
		p, ok := r.Priority()
		if !ok {
			p = defaultPriority
		}
		events = append(events, CriticalEvent{
			Score:          Score(r),
			Timestamp:      r.firstString("__REALTIME_TIMESTAMP", "timestamp"),
			Service:        unitOf(r),
			Priority:       p.String(),
			MessagePreview: preview(r.Message()),
			Log:            r,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Score < events[j].Score })
	if max >= 0 && len(events) > max {
		events = events[:max]
	}
	return events
}

// Prioritize returns up to limit records: the maxCritical most critical
// ones followed by the maxRecent newest ones not already included.
func Prioritize(logs []Record, maxCritical, maxRecent, limit int) []Record {
	return merge(criticalEvents(logs, maxCritical), logs, maxRecent, limit)
}

func merge(critical []CriticalEvent, logs []Record, maxRecent, limit int) []Record {
	if limit < 0 {
		limit = 0
	}
	out := make([]Record, 0, limit)
	seen := map[string]struct{}{}
	add := func(r Record) {
		if len(out) >= limit {
			return
		}
		key := recordKey(r)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	for _, e := range critical {
		add(e.Log)
	}

	recent := make([]Record, len(logs))
	copy(recent, logs)
	sort.SliceStable(recent, func(i, j int) bool {
		ti, _ := recent[i].Timestamp()
		tj, _ := recent[j].Timestamp()
		return ti.After(tj)
	})
	for i, r := range recent {
		if i >= maxRecent {
			break
		}
		add(r)
	}
	return out
}

func recordKey(r Record) string {
	b, err := marshalCompact(r)
	if err != nil {
		return fmt.Sprintf("%p", r)
	}
	return string(b)
}

func trends(logs []Record) Trends {
	hourly := map[string]int{}
	perService := map[string]int{}

	for _, r := range logs {
		v, ok := r.first("__REALTIME_TIMESTAMP")
		if !ok {
			continue
		}
		us, ok := toInt64(v)
		if !ok {
			continue
		}
		hour := time.UnixMicro(us).UTC().Format(hourBucketLayout)
		hourly[hour]++
		perService[r.firstString(FieldUnit)]++
	}

	t := Trends{ActiveServices: len(perService)}
	if len(hourly) == 0 {
		return t
	}
	t.HourlyDistribution = hourly
	for _, h := range topByCount(hourly, maxPeakHours) {
		t.PeakHours = append(t.PeakHours, PeakHour{Hour: h, Count: hourly[h]})
	}
	if busiest := topByCount(perService, 1); len(busiest) == 1 {
		t.BusiestService = busiest[0]
		if t.BusiestService == "" {
			t.BusiestService = "unknown"
		}
	}
	return t
}

func criticalTotal(priorities map[string]int) int {
	return priorities[Critical.String()] + priorities[Emergency.String()] + priorities[Alert.String()]
}

func summaryText(total int, priorities map[string]int, logs []Record, critical []CriticalEvent) string {
	lines := []string{fmt.Sprintf("Log Analysis Summary - %d total entries", total)}

	if n := criticalTotal(priorities); n > 0 {
		lines = append(lines, fmt.Sprintf("%d critical/emergency events", n))
	}
	if n := priorities[Error.String()]; n > 0 {
		lines = append(lines, fmt.Sprintf("%d errors", n))
	}
	if n := priorities[Warning.String()]; n > 0 {
		lines = append(lines, fmt.Sprintf("%d warnings", n))
	}

	if services, order := serviceBreakdown(logs); len(order) > 0 {
		lines = append(lines, fmt.Sprintf("Most active: %s (%d logs)", order[0], services[order[0]]))
	}
	if len(critical) > 0 {
		lines = append(lines, fmt.Sprintf("%d high-priority events identified", len(critical)))
	}
	return strings.Join(lines, "\n")
}

func summaryRecommendations(priorities, services map[string]int, critical []CriticalEvent, tr Trends) []string {
	recs := []string{}

	if n := criticalTotal(priorities); n > 5 {
		recs = append(recs, fmt.Sprintf("Immediate attention needed: %d critical events", n))
	}
	if n := priorities[Error.String()]; n > 20 {
		recs = append(recs, fmt.Sprintf("Investigate error patterns: %d errors found", n))
	}

	cephLogs := 0
	for name, n := range services {
		if strings.Contains(strings.ToLower(name), "ceph") {
			cephLogs += n
		}
	}
	if cephLogs > 0 && float64(cephLogs) > float64(len(services))*0.7 {
		recs = append(recs, "High Ceph activity detected - monitor cluster health")
	}

	osdIssues := 0
	for _, e := range critical {
		if strings.Contains(strings.ToLower(e.MessagePreview), "osd") {
			osdIssues++
		}
	}
	if osdIssues > 3 {
		recs = append(recs, "Multiple OSD issues detected - check storage health")
	}

	if len(tr.PeakHours) > 0 {
		recs = append(recs, fmt.Sprintf("Peak activity: %s - review load patterns", tr.PeakHours[0].Hour))
	}
	return recs
}

func span(logs []Record) *SpanInfo {
	var start, end time.Time
	for _, r := range logs {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		if start.IsZero() || ts.Before(start) {
			start = ts
		}
		if end.IsZero() || ts.After(end) {
			end = ts
		}
	}
	if start.IsZero() {
		return nil
	}
	hours := end.Sub(start).Hours()
	return &SpanInfo{Start: start, End: end, DurationHours: math.Round(hours*100) / 100}
}

func preview(msg string) string {
	if len([]rune(msg)) > messagePreviewLen {
		return truncateRunes(msg, messagePreviewLen) + "..."
	}
	return msg
}
