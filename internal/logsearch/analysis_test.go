package logsearch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(level, msg string, ts time.Time) Record {
	return Record{
		"level":     level,
		"message":   msg,
		"host":      "node1",
		"service":   "ceph-osd@1.service",
		"timestamp": ts.Format(time.RFC3339),
	}
}

// spreadLogs returns n INFO records one minute apart.
func spreadLogs(n int) []Record {
	logs := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		logs = append(logs, record("INFO", fmt.Sprintf("heartbeat ok %d", i), fixedNow.Add(-time.Duration(i)*time.Minute)))
	}
	return logs
}

func TestAnalyzeRepeatedErrors(t *testing.T) {
	logs := spreadLogs(105)
	for i := 0; i < 15; i++ {
		logs = append(logs, record("ERROR", fmt.Sprintf("osd.%d heartbeat_check: no reply from 10.0.0.%d", i, i),
			fixedNow.Add(-time.Duration(i)*time.Minute)))
	}
	require.Len(t, logs, 120)

	a := Analyze(logs)

	assert.Equal(t, 120, a.TotalCount)
	assert.Equal(t, 15, a.ErrorCount)
	assert.Equal(t, 0, a.FatalCount)
	assert.Equal(t, SeverityMedium, a.Severity)
	assert.Equal(t, "MEDIUM: 15 errors found", a.Summary)

	require.NotEmpty(t, a.Patterns)
	p := a.Patterns[0]
	assert.Equal(t, PatternRepeatedError, p.Type)
	assert.Equal(t, 15, p.Count)
	assert.Equal(t, []string{"node1"}, p.Hosts)
	assert.Equal(t, NormalizeMessage("osd.1 heartbeat_check: no reply from 10.0.0.1"), p.NormalizedMessage)
	assert.Equal(t, []string{"Investigate repeated error on 1 hosts"}, a.Recommendations)
}

func TestAnalyzePatternsKeepFirstSeenOrder(t *testing.T) {
	logs := []Record{
		record("ERROR", "mon.a clock skew detected", fixedNow),
		record("ERROR", "osd.3 slow ops", fixedNow),
		record("ERROR", "osd.4 slow ops", fixedNow),
		record("ERROR", "osd.5 slow ops", fixedNow),
		record("ERROR", "mon.a clock skew detected", fixedNow),
	}

	a := Analyze(logs)

	require.Len(t, a.Patterns, 2)
	assert.Equal(t, NormalizeMessage("mon.a clock skew detected"), a.Patterns[0].NormalizedMessage)
	assert.Equal(t, 2, a.Patterns[0].Count)
	assert.Equal(t, NormalizeMessage("osd.3 slow ops"), a.Patterns[1].NormalizedMessage)
	assert.Equal(t, 3, a.Patterns[1].Count)
}

func TestAnalyzeSeverityLadder(t *testing.T) {
	build := func(errors, fatals int) []Record {
		var logs []Record
		for i := 0; i < errors; i++ {
			logs = append(logs, record("ERROR", "x", fixedNow))
		}
		for i := 0; i < fatals; i++ {
			logs = append(logs, record("FATAL", "y", fixedNow))
		}
		return logs
	}

	assert.Equal(t, SeverityNormal, Analyze(build(5, 0)).Severity)
	assert.Equal(t, SeverityMedium, Analyze(build(6, 0)).Severity)
	assert.Equal(t, SeverityMedium, Analyze(build(20, 0)).Severity)
	assert.Equal(t, SeverityHigh, Analyze(build(21, 0)).Severity)
	assert.Equal(t, SeverityCritical, Analyze(build(0, 1)).Severity)
	assert.Equal(t, "CRITICAL: 1 fatal errors found", Analyze(build(30, 1)).Summary)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil)
	assert.Equal(t, SeverityNormal, a.Severity)
	assert.Equal(t, "No logs found matching the search criteria", a.Summary)
	assert.Empty(t, a.Patterns)
}

func TestAnalyzeBursts(t *testing.T) {
	minute := fixedNow.Truncate(time.Minute)
	var logs []Record
	for i := 0; i < 60; i++ {
		logs = append(logs, record("INFO", fmt.Sprintf("pg %d active", i), minute.Add(time.Duration(i)*time.Second/2)))
	}
	logs = append(logs, spreadLogs(10)...)

	a := Analyze(logs)

	require.Len(t, a.Patterns, 1)
	assert.Equal(t, PatternBurst, a.Patterns[0].Type)
	assert.Equal(t, minute.Format("2006-01-02 15:04"), a.Patterns[0].Time)
	assert.GreaterOrEqual(t, a.Patterns[0].Count, 60)
}

func TestAnalyzeIsPure(t *testing.T) {
	logs := spreadLogs(20)
	assert.Equal(t, Analyze(logs), Analyze(logs))
}

func TestNormalizeMessage(t *testing.T) {
	assert.Equal(t, "osd.N failed after N ms", NormalizeMessage("osd.12 failed after 3000 ms"))
	assert.Equal(t, "object HEX missing", NormalizeMessage("object deadbeefcafe missing"))
}

func TestScore(t *testing.T) {
	crash := Record{"PRIORITY": float64(3), "MESSAGE": "osd.4 crash: failed to mount"}
	info := Record{"PRIORITY": float64(6), "MESSAGE": "all good"}

	// 30 - 20 (failed) - 20 (crash) - 15 (osd failure)
	assert.Equal(t, -25, Score(crash))
	assert.Equal(t, 60, Score(info))
	assert.Equal(t, 60, Score(Record{"MESSAGE": "no priority"}))
}

func TestSummarize(t *testing.T) {
	var logs []Record
	base := fixedNow.Add(-2 * time.Hour)
	for i := 0; i < 30; i++ {
		logs = append(logs, Record{
			"PRIORITY":             float64(6),
			"MESSAGE":              fmt.Sprintf("routine %d", i),
			"_SYSTEMD_UNIT":        "ceph-mgr@a.service",
			"__REALTIME_TIMESTAMP": fmt.Sprint(base.Add(time.Duration(i) * time.Minute).UnixMicro()),
		})
	}
	logs = append(logs, Record{
		"PRIORITY":             float64(2),
		"MESSAGE":              "osd.3 down: crash detected",
		"_SYSTEMD_UNIT":        "ceph-osd@3.service",
		"__REALTIME_TIMESTAMP": fmt.Sprint(base.UnixMicro()),
	})

	s := Summarize(logs, 5, 5)

	assert.Equal(t, 31, s.TotalLogs)
	assert.Equal(t, 30, s.PriorityBreakdown["INFO"])
	assert.Equal(t, 1, s.PriorityBreakdown["CRITICAL"])
	require.Len(t, s.CriticalEvents, 5)
	assert.Equal(t, "ceph-osd@3.service", s.CriticalEvents[0].Service)
	assert.LessOrEqual(t, len(s.Highlights), 10)
	assert.Equal(t, "osd.3 down: crash detected", s.Highlights[0].Message())
	assert.Contains(t, s.Summary, "31 total entries")
	assert.Contains(t, s.Summary, "Most active: ceph-mgr@a.service (30 logs)")
	require.NotNil(t, s.TimeRange)
	assert.InDelta(t, 0.48, s.TimeRange.DurationHours, 0.01)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 5, 5)
	assert.Equal(t, "No logs found", s.Summary)
	assert.Empty(t, s.Highlights)
}

func TestPrioritizeDeduplicates(t *testing.T) {
	logs := []Record{
		{"PRIORITY": float64(2), "MESSAGE": "failed", "timestamp": float64(300)},
		{"PRIORITY": float64(6), "MESSAGE": "b", "timestamp": float64(200)},
		{"PRIORITY": float64(6), "MESSAGE": "c", "timestamp": float64(100)},
	}

	out := Prioritize(logs, 1, 3, 10)

	// the critical record is also the newest and appears once
	assert.Len(t, out, 3)
	assert.Equal(t, "failed", out[0].Message())

	assert.Len(t, Prioritize(logs, 1, 3, 1), 1)
	assert.Empty(t, Prioritize(logs, 1, 3, -1))
}
