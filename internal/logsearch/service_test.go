package logsearch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

func newTestService(stream Channel) (*Service, *time.Time) {
	now := fixedNow
	clock := func() time.Time { return now }
	exec := NewExecutor(stream, nil, zap.NewNop())
	return NewService(exec, zap.NewNop(), WithServiceClock(clock)), &now
}

func errorCode(t *testing.T, err error) mcperrors.ErrorCode {
	t.Helper()
	var se *mcperrors.StructuredError
	require.ErrorAs(t, err, &se)
	return se.Code
}

func TestServiceSearchFromText(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream, logs: staticLogs(
		Record{"PRIORITY": float64(3), "MESSAGE": "osd.1 failed"},
		Record{"PRIORITY": float64(3), "MESSAGE": "osd.2 failed"},
	)}
	svc, _ := newTestService(stream)

	resp, err := svc.Search(context.Background(), SearchRequest{Text: "OSD failures in the last 2 hours", Analyze: true})
	require.NoError(t, err)

	require.NotNil(t, resp.Intent)
	assert.Contains(t, resp.Query, "_time:[")
	assert.Contains(t, resp.Where, OpAnd)
	assert.InDelta(t, 2.0, resp.HoursSearched, 0.001)
	assert.Len(t, resp.Result.Logs, 2)
	require.NotNil(t, resp.Analysis)
	require.NotNil(t, resp.Summary)

	q := stream.queries[0]
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, fixedNow.Unix(), q.End)
	assert.Equal(t, fixedNow.Add(-2*time.Hour).Unix(), q.Start)
}

func TestServiceSearchStructured(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream}
	svc, _ := newTestService(stream)

	where := PriorityAtMost(Warning)
	resp, err := svc.Search(context.Background(), SearchRequest{
		Where:     where,
		Search:    "slow request",
		Limit:     50000,
		HoursBack: 6,
	})
	require.NoError(t, err)

	assert.Nil(t, resp.Intent)
	assert.Equal(t, MergeSearch(where, "slow request"), resp.Where)
	assert.Equal(t, MaxLimit, stream.queries[0].Limit)
	assert.Equal(t, fixedNow.Add(-6*time.Hour).Unix(), stream.queries[0].Start)
}

func TestServiceSearchExplicitTimestamps(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream}
	svc, _ := newTestService(stream)

	resp, err := svc.Search(context.Background(), SearchRequest{
		Search:         "boot",
		StartTimestamp: 1000,
		EndTimestamp:   4600,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, resp.HoursSearched, 0.001)
	assert.Equal(t, int64(1000), stream.queries[0].Start)
	assert.Equal(t, int64(4600), stream.queries[0].End)
}

func TestServiceSearchValidation(t *testing.T) {
	svc, _ := newTestService(&fakeChannel{name: ChannelStream})
	ctx := context.Background()

	_, err := svc.Search(ctx, SearchRequest{})
	assert.Equal(t, mcperrors.CodeMissingParameter, errorCode(t, err))

	_, err = svc.Search(ctx, SearchRequest{Where: map[string]interface{}{"PRIORITY": map[string]interface{}{"_like": 1}}})
	assert.Equal(t, mcperrors.CodeInvalidQuery, errorCode(t, err))

	_, err = svc.Search(ctx, SearchRequest{Search: "x", HoursBack: 500})
	assert.Equal(t, mcperrors.CodeInvalidInput, errorCode(t, err))

	_, err = svc.Search(ctx, SearchRequest{Search: "x", StartTimestamp: 10})
	assert.Equal(t, mcperrors.CodeInvalidInput, errorCode(t, err))

	_, err = svc.Search(ctx, SearchRequest{Search: "x", StartTimestamp: 20, EndTimestamp: 10})
	assert.Equal(t, mcperrors.CodeInvalidInput, errorCode(t, err))
}

func TestServiceSearchBothFailed(t *testing.T) {
	svc, _ := newTestService(&fakeChannel{name: ChannelStream, err: errors.New("refused")})

	resp, err := svc.Search(context.Background(), SearchRequest{Search: "x"})
	require.Error(t, err)
	assert.True(t, IsBothFailed(err))
	require.NotNil(t, resp)
	assert.Empty(t, resp.Result.Logs)
}

func TestServiceShortcutPrioritizesLargeResults(t *testing.T) {
	// the newest half is INFO so the critical and recent picks do not overlap
	var logs []Record
	for i := 0; i < 100; i++ {
		priority := 6
		if i >= 50 {
			priority = 3
		}
		logs = append(logs, Record{
			"PRIORITY":  float64(priority),
			"MESSAGE":   fmt.Sprintf("error %d", i),
			"timestamp": float64(fixedNow.Unix() - int64(i)),
		})
	}
	stream := &fakeChannel{name: ChannelStream, logs: staticLogs(logs...)}
	svc, _ := newTestService(stream)

	resp, err := svc.Shortcut(context.Background(), ShortcutRequest{Kind: ShortcutErrors, Text: "osd"})
	require.NoError(t, err)

	assert.Equal(t, 100, resp.TotalCount)
	assert.Equal(t, 50, resp.DisplayedCount)
	assert.Len(t, resp.Results, 50)
	assert.InDelta(t, 24.0, resp.HoursSearched, 0.001)

	q := stream.queries[0]
	assert.Equal(t, 100, q.Limit)
	and := q.Where[OpAnd].([]interface{})
	assert.Equal(t, PriorityAtMost(Error), and[0])
	assert.Equal(t, map[string]interface{}{OpSearch: "osd"}, and[1])
}

func TestServiceShortcutUnknownKind(t *testing.T) {
	svc, _ := newTestService(&fakeChannel{name: ChannelStream})
	_, err := svc.Shortcut(context.Background(), ShortcutRequest{Kind: "fatal"})
	assert.Equal(t, mcperrors.CodeInvalidInput, errorCode(t, err))
}

func TestShortcutWhere(t *testing.T) {
	assert.Equal(t, PriorityAtMost(Critical), ShortcutWhere(Critical, "", " "))

	where := ShortcutWhere(Warning, "7", "")
	and := where[OpAnd].([]interface{})
	require.Len(t, and, 2)
	assert.Equal(t, leaf("CROIT_SERVERID", "_eq", "7"), and[1])
}

func TestServiceCheck(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream, logs: func(q LogQuery) []Record {
		if q.Where[FieldPriority] != nil || len(q.Where) == 0 {
			return nil
		}
		out := make([]Record, 6)
		for i := range out {
			out[i] = Record{"level": "ERROR", "MESSAGE": "slow request"}
		}
		return out
	}}
	svc, _ := newTestService(stream)

	report, err := svc.Check(context.Background(), CheckRequest{
		Conditions: []string{"slow requests", "xyzzy"},
		TimeWindow: 2 * time.Minute,
	})
	require.NoError(t, err)

	require.Len(t, report.Checks, 2)
	assert.Equal(t, 6, report.Checks[0].Count)
	assert.True(t, report.Checks[0].Triggered)
	assert.Equal(t, SeverityMedium, report.Checks[0].Severity)
	assert.Equal(t, 0, report.Checks[1].Count)
	assert.Equal(t, "none", report.Checks[1].Severity)

	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "slow requests", report.Alerts[0].Condition)
	assert.Equal(t, 6, report.Alerts[0].Count)
	assert.Len(t, report.Alerts[0].SampleLogs, 3)
	assert.Equal(t, "ALERT", Alert.String())
	assert.Equal(t, "1 of 2 conditions triggered", report.Summary)
	assert.Equal(t, "Last 120 seconds", report.TimeWindow)
	assert.Equal(t, "Run again later to check for changes", report.Recommendation)

	q := stream.queries[0]
	assert.Equal(t, checkLimit, q.Limit)
	assert.Equal(t, int64(120), q.End-q.Start)
}

func TestServiceCheckRequiresConditions(t *testing.T) {
	svc, _ := newTestService(&fakeChannel{name: ChannelStream})
	_, err := svc.Check(context.Background(), CheckRequest{})
	assert.Equal(t, mcperrors.CodeMissingParameter, errorCode(t, err))
}

func TestServiceCheckAllClear(t *testing.T) {
	svc, _ := newTestService(&fakeChannel{name: ChannelStream})
	report, err := svc.Check(context.Background(), CheckRequest{Conditions: []string{"errors"}})
	require.NoError(t, err)
	assert.Equal(t, "All clear", report.Recommendation)
	assert.Equal(t, "Last 300 seconds", report.TimeWindow)
	assert.Equal(t, 5, report.Checks[0].Threshold)
}

func serverLogs() []Record {
	var logs []Record
	for i := 0; i < 30; i++ {
		logs = append(logs, Record{FieldServerID: "1", FieldUnit: "ceph-osd@1.service", FieldHostname: "storage-a"})
	}
	for i := 0; i < 5; i++ {
		logs = append(logs, Record{FieldServerID: "2", FieldUnit: "ceph-mon@b.service", FieldHostname: "mon-b"})
	}
	return append(logs, Record{FieldUnit: "untagged"})
}

func TestServiceDiscoverServersCaches(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream, logs: staticLogs(serverLogs()...)}
	svc, now := newTestService(stream)
	ctx := context.Background()

	report, err := svc.DiscoverServers(ctx, false, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalServers)
	assert.Equal(t, "1", report.MostActive)
	assert.True(t, report.Servers["1"].Active)
	assert.False(t, report.Servers["2"].Active)
	assert.Equal(t, 36, report.LogsAnalyzed)

	_, err = svc.DiscoverServers(ctx, false, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stream.calls())

	_, err = svc.DiscoverServers(ctx, true, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stream.calls())

	*now = now.Add(2 * time.Hour)
	_, err = svc.DiscoverServers(ctx, false, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stream.calls())

	assert.Equal(t, leaf(FieldServerID, "_exists", true), stream.queries[0].Where)
	assert.Equal(t, serverSampleSize, stream.queries[0].Limit)
}

func TestSuggestServerFilter(t *testing.T) {
	report := ServerDistribution(serverLogs())

	f := SuggestServerFilter("errors on server 2", report)
	require.NotNil(t, f)
	assert.Equal(t, "specific_server", f.Type)
	assert.Equal(t, "2", f.ServerID)

	f = SuggestServerFilter("what happened on mon-b", report)
	require.NotNil(t, f)
	assert.Equal(t, "hostname_match", f.Type)

	f = SuggestServerFilter("osd flapping", report)
	require.NotNil(t, f)
	assert.Equal(t, "service_specific", f.Type)
	assert.Equal(t, "1", f.ServerID)

	f = SuggestServerFilter("performance issue", report)
	require.NotNil(t, f)
	assert.Equal(t, "performance_focus", f.Type)

	assert.Nil(t, SuggestServerFilter("hello", report))
	assert.Nil(t, SuggestServerFilter("server 1", ServerReport{}))
}

func TestServiceAnalyzeTransports(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream, logs: staticLogs(
		Record{FieldTransport: "kernel", "PRIORITY": float64(3), FieldMessage: "ata1: link down"},
		Record{FieldTransport: "journal", "PRIORITY": float64(6), FieldMessage: "started"},
		Record{FieldTransport: "journal", "PRIORITY": float64(6), FieldMessage: "stopped"},
		Record{FieldMessage: "no transport"},
	)}
	svc, _ := newTestService(stream)

	report, err := svc.AnalyzeTransports(context.Background(), 0, "")
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalLogs)
	assert.Equal(t, 3, report.TransportsFound)
	assert.Equal(t, 2, report.TransportDistribution["journal"])
	assert.Equal(t, 1, report.TransportDistribution["unknown"])
	assert.Equal(t, 1, report.TransportDetails["kernel"].CriticalLogs)
	assert.Equal(t, []string{"kernel"}, report.Kernel.KernelTransports)
	assert.Contains(t, report.Kernel.Recommendation, "direct kernel logs found")
	assert.Equal(t, transportSampleSize, stream.queries[0].Limit)
}

func TestServiceFindKernelLogs(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream, logs: func(q LogQuery) []Record {
		and := q.Where[OpAnd].([]interface{})
		first := and[0].(map[string]interface{})
		if _, ok := first[FieldMessage]; ok {
			return []Record{{FieldMessage: "kernel: sda error"}, {FieldMessage: "kernel: sdb error"}}
		}
		return nil
	}}
	svc, _ := newTestService(stream)

	results, recs, err := svc.FindKernelLogs(context.Background(), 0, 0, "")
	require.NoError(t, err)

	require.Len(t, results, len(KernelStrategies()))
	assert.False(t, results["Direct kernel transport"].Success)
	assert.Equal(t, 2, results["Kernel in message content"].LogCount)
	assert.Equal(t, "Best kernel log strategy: Kernel in message content", recs[0])
}

func TestKernelRecommendationsNoneFound(t *testing.T) {
	recs := KernelRecommendations(map[string]KernelSearchResult{})
	assert.Equal(t, "No kernel logs found with standard methods", recs[0])
}

func TestServiceRunTemplate(t *testing.T) {
	stream := &fakeChannel{name: ChannelStream}
	svc, _ := newTestService(stream)

	tmpl, _, err := svc.RunTemplate(context.Background(), "slow_requests", "")
	require.NoError(t, err)
	assert.Equal(t, "Slow Request Analysis", tmpl.Name)
	assert.Equal(t, 200, stream.queries[0].Limit)
	assert.Equal(t, int64(12*3600), stream.queries[0].End-stream.queries[0].Start)

	_, _, err = svc.RunTemplate(context.Background(), "nope", "")
	assert.Equal(t, mcperrors.CodeResourceNotFound, errorCode(t, err))
}

func TestDebugTemplates(t *testing.T) {
	templates := DebugTemplates()
	assert.Len(t, templates, 13)
	for _, tmpl := range templates {
		assert.NoError(t, ValidateWhere(tmpl.Where), tmpl.ID)
		assert.Positive(t, tmpl.Limit, tmpl.ID)
	}

	// callers get their own copy
	templates[0].Name = "changed"
	assert.Equal(t, "OSD Health Check", DebugTemplates()[0].Name)

	assert.Len(t, TemplateIDs(), 13)
	found := SearchTemplates("monitor")
	require.NotEmpty(t, found)
	assert.Equal(t, "mon_election", found[0].ID)
}
