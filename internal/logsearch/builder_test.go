package logsearch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFlatOrdering(t *testing.T) {
	intent := SearchIntent{
		Services:   []string{"ceph-mon", "ceph-osd"},
		Severities: []Severity{Error, Warning},
		Keywords:   []string{"failed"},
		TimeRange:  LastDuration(fixedNow, time.Hour),
	}

	q := BuildFlat(intent)

	assert.True(t, strings.HasPrefix(q, "_time:[2025-03-10T13:30:00Z, 2025-03-10T14:30:00Z]"), q)
	svc := strings.Index(q, "service:")
	lvl := strings.Index(q, "level:")
	msg := strings.Index(q, "_msg:")
	require.True(t, svc > 0 && lvl > 0 && msg > 0, q)
	assert.Less(t, svc, lvl)
	assert.Less(t, lvl, msg)

	assert.Contains(t, q, "(service:ceph-mon OR service:ceph-osd)")
	assert.Contains(t, q, "(level:ERROR OR level:WARNING)")
	assert.Contains(t, q, `_msg:"failed"`)
}

func TestBuildFlatTimeOnly(t *testing.T) {
	q := BuildFlat(SearchIntent{TimeRange: LastDuration(fixedNow, time.Hour)})
	assert.NotContains(t, q, " AND ")
	assert.True(t, strings.HasPrefix(q, "_time:["))
}

func TestBuildWhere(t *testing.T) {
	intent := SearchIntent{
		Services:   []string{"ceph-osd", "ceph-osd@3.service"},
		Severities: []Severity{Error},
		Keywords:   []string{"slow request", "blocked"},
	}

	where := BuildWhere(intent)

	and, ok := where[OpAnd].([]interface{})
	require.True(t, ok)
	require.Len(t, and, 3)

	services := and[0].(map[string]interface{})[OpOr].([]interface{})
	assert.Equal(t, leaf(FieldUnit, "_contains", "ceph-osd"), services[0])
	assert.Equal(t, leaf(FieldUnit, "_eq", "ceph-osd@3.service"), services[1])

	assert.Equal(t, leaf(FieldPriority, "_eq", 3), and[1])

	keywords := and[2].(map[string]interface{})[OpOr].([]interface{})
	assert.Len(t, keywords, 2)

	assert.NoError(t, ValidateWhere(where))
}

func TestBuildWhereSingleCategory(t *testing.T) {
	where := BuildWhere(SearchIntent{Severities: []Severity{Critical}})
	assert.Equal(t, leaf(FieldPriority, "_eq", 2), where)

	assert.Empty(t, BuildWhere(SearchIntent{}))
}

func TestMergeSearch(t *testing.T) {
	assert.Equal(t, map[string]interface{}{OpSearch: "disk"}, MergeSearch(nil, "disk"))

	base := leaf(FieldUnit, "_eq", "ceph-osd@1.service")
	assert.Equal(t, base, MergeSearch(base, ""))

	wrapped := MergeSearch(base, "disk")
	assert.Equal(t, []interface{}{base, map[string]interface{}{OpSearch: "disk"}}, wrapped[OpAnd])

	and := map[string]interface{}{OpAnd: []interface{}{base}}
	merged := MergeSearch(and, "disk")
	assert.Len(t, merged[OpAnd], 2)
	assert.Len(t, and[OpAnd], 1, "input must not be modified")
}

func TestValidateWhere(t *testing.T) {
	valid := []map[string]interface{}{
		{},
		PriorityAtMost(Warning),
		{OpSearch: "slow"},
		{OpNot: leaf(FieldUnit, "_regex", "ceph-.*")},
		{OpOr: []interface{}{leaf(FieldMessage, "_contains", "a"), leaf(FieldServerID, "_exists", true)}},
	}
	for _, w := range valid {
		assert.NoError(t, ValidateWhere(w), "%v", w)
	}

	invalid := map[string]map[string]interface{}{
		"unknown comparison": leaf(FieldPriority, "_like", 3),
		"unknown logical":    {"_xor": []interface{}{}},
		"and not a list":     {OpAnd: leaf(FieldPriority, "_eq", 3)},
		"field not an op":    {FieldPriority: 3},
		"search not string":  {OpSearch: 3},
		"nested bad":         {OpAnd: []interface{}{map[string]interface{}{FieldMessage: map[string]interface{}{"_bogus": 1}}}},
	}
	for name, w := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateWhere(w))
		})
	}
}

func TestLogQueryMessage(t *testing.T) {
	q := LogQuery{Where: PriorityAtMost(Error), Start: 100, End: 200, Limit: 50, After: 10}
	msg := q.Message()

	assert.Equal(t, "query", msg["type"])
	assert.Equal(t, int64(100), msg["start"])
	assert.Equal(t, int64(200), msg["end"])
	inner := msg["query"].(map[string]interface{})
	assert.Equal(t, 50, inner["limit"])
	assert.Equal(t, 10, inner["after"])
	assert.Equal(t, PriorityAtMost(Error), inner["where"])

	empty := LogQuery{}.Message()["query"].(map[string]interface{})
	assert.NotNil(t, empty["where"])
}
