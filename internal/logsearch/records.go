package logsearch

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// Record is one log entry as returned by the backend. Field names differ
// between the streaming and export channels; unknown fields pass through.
type Record map[string]interface{}

// Fields set on records that could not be decoded.
const (
	FieldRawMessage = "raw_message"
	FieldParseError = "parse_error"
	FieldLineNumber = "line_number"
)

var parserPool fastjson.ParserPool

// DecodeLine parses a single JSON document into plain Go values: maps,
// slices, float64, string, bool and nil.
func DecodeLine(data []byte) (interface{}, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return toPlain(v), nil
}

func toPlain(v *fastjson.Value) interface{} {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()
		out := make(map[string]interface{}, obj.Len())
		obj.Visit(func(key []byte, child *fastjson.Value) {
			out[string(key)] = toPlain(child)
		})
		return out
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]interface{}, len(arr))
		for i, child := range arr {
			out[i] = toPlain(child)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

// DecodeRecords decodes a log payload that is a single record, an array of
// records, or an object wrapping them as {"logs": [...]}. Array items that are
// not objects are kept as raw records.
func DecodeRecords(data []byte) ([]Record, error) {
	v, err := DecodeLine(data)
	if err != nil {
		return nil, err
	}
	return recordsFrom(v), nil
}

func recordsFrom(v interface{}) []Record {
	switch t := v.(type) {
	case map[string]interface{}:
		if logs, ok := t["logs"].([]interface{}); ok {
			return recordsFrom(logs)
		}
		return []Record{Record(t)}
	case []interface{}:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, Record(m))
				continue
			}
			out = append(out, Record{FieldRawMessage: stringValue(item)})
		}
		return out
	case nil:
		return nil
	}
	return []Record{{FieldRawMessage: stringValue(v)}}
}

// ParseFailure is the record kept in place of a line that is not JSON.
func ParseFailure(line string, lineNumber int, err error) Record {
	return Record{
		FieldRawMessage: line,
		FieldParseError: err.Error(),
		FieldLineNumber: lineNumber,
	}
}

// ParseLines decodes newline-delimited JSON. Every non-blank line yields
// exactly one record.
func ParseLines(data []byte) []Record {
	var out []Record
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := DecodeLine([]byte(line))
		if err != nil {
			out = append(out, ParseFailure(line, i+1, err))
			continue
		}
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, Record(m))
			continue
		}
		out = append(out, Record{FieldRawMessage: line, FieldLineNumber: i + 1})
	}
	return out
}

func (r Record) first(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil && v != "" {
			return v, true
		}
	}
	return nil, false
}

func (r Record) firstString(keys ...string) string {
	v, ok := r.first(keys...)
	if !ok {
		return ""
	}
	return stringValue(v)
}

// Message returns the log text.
func (r Record) Message() string {
	return r.firstString("message", FieldMessage, "_msg", FieldRawMessage)
}

// Host returns the originating host name.
func (r Record) Host() string {
	return r.firstString("host", FieldHostname, "hostname")
}

// Service returns the systemd unit or syslog identifier.
func (r Record) Service() string {
	return r.firstString("service", FieldUnit, "unit", FieldSyslogID)
}

// ServerID returns the croit server id, if tagged.
func (r Record) ServerID() string {
	return r.firstString(FieldServerID, "CROIT_SERVERID")
}

// Transport returns the journald transport, or "unknown".
func (r Record) Transport() string {
	if t := r.firstString(FieldTransport, "TRANSPORT", "transport"); t != "" {
		return t
	}
	return "unknown"
}

// Priority returns the syslog priority from PRIORITY, or from a textual
// level field.
func (r Record) Priority() (Severity, bool) {
	if v, ok := r.first(FieldPriority, "priority"); ok {
		switch t := v.(type) {
		case float64:
			return Severity(int(t)), Severity(int(t)).Valid()
		case int:
			return Severity(t), Severity(t).Valid()
		case string:
			return ParseSeverity(t)
		}
	}
	if lvl := r.firstString("level", "severity"); lvl != "" {
		return ParseSeverity(lvl)
	}
	return 0, false
}

// Level returns the upper-case level name. Records carrying only a numeric
// priority get the matching severity name.
func (r Record) Level() string {
	if lvl := r.firstString("level", "severity"); lvl != "" {
		return strings.ToUpper(lvl)
	}
	if p, ok := r.Priority(); ok {
		return p.String()
	}
	return ""
}

// IsError reports ERROR-or-worse records.
func (r Record) IsError() bool {
	switch r.Level() {
	case "ERROR", "ERR", "FATAL", "CRITICAL", "CRIT", "ALERT", "EMERGENCY", "EMERG", "PANIC":
		return true
	}
	p, ok := r.Priority()
	return ok && p <= Error
}

// IsFatal reports FATAL or EMERGENCY records.
func (r Record) IsFatal() bool {
	switch r.Level() {
	case "FATAL", "EMERGENCY", "EMERG", "PANIC":
		return true
	}
	return false
}

// Timestamp returns the record time from __REALTIME_TIMESTAMP (microseconds),
// timestamp or _time.
func (r Record) Timestamp() (time.Time, bool) {
	if v, ok := r.first("__REALTIME_TIMESTAMP"); ok {
		if us, ok := toInt64(v); ok {
			return time.UnixMicro(us).UTC(), true
		}
	}
	for _, key := range []string{"timestamp", "_time", "time"} {
		v, ok := r.first(key)
		if !ok {
			continue
		}
		if n, ok := toInt64(v); ok {
			return unixAuto(n), true
		}
		if s, ok := v.(string); ok {
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}

// unixAuto interprets n as seconds, milliseconds or microseconds by magnitude.
func unixAuto(n int64) time.Time {
	switch {
	case n > 1e15:
		return time.UnixMicro(n).UTC()
	case n > 1e12:
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := marshalCompact(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func marshalCompact(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
