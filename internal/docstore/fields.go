package docstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// String returns the first non-empty value among keys, trimmed. Numbers are formatted.
func String(data map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int64:
			s = strconv.FormatInt(t, 10)
		case int:
			s = strconv.Itoa(t)
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Bool reads a boolean field. Non-boolean values are false.
func Bool(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

// Time reads a timestamp stored natively, as RFC 3339 text, or as epoch milliseconds.
func Time(data map[string]any, key string) time.Time {
	switch t := data[key].(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	case float64:
		return time.UnixMilli(int64(t))
	case int64:
		return time.UnixMilli(t)
	case map[string]any:
		if secs, ok := toFloat(t["seconds"]); ok {
			return time.Unix(int64(secs), 0)
		}
	}
	return time.Time{}
}

// Int reads an integral number.
func Int(data map[string]any, key string) (int, bool) {
	f, ok := toFloat(data[key])
	if !ok {
		if s, isStr := data[key].(string); isStr {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			return n, err == nil
		}
		return 0, false
	}
	return int(math.Round(f)), true
}

// Map reads a nested map field.
func Map(data map[string]any, key string) (map[string]any, bool) {
	m, ok := data[key].(map[string]any)
	return m, ok
}

// Slice reads an array field.
func Slice(data map[string]any, key string) ([]any, bool) {
	s, ok := data[key].([]any)
	return s, ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// normalize deep-copies a value into the shapes a document read returns:
// map[string]any, []any, int64, float64, string, bool, time.Time (UTC), nil.
func normalize(v any, now time.Time) any {
	switch t := v.(type) {
	case serverTimestamp:
		return now
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = normalize(inner, now)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = normalize(inner, now)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = normalize(inner, now)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = inner
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC()
	default:
		return t
	}
}

// mergeInto deep-merges src into dst: nested maps merge field by field, everything else overwrites.
func mergeInto(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeInto(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

// compare orders two field values of the same family. ok is false when they cannot be compared.
func compare(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch at := a.(type) {
	case string:
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(at, bs), true
	case bool:
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if at == bb {
			return 0, true
		}
		if !at {
			return -1, true
		}
		return 1, true
	case time.Time:
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	return 0, false
}

func matches(data map[string]any, f Filter) bool {
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	c, ok := compare(v, normalize(f.Value, time.Time{}))
	if !ok {
		return f.Op == "!="
	}
	switch f.Op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
