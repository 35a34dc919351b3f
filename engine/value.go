package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Values flowing through the interpreter are JSON-shaped: nil, bool, string,
// int, int64, float64, []interface{} and map[string]interface{}. Everything
// the coercion helpers below do is an explicit rule, so filters and tags stay
// permissive on type mismatch without relying on accidents.

// stringify renders a value the way an output tag would.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case []interface{}:
		var sb strings.Builder
		for _, item := range val {
			sb.WriteString(stringify(item))
		}
		return sb.String()
	case map[string]interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// truthy follows the template language rule: only nil and false are falsy.
// Empty strings, zero and empty arrays are all truthy.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

// isEmptyValue implements comparison against the `empty`/`blank` literal.
func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

// toFloat coerces numeric-ish values; ok is false when no number can be read.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toInt(v interface{}) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// toInt64 is used by money filters, which treat input as integer minor units.
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

// numberResult keeps integer arithmetic integral so counters and cents never
// pick up a fractional part.
func numberResult(f float64, wasInt bool) interface{} {
	if wasInt && f == float64(int64(f)) {
		return int(f)
	}
	return f
}

func isIntegral(v interface{}) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

// toSlice coerces a value into an iterable list. Non-collections iterate as
// a single-element list only when nil would otherwise crash a loop; nil
// yields an empty list.
func toSlice(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	case map[string]interface{}:
		// maps iterate as [key, value] pairs in insertion-agnostic order
		out := make([]interface{}, 0, len(val))
		for k, item := range val {
			out = append(out, []interface{}{k, item})
		}
		return out
	case string:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return nil
}

func valueLength(v interface{}) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return len(val)
	case []interface{}:
		return len(val)
	case map[string]interface{}:
		return len(val)
	}
	if s := toSlice(v); s != nil {
		return len(s)
	}
	return 0
}

// compareValues implements ==, !=, <, <=, >, >= and contains. Mixed numeric
// kinds compare numerically; everything else falls back to string equality
// for == and != and reports false for ordering.
func compareValues(op string, left, right interface{}) bool {
	switch op {
	case "contains":
		return containsValue(left, right)
	case "==", "!=":
		eq := valuesEqual(left, right)
		if op == "!=" {
			return !eq
		}
		return eq
	}
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		// ordering on strings
		ls, lsok := left.(string)
		rs, rsok := right.(string)
		if !lsok || !rsok {
			return false
		}
		switch op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		}
		return false
	}
	switch op {
	case "<":
		return lf < rf
	case "<=":
		return lf <= rf
	case ">":
		return lf > rf
	case ">=":
		return lf >= rf
	}
	return false
}

func valuesEqual(left, right interface{}) bool {
	if left == nil && right == nil {
		return true
	}
	if lf, lok := toFloatStrict(left); lok {
		if rf, rok := toFloatStrict(right); rok {
			return lf == rf
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls == rs
		}
	}
	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			return lb == rb
		}
	}
	return reflect.DeepEqual(left, right)
}

// toFloatStrict converts only genuine numbers, so "1" == 1 stays false the
// way the source language behaves.
func toFloatStrict(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

func containsValue(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, stringify(needle))
	case []interface{}:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		_, ok := h[stringify(needle)]
		return ok
	}
	return false
}
