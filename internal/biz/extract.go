package biz

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
)

// Extractor tries to read one logical value out of a provider payload.
type Extractor[T any] struct {
	Name string
	Fn   func(payload map[string]interface{}) (T, bool)
}

// Chain is an ordered list of extractors. The first one that yields a value
// wins. The attempted order and the chosen source are logged.
type Chain[T any] struct {
	Field      string
	Extractors []Extractor[T]
}

// Extract runs the chain. It returns the zero value and "" when nothing matched.
func (c Chain[T]) Extract(payload map[string]interface{}, logger *log.Helper) (T, string) {
	var zero T
	tried := make([]string, 0, len(c.Extractors))
	for _, e := range c.Extractors {
		tried = append(tried, e.Name)
		if v, ok := e.Fn(payload); ok {
			if logger != nil {
				logger.Debugf("extract %s: tried=%s chosen=%s", c.Field, strings.Join(tried, ","), e.Name)
			}
			return v, e.Name
		}
	}
	if logger != nil {
		logger.Debugf("extract %s: tried=%s chosen=none", c.Field, strings.Join(tried, ","))
	}
	return zero, ""
}

// PathNumber reads a dotted path as a number. Numeric strings are accepted.
func PathNumber(path string) Extractor[float64] {
	return Extractor[float64]{Name: path, Fn: func(payload map[string]interface{}) (float64, bool) {
		return toFloat(lookup(payload, path))
	}}
}

// PathObject reads a dotted path as a non-empty JSON object.
func PathObject(path string) Extractor[map[string]interface{}] {
	return Extractor[map[string]interface{}]{Name: path, Fn: func(payload map[string]interface{}) (map[string]interface{}, bool) {
		m, ok := lookup(payload, path).(map[string]interface{})
		if !ok || len(m) == 0 {
			return nil, false
		}
		return m, true
	}}
}

// PathString reads a dotted path as a non-blank string.
func PathString(path string) Extractor[string] {
	return Extractor[string]{Name: path, Fn: func(payload map[string]interface{}) (string, bool) {
		s, ok := lookup(payload, path).(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}}
}

func lookup(payload map[string]interface{}, path string) interface{} {
	var cur interface{} = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
