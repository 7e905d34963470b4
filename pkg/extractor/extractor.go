// Package extractor resolves dotted paths against nested record data
package extractor

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrMalformedPath is returned for paths whose index or slice suffix cannot be parsed
var ErrMalformedPath = errors.New("malformed path")

// Extractor resolves paths such as "authors.full_name", "authors[:3]" or "titles[0].title".
//
// A key applied to a list is applied to each element and the results are flattened, so
// "a.b" against {"a": [{"b": 1}, {"b": 2}]} yields [1 2]. When no list is traversed the
// value is returned as is. Elements missing the key are skipped; a missing key on a map
// resolves to nothing rather than an error.
type Extractor struct{}

// New creates a new Extractor
func New() *Extractor {
	return &Extractor{}
}

// Get resolves path against data. The boolean is false when nothing was found or the
// path is malformed.
func (e *Extractor) Get(data any, path string) (any, bool) {
	value, err := e.Resolve(data, path)
	if err != nil || value == nil {
		return nil, false
	}
	return value, true
}

// GetAll resolves path and always returns a list: scalars become single-element lists
func (e *Extractor) GetAll(data any, path string) []any {
	value, ok := e.Get(data, path)
	if !ok {
		return nil
	}
	return ForceList(value)
}

// GetStrings resolves path and keeps the string values only
func (e *Extractor) GetStrings(data any, path string) []string {
	values := e.GetAll(data, path)
	result := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// Resolve is Get with syntax errors reported. A nil value with a nil error means not found.
func (e *Extractor) Resolve(data any, path string) (any, error) {
	if path == "" {
		return data, nil
	}

	parts, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	current := data
	for _, part := range parts {
		current = lookup(current, part.key)
		if current == nil {
			return nil, nil
		}
		if part.selector != nil {
			current = part.selector.apply(current)
			if current == nil {
				return nil, nil
			}
		}
	}

	return current, nil
}

// StripIndex drops any index or slice suffix: "authors[:3]" becomes "authors"
func StripIndex(path string) string {
	if idx := strings.Index(path, "["); idx != -1 {
		return path[:idx]
	}
	return path
}

// pathPart represents a parsed path segment
type pathPart struct {
	key      string
	selector *selector
}

// selector is an index ([2], [-1]) or a slice ([:3], [1:], [1:3]) applied to a list value
type selector struct {
	isSlice bool
	index   int
	start   *int
	end     *int
}

func (s *selector) apply(value any) any {
	arr, ok := toArray(value)
	if !ok {
		return nil
	}

	n := len(arr)
	if !s.isSlice {
		i := s.index
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return nil
		}
		return arr[i]
	}

	start, end := 0, n
	if s.start != nil {
		start = clampIndex(*s.start, n)
	}
	if s.end != nil {
		end = clampIndex(*s.end, n)
	}
	if start >= end {
		return []any{}
	}
	return arr[start:end]
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

// parsePath splits a dotted path into parts, respecting brackets
func parsePath(path string) ([]pathPart, error) {
	segments := splitPath(path)
	parts := make([]pathPart, 0, len(segments))

	for _, seg := range segments {
		part := pathPart{key: seg}

		if idx := strings.Index(seg, "["); idx != -1 {
			if !strings.HasSuffix(seg, "]") {
				return nil, fmt.Errorf("%w: %q", ErrMalformedPath, path)
			}
			part.key = seg[:idx]
			sel, err := parseSelector(seg[idx+1 : len(seg)-1])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrMalformedPath, path, err)
			}
			part.selector = sel
		}

		parts = append(parts, part)
	}

	return parts, nil
}

func parseSelector(expr string) (*selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "*" || expr == "" {
		// Wildcards select everything; lists are already traversed element-wise.
		return nil, nil
	}

	if !strings.Contains(expr, ":") {
		i, err := strconv.Atoi(expr)
		if err != nil {
			return nil, err
		}
		return &selector{index: i}, nil
	}

	bounds := strings.SplitN(expr, ":", 2)
	sel := &selector{isSlice: true}
	for i, bound := range bounds {
		bound = strings.TrimSpace(bound)
		if bound == "" {
			continue
		}
		n, err := strconv.Atoi(bound)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			sel.start = &n
		} else {
			sel.end = &n
		}
	}
	return sel, nil
}

// splitPath splits a dot-notation path, respecting array brackets
func splitPath(path string) []string {
	var parts []string
	var current strings.Builder

	inBracket := false
	for _, c := range path {
		switch c {
		case '[':
			inBracket = true
			current.WriteRune(c)
		case ']':
			inBracket = false
			current.WriteRune(c)
		case '.':
			if inBracket {
				current.WriteRune(c)
				continue
			}
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(c)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// lookup applies a key to a value. Lists are mapped element-wise and flattened.
func lookup(data any, key string) any {
	if key == "" {
		return data
	}

	if arr, ok := toArray(data); ok {
		results := make([]any, 0, len(arr))
		for _, item := range arr {
			value := lookup(item, key)
			if value == nil {
				continue
			}
			if nested, ok := toArray(value); ok {
				results = append(results, nested...)
				continue
			}
			results = append(results, value)
		}
		return results
	}

	switch v := data.(type) {
	case map[string]any:
		return v[key]
	case map[string]string:
		if s, ok := v[key]; ok {
			return s
		}
		return nil
	case string, nil:
		return nil
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil
		}
		return value.Interface()
	}

	return nil
}

// ForceList wraps a scalar in a list and returns lists unchanged. nil yields nil.
func ForceList(v any) []any {
	if v == nil {
		return nil
	}
	if arr, ok := toArray(v); ok {
		return arr
	}
	return []any{v}
}

// toArray converts a slice of any element type to []any
func toArray(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		result := make([]any, len(arr))
		for i, s := range arr {
			result[i] = s
		}
		return result, true
	case []map[string]any:
		result := make([]any, len(arr))
		for i, m := range arr {
			result[i] = m
		}
		return result, true
	case nil, string, map[string]any:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is a value, not a list
		return nil, false
	}
	result := make([]any, rv.Len())
	for i := range result {
		result[i] = rv.Index(i).Interface()
	}
	return result, true
}

// IsEmpty reports whether a resolved value carries nothing to match on:
// nil, false, zero numbers, empty strings, lists and maps.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case int64:
		return val == 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
