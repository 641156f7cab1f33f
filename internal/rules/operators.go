package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Operator is one of the supported comparison operators.
type Operator string

const (
	OpGreaterThan    Operator = ">"
	OpLessThan       Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "not_exists"
	OpMatchesRegex   Operator = "matches_regex"
)

var knownOperators = map[Operator]struct{}{
	OpGreaterThan: {}, OpLessThan: {}, OpGreaterOrEqual: {}, OpLessOrEqual: {},
	OpEqual: {}, OpNotEqual: {}, OpIn: {}, OpNotIn: {},
	OpContains: {}, OpNotContains: {}, OpExists: {}, OpNotExists: {},
	OpMatchesRegex: {},
}

// ParseOperator validates an operator token.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.TrimSpace(s))
	if _, ok := knownOperators[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
	return op, nil
}

// patternCache memoizes compiled patterns, including compile failures.
type patternCache struct {
	entries sync.Map
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

func (c *patternCache) get(pattern string) (*regexp.Regexp, error) {
	if v, ok := c.entries.Load(pattern); ok {
		cp := v.(compiledPattern)
		return cp.re, cp.err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		err = fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	v, _ := c.entries.LoadOrStore(pattern, compiledPattern{re: re, err: err})
	cp := v.(compiledPattern)
	return cp.re, cp.err
}

// Apply tests actual against expected with op. A nil actual means the field
// was absent. Only a malformed pattern or an unknown operator yields an error.
func (c *patternCache) Apply(actual any, op Operator, expected any) (bool, error) {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		cmp, ok := compareOrdered(actual, expected)
		if !ok {
			return false, nil
		}
		switch op {
		case OpGreaterThan:
			return cmp > 0, nil
		case OpLessThan:
			return cmp < 0, nil
		case OpGreaterOrEqual:
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	case OpEqual:
		return looseEqual(actual, expected), nil
	case OpNotEqual:
		return !looseEqual(actual, expected), nil
	case OpIn:
		return member(actual, expected), nil
	case OpNotIn:
		return !member(actual, expected), nil
	case OpContains:
		return contains(actual, expected), nil
	case OpNotContains:
		return !contains(actual, expected), nil
	case OpExists:
		return actual != nil, nil
	case OpNotExists:
		return actual == nil, nil
	case OpMatchesRegex:
		pattern, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("%w: pattern must be a string, got %T", ErrInvalidPattern, expected)
		}
		re, err := c.get(pattern)
		if err != nil {
			return false, err
		}
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		return re.MatchString(s), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// number converts Go numeric kinds and JSON numbers. Strings and bools are
// not numbers for ordering purposes.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Number exposes numeric conversion for callers deriving values from records.
func Number(v any) (float64, bool) {
	return number(v)
}

// looseNumber additionally accepts numeric strings and booleans (as 1/0).
func looseNumber(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func compareOrdered(a, b any) (int, bool) {
	if af, ok := number(a); ok {
		bf, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, ok := a.(string)
	if !ok {
		return 0, false
	}
	bs, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

// looseEqual compares scalars across numeric representations: numbers equal
// numeric strings of the same value and booleans equal 1/0.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	if af, ok := looseNumber(a); ok {
		if bf, ok := looseNumber(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// asList accepts []any and any other slice kind.
func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func member(actual, list any) bool {
	items, ok := asList(list)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEqual(actual, item) {
			return true
		}
	}
	return false
}

func contains(actual, expected any) bool {
	switch a := actual.(type) {
	case string:
		s, ok := expected.(string)
		return ok && strings.Contains(a, s)
	default:
		if _, ok := asList(actual); ok {
			return member(expected, actual)
		}
		return false
	}
}
