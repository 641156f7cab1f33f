package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		op       Operator
		expected any
		want     bool
	}{
		{"gt numeric", 780, OpGreaterThan, 750, true},
		{"gt across kinds", 780.0, OpGreaterThan, int64(750), true},
		{"gt json number", json.Number("120000"), OpGreaterThan, 100000, true},
		{"lt missing is false", nil, OpLessThan, 21, false},
		{"gte equal", 21, OpGreaterOrEqual, 21.0, true},
		{"lte strings lexicographic", "alpha", OpLessOrEqual, "beta", true},
		{"ordering does not coerce strings", "800", OpGreaterThan, 750, false},
		{"eq loose numeric string", "750", OpEqual, 750, true},
		{"eq bool to number", true, OpEqual, 1, true},
		{"eq bool", false, OpEqual, false, true},
		{"eq nil nil", nil, OpEqual, nil, true},
		{"eq missing vs value", nil, OpEqual, false, false},
		{"neq strings", "salaried", OpNotEqual, "self_employed", true},
		{"in list", "salaried", OpIn, []any{"salaried", "self_employed"}, true},
		{"in loose numeric", "3", OpIn, []any{1, 2, 3}, true},
		{"not_in list", "student", OpNotIn, []any{"salaried", "self_employed"}, true},
		{"not_in missing", nil, OpNotIn, []any{"salaried"}, true},
		{"in typed slice", "b", OpIn, []string{"a", "b"}, true},
		{"contains substring", "Kumar Ravi", OpContains, "Ravi", true},
		{"contains list member", []any{"card", "loan"}, OpContains, "loan", true},
		{"contains non text", 42, OpContains, "4", false},
		{"not_contains substring", "Kumar Ravi", OpNotContains, "Singh", true},
		{"exists", 0, OpExists, nil, true},
		{"exists missing", nil, OpExists, nil, false},
		{"not_exists missing", nil, OpNotExists, nil, true},
		{"regex match", "ABCDE1234F", OpMatchesRegex, `^[A-Z]{5}[0-9]{4}[A-Z]$`, true},
		{"regex no match", "INVALID123", OpMatchesRegex, `^[A-Z]{5}[0-9]{4}[A-Z]$`, false},
		{"regex non string actual", 1234, OpMatchesRegex, `\d+`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.actual, tt.op, tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_Errors(t *testing.T) {
	t.Run("malformed pattern is an evaluation error", func(t *testing.T) {
		_, err := Apply("abc", OpMatchesRegex, "([")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})

	t.Run("unknown operator", func(t *testing.T) {
		_, err := Apply(1, Operator("between"), 2)
		assert.ErrorIs(t, err, ErrUnknownOperator)
	})
}

func TestParseOperator(t *testing.T) {
	op, err := ParseOperator(" >= ")
	require.NoError(t, err)
	assert.Equal(t, OpGreaterOrEqual, op)

	_, err = ParseOperator("gte")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestPatternCache_ReusesCompiledPattern(t *testing.T) {
	var c patternCache
	first, err := c.get(`^\d{4}$`)
	require.NoError(t, err)
	second, err := c.get(`^\d{4}$`)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = c.get("([")
	require.Error(t, err)
	_, again := c.get("([")
	assert.Equal(t, err, again)
}
