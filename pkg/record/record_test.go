package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() map[string]any {
	return map[string]any{
		"applicant": map[string]any{
			"first_name": "Ravi",
			"income":     120000.0,
		},
		"credit_report": map[string]any{
			"accounts": []any{
				map[string]any{"type": "card", "overdue": 0.0},
				map[string]any{"type": "loan", "overdue": 2.0},
			},
		},
	}
}

func TestLookup(t *testing.T) {
	doc := sampleRecord()

	t.Run("nested key", func(t *testing.T) {
		v, ok := Lookup(doc, "applicant.first_name")
		require.True(t, ok)
		assert.Equal(t, "Ravi", v)
	})

	t.Run("array index", func(t *testing.T) {
		v, ok := Lookup(doc, "credit_report.accounts.1.type")
		require.True(t, ok)
		assert.Equal(t, "loan", v)
	})

	t.Run("missing intermediate yields absent without error", func(t *testing.T) {
		_, ok := Lookup(doc, "employment.employer.name")
		assert.False(t, ok)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, ok := Lookup(doc, "credit_report.accounts.7.type")
		assert.False(t, ok)
	})

	t.Run("descending into a scalar", func(t *testing.T) {
		_, ok := Lookup(doc, "applicant.first_name.length")
		assert.False(t, ok)
	})
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := sampleRecord()
	delta := map[string]any{
		"applicant":     map[string]any{"age": 34},
		"credit_report": map[string]any{"cibil_score": 780},
	}

	merged := Merge(base, delta)

	age, ok := Lookup(merged, "applicant.age")
	require.True(t, ok)
	assert.Equal(t, 34, age)
	name, _ := Lookup(merged, "applicant.first_name")
	assert.Equal(t, "Ravi", name)
	accounts, ok := Lookup(merged, "credit_report.accounts.0.type")
	require.True(t, ok)
	assert.Equal(t, "card", accounts)

	_, ok = Lookup(base, "applicant.age")
	assert.False(t, ok, "base must not see the delta")

	merged["applicant"].(map[string]any)["first_name"] = "changed"
	name, _ = Lookup(base, "applicant.first_name")
	assert.Equal(t, "Ravi", name, "merged copy must not alias base maps")
}

func TestSet(t *testing.T) {
	delta := Set("employment.foir", 0.25)
	v, ok := Lookup(delta, "employment.foir")
	require.True(t, ok)
	assert.Equal(t, 0.25, v)
}
