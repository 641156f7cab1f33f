package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil stays nil", nil, nil},
		{"empty stays empty", []string{}, []string{}},
		{"flags repeated across rules", []string{"high_foir", "low_credit_score", "high_foir"}, []string{"high_foir", "low_credit_score"}},
		{"blank messages dropped", []string{"", "  ", "submit salary slips"}, []string{"submit salary slips"}},
		{"padding trimmed before comparing", []string{" fair_credit_score", "fair_credit_score "}, []string{"fair_credit_score"}},
		{"case is significant", []string{"PAN", "pan"}, []string{"PAN", "pan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}
