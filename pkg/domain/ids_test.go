package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "loanflow/pkg/domain-errors"
)

func TestParseApplicationID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty string", "", true},
		{"nil UUID", uuid.Nil.String(), true},
		{"not a uuid", "application-1", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"valid UUID", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseApplicationID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("round trips", func(t *testing.T) {
		id := NewApplicationID()
		parsed, err := ParseApplicationID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.False(t, parsed.IsNil())
	})
}

func TestParsePAN(t *testing.T) {
	t.Run("normalizes case and whitespace", func(t *testing.T) {
		pan, err := ParsePAN("  abcde1234f ")
		require.NoError(t, err)
		assert.Equal(t, PAN("ABCDE1234F"), pan)
	})

	for _, input := range []string{"", "INVALID123", "ABCD1234F", "ABCDE12345", "12345ABCDE"} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ParsePAN(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestLast4(t *testing.T) {
	assert.Equal(t, "9012", Last4("1234 5678 9012"))
	assert.Equal(t, "9012", Last4("XXXX-XXXX-9012"))
	assert.Equal(t, "", Last4("XX12"))
}
