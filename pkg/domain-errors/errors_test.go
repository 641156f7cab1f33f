package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeValidation, "bad amount")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeNotFound, "ruleset missing"))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches nested domain error", func(t *testing.T) {
		inner := New(CodeInvalidInput, "pan malformed")
		err := Wrap(inner, CodeValidation, "applicant invalid")
		assert.True(t, HasCode(err, CodeValidation))
		assert.True(t, HasCode(err, CodeInvalidInput))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(errors.New("connection refused"), CodeUnavailable, "rule store unavailable")
	assert.Equal(t, "rule store unavailable: connection refused", err.Error())
	assert.Equal(t, "pan malformed", New(CodeInvalidInput, "pan malformed").Error())
}
