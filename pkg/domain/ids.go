package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "loanflow/pkg/domain-errors"
)

// ApplicationID identifies one onboarding application across stages and audit entries.
type ApplicationID uuid.UUID

// NewApplicationID returns a random application ID.
func NewApplicationID() ApplicationID {
	return ApplicationID(uuid.New())
}

// ParseApplicationID validates s as a non-nil UUID.
func ParseApplicationID(s string) (ApplicationID, error) {
	if s == "" {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidInput, "application id is required")
	}
	if len(s) > 64 || !utf8.ValidString(s) {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid application id format")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ApplicationID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid application id format")
	}
	if parsed == uuid.Nil {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidInput, "application id cannot be nil")
	}
	return ApplicationID(parsed), nil
}

func (id ApplicationID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero UUID.
func (id ApplicationID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// PAN is a permanent account number: five letters, four digits, one letter.
type PAN string

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// ParsePAN upper-cases and validates a PAN.
func ParsePAN(s string) (PAN, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "pan is required")
	}
	if !panPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "pan must match AAAAA9999A")
	}
	return PAN(normalized), nil
}

func (p PAN) String() string {
	return string(p)
}

// Last4 returns the trailing four characters of a secondary identity number
// with separators removed, or "" when fewer than four digits remain.
func Last4(secondaryID string) string {
	digits := make([]rune, 0, len(secondaryID))
	for _, r := range secondaryID {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
