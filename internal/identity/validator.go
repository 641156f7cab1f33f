// Package identity compares applicant-declared identity details with the
// details returned by an identity bureau.
package identity

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"loanflow/pkg/domain"
)

// Flags raised by Validate, one per mismatch kind.
const (
	FlagNameMismatch        = "name_mismatch"
	FlagDOBMismatch         = "dob_mismatch"
	FlagSecondaryIDMismatch = "secondary_id_mismatch"
	FlagPANMismatch         = "pan_mismatch"
	FlagIdentityInvalid     = "identity_invalid"
)

// dateLayouts are the accepted date-of-birth encodings, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	time.RFC3339,
}

// Declared is what the applicant submitted.
type Declared struct {
	FirstName   string
	LastName    string
	DateOfBirth string
	PAN         string
	SecondaryID string
}

// Verified is what the bureau returned.
type Verified struct {
	IsValid           bool
	FullName          string
	DateOfBirth       string
	PAN               string
	MaskedSecondaryID string
}

// Result collects every mismatch found; Passed is true only when there are none.
type Result struct {
	Passed    bool      `json:"passed"`
	Reasons   []string  `json:"reasons,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
	NameMatch NameMatch `json:"name_match"`
	DOBMatch  bool      `json:"dob_match"`
	PANMatch  bool      `json:"pan_match"`
	// SecondaryChecked is false when the bureau returned no masked secondary id.
	SecondaryChecked bool `json:"secondary_checked"`
	SecondaryMatch   bool `json:"secondary_match"`
}

func (r *Result) fail(flag, reason string) {
	r.Flags = append(r.Flags, flag)
	r.Reasons = append(r.Reasons, reason)
}

// Validator applies the identity checks.
type Validator struct {
	threshold float64
	logger    *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithThreshold overrides the name similarity threshold.
func WithThreshold(t float64) Option {
	return func(v *Validator) {
		if t > 0 && t <= 1 {
			v.threshold = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator builds a Validator with the default threshold.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		threshold: DefaultSimilarityThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MatchNames is MatchNames with the validator's threshold.
func (v *Validator) MatchNames(first, last, verifiedFull string) NameMatch {
	return matchNames(first, last, verifiedFull, v.threshold)
}

// Validate runs every check and collects all mismatches rather than stopping
// at the first.
func (v *Validator) Validate(declared Declared, verified Verified) Result {
	res := Result{}

	if !verified.IsValid {
		res.fail(FlagIdentityInvalid, "identity bureau reported the identity as invalid")
	}

	res.NameMatch = v.MatchNames(declared.FirstName, declared.LastName, verified.FullName)
	if !res.NameMatch.Passed {
		res.fail(FlagNameMismatch, res.NameMatch.Reason)
	}

	res.DOBMatch = sameDate(declared.DateOfBirth, verified.DateOfBirth)
	if !res.DOBMatch {
		res.fail(FlagDOBMismatch, fmt.Sprintf("date of birth mismatch: declared %q, verified %q",
			declared.DateOfBirth, verified.DateOfBirth))
	}

	if verifiedLast4 := domain.Last4(verified.MaskedSecondaryID); verifiedLast4 != "" {
		res.SecondaryChecked = true
		res.SecondaryMatch = domain.Last4(declared.SecondaryID) == verifiedLast4
		if !res.SecondaryMatch {
			res.fail(FlagSecondaryIDMismatch, "secondary id last 4 digits mismatch")
		}
	}

	res.PANMatch = declared.PAN != "" && strings.EqualFold(strings.TrimSpace(declared.PAN), strings.TrimSpace(verified.PAN))
	if !res.PANMatch {
		res.fail(FlagPANMismatch, "PAN mismatch between application and identity bureau")
	}

	res.Passed = len(res.Reasons) == 0
	if !res.Passed {
		v.logger.Debug("identity validation failed",
			"flags", res.Flags,
			"name_similarity", res.NameMatch.Similarity,
		)
	}
	return res
}

// ParseDate parses a date of birth in any accepted layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sameDate(a, b string) bool {
	ta, okA := ParseDate(a)
	tb, okB := ParseDate(b)
	if !okA || !okB {
		return false
	}
	ya, ma, da := ta.Date()
	yb, mb, db := tb.Date()
	return ya == yb && ma == mb && da == db
}
