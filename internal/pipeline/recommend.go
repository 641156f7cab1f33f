package pipeline

import (
	"regexp"
)

type recommendationRule struct {
	pattern  *regexp.Regexp
	field    string
	severity string
	message  string
}

// recommendationRules are tried in order against each rejection reason; the
// first match wins for that reason.
var recommendationRules = []recommendationRule{
	{regexp.MustCompile(`(?i)\b(unavailable|timed out)\b`), "retry", "low",
		"A verification service was unavailable; retry the application later"},
	{regexp.MustCompile(`(?i)\bdate of birth\b`), "date_of_birth", "high",
		"Provide the date of birth exactly as printed on the PAN card"},
	{regexp.MustCompile(`(?i)\b(name mismatch|verified name)\b`), "name", "high",
		"Make sure the declared name matches the name registered with the PAN"},
	{regexp.MustCompile(`(?i)\bsecondary (id|identity)\b`), "secondary_id", "medium",
		"Re-enter the secondary identity number or complete its verification"},
	{regexp.MustCompile(`(?i)\bpan\b`), "pan", "high",
		"Check that the PAN is entered correctly in the format AAAAA9999A"},
	{regexp.MustCompile(`(?i)\bidentity\b`), "identity", "high",
		"Complete identity verification with valid documents"},
	{regexp.MustCompile(`(?i)\b(cibil|credit score)\b`), "credit_score", "high",
		"Improve the credit score by clearing dues on time before reapplying"},
	{regexp.MustCompile(`(?i)\bdefaults?\b`), "credit_history", "critical",
		"Settle outstanding defaults and obtain a no-dues certificate"},
	{regexp.MustCompile(`(?i)\butili[sz]ation\b`), "credit_utilization", "medium",
		"Reduce revolving credit usage below 30 percent of the limit"},
	{regexp.MustCompile(`(?i)\binquir`), "credit_inquiries", "low",
		"Avoid new credit applications for the next six months"},
	{regexp.MustCompile(`(?i)\b(foir|obligations?|emi burden)\b`), "existing_obligations", "high",
		"Close or consolidate existing loans to lower monthly obligations"},
	{regexp.MustCompile(`(?i)\bemployment tenure\b`), "employment_tenure", "medium",
		"Reapply after completing at least one year with the current employer"},
	{regexp.MustCompile(`(?i)\bemployment type\b`), "employment_type", "high",
		"Only salaried and self-employed applicants are eligible"},
	{regexp.MustCompile(`(?i)\bincome\b`), "monthly_income", "high",
		"Add a co-applicant or provide additional income proof"},
	{regexp.MustCompile(`(?i)\b(years old|age exceeds)\b`), "age", "high",
		"The applicant must be between 21 and 60 years old"},
	{regexp.MustCompile(`(?i)\bamount\b`), "loan_amount", "medium",
		"Request an amount within the eligible range"},
	{regexp.MustCompile(`(?i)\btenure\b`), "loan_tenure", "medium",
		"Choose a tenure between 12 and 84 months"},
}

var fallbackRecommendation = Recommendation{
	Field:    "application",
	Severity: "medium",
	Message:  "Review the application details and contact support for assistance",
}

// Recommend maps rejection reasons to remediation advice, one entry per
// field. The result is never empty.
func Recommend(reasons []string) []Recommendation {
	seen := make(map[string]struct{})
	var out []Recommendation
	for _, reason := range reasons {
		for _, rule := range recommendationRules {
			if !rule.pattern.MatchString(reason) {
				continue
			}
			if _, dup := seen[rule.field]; !dup {
				seen[rule.field] = struct{}{}
				out = append(out, Recommendation{
					Field:    rule.field,
					Severity: rule.severity,
					Message:  rule.message,
					Reason:   reason,
				})
			}
			break
		}
	}
	if len(out) == 0 {
		rec := fallbackRecommendation
		if len(reasons) > 0 {
			rec.Reason = reasons[0]
		}
		out = append(out, rec)
	}
	return out
}
