package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const creditDoc = `
version: "1.0"
metadata:
  owner: tests
cibil_rules:
  score_band:
    exclusive: true
    selector_field: credit_report.cibil_score
    rules:
      excellent:
        bucket: { min: 750, max: 900 }
        action: approve
        score: 40
      poor:
        bucket: { min: 300, max: 549 }
        action: reject
        score: 0
        message: CIBIL score below 550
        flag: low_credit_score
      fair:
        bucket: { min: 550, max: 649 }
        action: conditional
        score: 10
        message: fair band
        flag: fair_credit_score
      good:
        bucket: { min: 650, max: 749 }
        action: approve
        score: 25
  behaviour:
    defaults:
      conditions:
        - { field: credit_report.defaults, operator: ">", value: 0 }
      action: reject
      score: -20
      message: Loan defaults found
      flag: credit_default
    history:
      conditions:
        - { field: credit_report.credit_history_length, operator: ">=", value: 24 }
      action: approve
      score: 5
    utilization:
      conditions:
        - { field: credit_report.credit_utilization, operator: ">", value: 75 }
      action: conditional
      message: High utilization
      flag: high_utilization
kyc_rules:
  identity:
    name_match:
      conditions:
        - { field: identity.name_match, operator: "==", value: true }
      action: approve
      score: 20
    always:
      action: approve
      score: 5
risk_rules:
  flags:
    young:
      conditions:
        - { field: applicant.age, operator: "<", value: 25 }
      action: conditional
      message: Young applicant
      flag: young
rule_execution_config:
  execution_order: [kyc_rules, cibil_rules, risk_rules]
  stop_on_reject: false
  scoring_weights:
    cibil_rules: 2.0
  minimum_score_threshold: 50
`

func mustParse(t *testing.T, doc string) *Ruleset {
	t.Helper()
	rs, err := Parse([]byte(doc))
	require.NoError(t, err)
	return rs
}

func applicant(score any, nameMatch bool) map[string]any {
	return map[string]any{
		"applicant": map[string]any{"age": 34},
		"identity":  map[string]any{"name_match": nameMatch},
		"credit_report": map[string]any{
			"cibil_score":           score,
			"defaults":              0,
			"credit_history_length": 36,
			"credit_utilization":    30,
		},
	}
}

type staticSource struct {
	data []byte
	err  error
}

func (s *staticSource) Load(context.Context) ([]byte, error) {
	return s.data, s.err
}
