package rules

import (
	"context"
	"log/slog"
	"time"
)

// Evaluator executes rules and categories against applicant records. It holds
// no per-record state and is safe for concurrent use.
type Evaluator struct {
	logger   *slog.Logger
	patterns *patternCache
	now      func() time.Time
}

// NewEvaluator builds an evaluator that reports evaluation errors to logger.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{logger: logger, patterns: &patternCache{}, now: time.Now}
}

// conditionsMet combines conditions with the rule's logic. An empty set is
// vacuously true. AND stops at the first false, OR at the first true.
func (e *Evaluator) conditionsMet(rule Rule, doc map[string]any) (bool, error) {
	if len(rule.Conditions) == 0 {
		return true, nil
	}
	if rule.Logic == LogicOr {
		for _, c := range rule.Conditions {
			ok, err := e.evaluateCondition(c, doc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	for _, c := range rule.Conditions {
		ok, err := e.evaluateCondition(c, doc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Execute evaluates one rule. Approve rules pass when their condition holds.
// Reject and conditional rules fire (and so fail) when their condition holds
// and are otherwise not applicable. Score counts only when the condition holds.
// Evaluation errors are logged and recorded on the result as a failure.
func (e *Evaluator) Execute(rule Rule, doc map[string]any) RuleResult {
	res := RuleResult{
		RuleID:   rule.ID,
		Action:   rule.Action,
		Severity: rule.Severity,
	}

	met, err := e.conditionsMet(rule, doc)
	if err != nil {
		e.logger.LogAttrs(context.Background(), slog.LevelWarn, "rule evaluation error",
			slog.String("rule_id", rule.ID),
			slog.String("error", err.Error()),
		)
		res.Error = err.Error()
		res.Message = "evaluation error: " + err.Error()
		return res
	}

	res.ConditionMet = met
	if !met {
		return res
	}
	res.Passed = rule.Action == ActionApprove
	res.Score = rule.Score
	res.Message = rule.Message
	res.Flag = rule.Flag
	return res
}
