package rules

import (
	strutil "loanflow/pkg/platform/strings"
)

// RunCategory evaluates every applicable rule of cat against doc. Exclusive
// subcategories contribute only their selected bucket; skipped siblings are
// not tallied. With stopOnReject the run ends at the first fired reject rule
// and the partial result is returned.
func (e *Evaluator) RunCategory(cat *Category, doc map[string]any, stopOnReject bool) CategoryResult {
	start := e.now()
	res := CategoryResult{
		Category:         cat.Name,
		MaxPossibleScore: cat.MaxPossibleScore(),
		Action:           ActionApprove,
		Flags:            []string{},
		Messages:         []string{},
		Rules:            []RuleResult{},
	}

	for _, sub := range cat.Subcategories {
		selected := sub.Rules
		if sub.Exclusive {
			idx := SelectBucket(sub, doc)
			if idx < 0 {
				continue
			}
			selected = sub.Rules[idx : idx+1]
		}

		for _, rule := range selected {
			rr := e.Execute(rule, doc)
			rr.Subcategory = sub.Name
			rr.Bucket = sub.Exclusive
			res.record(rr)

			if stopOnReject && rr.Fired() && rr.Action == ActionReject {
				res.Stopped = true
				res.finish()
				res.Duration = e.now().Sub(start)
				return res
			}
		}
	}

	res.finish()
	res.Duration = e.now().Sub(start)
	return res
}

func (res *CategoryResult) record(rr RuleResult) {
	res.Rules = append(res.Rules, rr)
	res.TotalScore += rr.Score
	res.TotalRules++

	if !rr.Applicable() {
		res.NotApplicable++
		return
	}
	if rr.Passed {
		res.PassedRules++
	} else {
		res.FailedRules++
	}

	if rr.Error != "" {
		res.Messages = append(res.Messages, rr.Message)
		return
	}
	if !rr.ConditionMet {
		return
	}
	if rr.Flag != "" {
		res.Flags = append(res.Flags, rr.Flag)
	}
	if rr.Message != "" {
		res.Messages = append(res.Messages, rr.Message)
	}
	switch rr.Action {
	case ActionReject:
		res.Action = ActionReject
		if rr.Message != "" {
			res.RejectReasons = append(res.RejectReasons, rr.Message)
		} else {
			res.RejectReasons = append(res.RejectReasons, "rule "+rr.RuleID+" rejected the application")
		}
	case ActionConditional:
		res.Action = Dominant(res.Action, ActionConditional)
	}
}

func (res *CategoryResult) finish() {
	res.Flags = strutil.DedupeAndTrim(res.Flags)
}
