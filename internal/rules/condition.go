package rules

import (
	"loanflow/pkg/record"
)

// Resolve walks a dotted path over the record. Missing steps yield
// (nil, false) rather than an error.
func Resolve(doc map[string]any, path string) (any, bool) {
	return record.Lookup(doc, path)
}

// Apply evaluates a single operator using a throwaway pattern cache. Hot paths
// go through an Evaluator, which keeps its compiled patterns.
func Apply(actual any, op Operator, expected any) (bool, error) {
	var c patternCache
	return c.Apply(actual, op, expected)
}

func (e *Evaluator) evaluateCondition(c Condition, doc map[string]any) (bool, error) {
	actual, _ := Resolve(doc, c.Field)
	return e.patterns.Apply(actual, c.Operator, c.Value)
}
