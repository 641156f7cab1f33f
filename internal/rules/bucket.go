package rules

// SelectBucket picks the index of the rule in an exclusive subcategory whose
// inclusive range contains the selector field's value. Absent, non-numeric or
// out-of-range values fall to the lowest bucket. Rules are sorted ascending by
// bucket minimum at compile time, so index 0 is the most conservative.
func SelectBucket(sub Subcategory, doc map[string]any) int {
	if len(sub.Rules) == 0 {
		return -1
	}
	raw, ok := Resolve(doc, sub.SelectorField)
	if !ok {
		return 0
	}
	v, ok := looseNumber(raw)
	if !ok {
		return 0
	}
	if _, isBool := raw.(bool); isBool {
		return 0
	}
	for i, r := range sub.Rules {
		if r.Bucket != nil && r.Bucket.Contains(v) {
			return i
		}
	}
	return 0
}
