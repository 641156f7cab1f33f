package rules

import (
	"time"
)

// Action is the verdict a rule votes for when its condition holds.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionConditional Action = "conditional"
	ActionReject      Action = "reject"
)

func (a Action) rank() int {
	switch a {
	case ActionReject:
		return 2
	case ActionConditional:
		return 1
	default:
		return 0
	}
}

// Dominant returns whichever of a and b takes precedence:
// reject over conditional over approve.
func Dominant(a, b Action) Action {
	if b.rank() > a.rank() {
		return b
	}
	if a == "" {
		return ActionApprove
	}
	return a
}

func (a Action) valid() bool {
	return a == ActionApprove || a == ActionConditional || a == ActionReject
}

// Logic combines a rule's conditions.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition tests one field of the applicant record.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Range is an inclusive numeric interval used to key exclusive buckets.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Rule is immutable after compilation.
type Rule struct {
	ID         string      `json:"id"`
	Conditions []Condition `json:"conditions"`
	Logic      Logic       `json:"logic"`
	Action     Action      `json:"action"`
	Severity   string      `json:"severity,omitempty"`
	Score      float64     `json:"score"`
	Message    string      `json:"message,omitempty"`
	Flag       string      `json:"flag,omitempty"`
	Bucket     *Range      `json:"bucket,omitempty"`
}

// Subcategory groups rules. An exclusive subcategory evaluates only the one
// rule whose bucket contains the selector field's value; its rules are kept
// sorted ascending by bucket minimum.
type Subcategory struct {
	Name          string `json:"name"`
	Exclusive     bool   `json:"exclusive,omitempty"`
	SelectorField string `json:"selector_field,omitempty"`
	Rules         []Rule `json:"rules"`
}

// Category is a named collection of subcategories, in document order.
type Category struct {
	Name          string        `json:"name"`
	Subcategories []Subcategory `json:"subcategories"`

	maxPossibleScore float64
}

// MaxPossibleScore is the best attainable score: every positive ordinary rule
// plus the single best positive bucket of each exclusive subcategory.
func (c *Category) MaxPossibleScore() float64 {
	return c.maxPossibleScore
}

// RuleCount is the number of rules declared in the category.
func (c *Category) RuleCount() int {
	n := 0
	for _, sub := range c.Subcategories {
		n += len(sub.Rules)
	}
	return n
}

func computeMaxPossibleScore(c *Category) float64 {
	var total float64
	for _, sub := range c.Subcategories {
		if sub.Exclusive {
			var best float64
			for _, r := range sub.Rules {
				if r.Score > best {
					best = r.Score
				}
			}
			total += best
			continue
		}
		for _, r := range sub.Rules {
			if r.Score > 0 {
				total += r.Score
			}
		}
	}
	return total
}

// ExecutionConfig controls cross-category evaluation.
type ExecutionConfig struct {
	ExecutionOrder        []string           `json:"execution_order"`
	StopOnReject          bool               `json:"stop_on_reject"`
	ScoringWeights        map[string]float64 `json:"scoring_weights,omitempty"`
	MinimumScoreThreshold float64            `json:"minimum_score_threshold"`
}

// DefaultWeight applies to categories without a configured scoring weight.
const DefaultWeight = 1.0

// Ruleset is a compiled, read-only rule configuration document.
type Ruleset struct {
	Version   string               `json:"version"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	Execution ExecutionConfig      `json:"rule_execution_config"`
	Warnings  []string             `json:"warnings,omitempty"`
	LoadedAt  time.Time            `json:"loaded_at"`
	Names     []string             `json:"categories"`
	Index     map[string]*Category `json:"-"`
}

// Category looks up a category by name.
func (rs *Ruleset) Category(name string) (*Category, bool) {
	c, ok := rs.Index[name]
	return c, ok
}

// Weight returns the configured scoring weight for a category.
func (rs *Ruleset) Weight(name string) float64 {
	if w, ok := rs.Execution.ScoringWeights[name]; ok {
		return w
	}
	return DefaultWeight
}

// RuleResult is the outcome of executing one rule against one record.
type RuleResult struct {
	RuleID       string  `json:"rule_id"`
	Subcategory  string  `json:"subcategory"`
	Passed       bool    `json:"passed"`
	ConditionMet bool    `json:"condition_met"`
	Action       Action  `json:"action"`
	Severity     string  `json:"severity,omitempty"`
	Score        float64 `json:"score"`
	Message      string  `json:"message,omitempty"`
	Flag         string  `json:"flag,omitempty"`
	Error        string  `json:"error,omitempty"`
	// Bucket marks the rule selected from an exclusive subcategory.
	Bucket bool `json:"bucket,omitempty"`
}

// Fired reports whether a reject or conditional rule actively triggered.
func (r RuleResult) Fired() bool {
	return r.ConditionMet && r.Action != ActionApprove
}

// Applicable is false for reject and conditional rules whose condition did
// not hold; those are excluded from pass/fail tallies.
func (r RuleResult) Applicable() bool {
	return r.Action == ActionApprove || r.ConditionMet || r.Error != ""
}

// CategoryResult aggregates one category run.
type CategoryResult struct {
	Category         string        `json:"category"`
	TotalRules       int           `json:"total_rules"`
	PassedRules      int           `json:"passed_rules"`
	FailedRules      int           `json:"failed_rules"`
	NotApplicable    int           `json:"not_applicable"`
	TotalScore       float64       `json:"total_score"`
	MaxPossibleScore float64       `json:"max_possible_score"`
	Flags            []string      `json:"flags"`
	Messages         []string      `json:"messages"`
	RejectReasons    []string      `json:"reject_reasons,omitempty"`
	Action           Action        `json:"action"`
	Stopped          bool          `json:"stopped,omitempty"`
	Rules            []RuleResult  `json:"rules"`
	Duration         time.Duration `json:"duration"`
}

// SelectedBucket returns the rule chosen from the category's exclusive
// subcategory, if it has one and a bucket was selected.
func (c CategoryResult) SelectedBucket() (RuleResult, bool) {
	for _, r := range c.Rules {
		if r.Bucket {
			return r, true
		}
	}
	return RuleResult{}, false
}

// Summary counts what a cross-category run touched.
type Summary struct {
	CategoriesRun     int      `json:"categories_run"`
	CategoriesSkipped []string `json:"categories_skipped,omitempty"`
	Missing           []string `json:"missing,omitempty"`
	TotalRules        int      `json:"total_rules"`
	PassedRules       int      `json:"passed_rules"`
	FailedRules       int      `json:"failed_rules"`
	Stopped           bool     `json:"stopped,omitempty"`
}

// Assessment is the cross-category verdict for one record.
type Assessment struct {
	ConfigVersion  string                    `json:"config_version"`
	Categories     map[string]CategoryResult `json:"categories"`
	Order          []string                  `json:"order"`
	RawScore       float64                   `json:"raw_score"`
	WeightedScore  float64                   `json:"weighted_score"`
	Flags          []string                  `json:"flags"`
	Action         Action                    `json:"action"`
	Recommendation string                    `json:"recommendation,omitempty"`
	Summary        Summary                   `json:"summary"`
}
