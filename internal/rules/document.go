package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	keyVersion   = "version"
	keyMetadata  = "metadata"
	keyExecution = "rule_execution_config"
)

type conditionDoc struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

type bucketDoc struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type ruleDoc struct {
	Conditions []conditionDoc `yaml:"conditions"`
	Logic      string         `yaml:"logic"`
	Action     string         `yaml:"action"`
	Severity   string         `yaml:"severity"`
	Score      float64        `yaml:"score"`
	Message    string         `yaml:"message"`
	Flag       string         `yaml:"flag"`
	Bucket     *bucketDoc     `yaml:"bucket"`
}

type executionDoc struct {
	ExecutionOrder        []string           `yaml:"execution_order"`
	StopOnReject          bool               `yaml:"stop_on_reject"`
	ScoringWeights        map[string]float64 `yaml:"scoring_weights"`
	MinimumScoreThreshold float64            `yaml:"minimum_score_threshold"`
}

// Parse decodes a YAML or JSON rule document and compiles it into a Ruleset.
// Category and rule order follow the document.
func Parse(data []byte) (*Ruleset, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &ConfigError{Err: errors.New("empty document")}
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parse document: %w", err)}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &ConfigError{Err: errors.New("document must be a mapping")}
	}
	return compile(root.Content[0])
}

func compile(doc *yaml.Node) (*Ruleset, error) {
	rs := &Ruleset{
		Index:    map[string]*Category{},
		LoadedAt: time.Now().UTC(),
	}
	var sawExecution bool

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i].Value, doc.Content[i+1]
		switch key {
		case keyVersion:
			if err := val.Decode(&rs.Version); err != nil {
				return nil, configErr(key, "decode: %v", err)
			}
		case keyMetadata:
			if err := val.Decode(&rs.Metadata); err != nil {
				return nil, configErr(key, "decode: %v", err)
			}
		case keyExecution:
			var ed executionDoc
			if err := val.Decode(&ed); err != nil {
				return nil, configErr(key, "decode: %v", err)
			}
			rs.Execution = ExecutionConfig(ed)
			sawExecution = true
		default:
			if val.Kind != yaml.MappingNode {
				rs.Warnings = append(rs.Warnings, fmt.Sprintf("ignoring non-mapping key %q", key))
				continue
			}
			cat, err := compileCategory(key, val)
			if err != nil {
				return nil, err
			}
			rs.Index[key] = cat
			rs.Names = append(rs.Names, key)
		}
	}

	if strings.TrimSpace(rs.Version) == "" {
		return nil, &ConfigError{Path: keyVersion, Err: ErrMissingVersion}
	}
	if !sawExecution {
		rs.Warnings = append(rs.Warnings, "rule_execution_config missing; using document order")
	}
	for _, name := range rs.Execution.ExecutionOrder {
		if _, ok := rs.Index[name]; !ok {
			rs.Warnings = append(rs.Warnings, fmt.Sprintf("execution_order names missing category %q", name))
		}
	}
	return rs, nil
}

func compileCategory(name string, node *yaml.Node) (*Category, error) {
	cat := &Category{Name: name}
	seen := map[string]string{}

	for i := 0; i+1 < len(node.Content); i += 2 {
		subName, subNode := node.Content[i].Value, node.Content[i+1]
		path := name + "." + subName
		if subNode.Kind != yaml.MappingNode {
			return nil, configErr(path, "subcategory must be a mapping")
		}

		sub := Subcategory{Name: subName}
		rulesNode := subNode
		if isStructuredSubcategory(subNode) {
			var header struct {
				Exclusive     bool      `yaml:"exclusive"`
				SelectorField string    `yaml:"selector_field"`
				Rules         yaml.Node `yaml:"rules"`
			}
			if err := subNode.Decode(&header); err != nil {
				return nil, configErr(path, "decode: %v", err)
			}
			sub.Exclusive = header.Exclusive
			sub.SelectorField = header.SelectorField
			rulesNode = &header.Rules
			if rulesNode.Kind != yaml.MappingNode {
				return nil, configErr(path+".rules", "rules must be a mapping")
			}
		}

		for j := 0; j+1 < len(rulesNode.Content); j += 2 {
			ruleID, ruleNode := rulesNode.Content[j].Value, rulesNode.Content[j+1]
			rulePath := path + "." + ruleID
			if prev, dup := seen[ruleID]; dup {
				return nil, configErr(rulePath, "duplicate rule id (also in %s)", prev)
			}
			seen[ruleID] = subName

			rule, err := compileRule(ruleID, rulePath, ruleNode)
			if err != nil {
				return nil, err
			}
			if rule.Bucket != nil && !sub.Exclusive {
				return nil, configErr(rulePath, "bucket declared outside an exclusive subcategory")
			}
			sub.Rules = append(sub.Rules, rule)
		}

		if sub.Exclusive {
			if err := validateBuckets(path, &sub); err != nil {
				return nil, err
			}
		}
		cat.Subcategories = append(cat.Subcategories, sub)
	}

	cat.maxPossibleScore = computeMaxPossibleScore(cat)
	return cat, nil
}

func isStructuredSubcategory(node *yaml.Node) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "exclusive", "selector_field":
			return true
		}
	}
	return false
}

func compileRule(id, path string, node *yaml.Node) (Rule, error) {
	var rd ruleDoc
	if err := node.Decode(&rd); err != nil {
		return Rule{}, configErr(path, "decode: %v", err)
	}

	rule := Rule{
		ID:       id,
		Severity: rd.Severity,
		Score:    rd.Score,
		Message:  rd.Message,
		Flag:     rd.Flag,
	}

	switch strings.ToUpper(strings.TrimSpace(rd.Logic)) {
	case "", string(LogicAnd):
		rule.Logic = LogicAnd
	case string(LogicOr):
		rule.Logic = LogicOr
	default:
		return Rule{}, configErr(path, "unknown logic %q", rd.Logic)
	}

	rule.Action = Action(strings.ToLower(strings.TrimSpace(rd.Action)))
	if rule.Action == "" {
		rule.Action = ActionApprove
	}
	if !rule.Action.valid() {
		return Rule{}, configErr(path, "unknown action %q", rd.Action)
	}

	for k, cd := range rd.Conditions {
		cpath := fmt.Sprintf("%s.conditions[%d]", path, k)
		op, err := ParseOperator(cd.Operator)
		if err != nil {
			return Rule{}, &ConfigError{Path: cpath, Err: err}
		}
		if strings.TrimSpace(cd.Field) == "" {
			return Rule{}, configErr(cpath, "field is required")
		}
		switch op {
		case OpIn, OpNotIn:
			if _, ok := asList(cd.Value); !ok {
				return Rule{}, configErr(cpath, "operator %s requires a list value", op)
			}
		case OpMatchesRegex:
			if _, ok := cd.Value.(string); !ok {
				return Rule{}, configErr(cpath, "operator %s requires a string pattern", op)
			}
		}
		rule.Conditions = append(rule.Conditions, Condition{
			Field:    cd.Field,
			Operator: op,
			Value:    cd.Value,
		})
	}

	if rd.Bucket != nil {
		if rd.Bucket.Min == nil || rd.Bucket.Max == nil {
			return Rule{}, configErr(path+".bucket", "min and max are required")
		}
		if *rd.Bucket.Min > *rd.Bucket.Max {
			return Rule{}, configErr(path+".bucket", "min %v exceeds max %v", *rd.Bucket.Min, *rd.Bucket.Max)
		}
		rule.Bucket = &Range{Min: *rd.Bucket.Min, Max: *rd.Bucket.Max}
	}
	return rule, nil
}

// validateBuckets sorts exclusive rules by bucket minimum and rejects
// missing selectors, missing buckets and overlapping ranges.
func validateBuckets(path string, sub *Subcategory) error {
	if strings.TrimSpace(sub.SelectorField) == "" {
		return configErr(path, "exclusive subcategory requires selector_field")
	}
	if len(sub.Rules) == 0 {
		return configErr(path, "exclusive subcategory has no rules")
	}
	for _, r := range sub.Rules {
		if r.Bucket == nil {
			return configErr(path+"."+r.ID, "exclusive rule requires a bucket")
		}
	}
	sort.SliceStable(sub.Rules, func(i, j int) bool {
		return sub.Rules[i].Bucket.Min < sub.Rules[j].Bucket.Min
	})
	for i := 1; i < len(sub.Rules); i++ {
		prev, cur := sub.Rules[i-1], sub.Rules[i]
		if cur.Bucket.Min <= prev.Bucket.Max {
			return configErr(path, "buckets %s and %s overlap", prev.ID, cur.ID)
		}
	}
	return nil
}
