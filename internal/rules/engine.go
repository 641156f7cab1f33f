package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	strutil "loanflow/pkg/platform/strings"
)

// Source supplies the raw rule configuration document.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// Engine runs categories against records using the active ruleset. Reload
// swaps the ruleset atomically: an in-flight evaluation sees either the old
// or the new configuration, never a mix.
type Engine struct {
	source   Source
	active   atomic.Pointer[Ruleset]
	eval     *Evaluator
	logger   *slog.Logger
	reloadMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for warnings and evaluation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func newEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.eval = NewEvaluator(e.logger)
	return e
}

// NewEngine loads and compiles the document from source. A missing or
// unparseable document is a *ConfigError.
func NewEngine(ctx context.Context, source Source, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, &ConfigError{Err: errors.New("rule source is required")}
	}
	e := newEngine(source, opts...)
	if _, err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// NewStaticEngine wraps an already compiled ruleset. Reload is unavailable.
func NewStaticEngine(rs *Ruleset, opts ...Option) *Engine {
	e := newEngine(nil, opts...)
	e.active.Store(rs)
	return e
}

// Reload fetches, parses and validates the document, then swaps it in. On
// any error the previously active ruleset stays in place.
func (e *Engine) Reload(ctx context.Context) (*Ruleset, error) {
	if e.source == nil {
		return nil, &ConfigError{Err: errors.New("engine has no rule source")}
	}
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	data, err := e.source.Load(ctx)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("load document: %w", err)}
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, w := range rs.Warnings {
		e.logger.WarnContext(ctx, "rule config warning", "version", rs.Version, "warning", w)
	}

	prev := e.active.Swap(rs)
	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version
	}
	e.logger.InfoContext(ctx, "ruleset activated",
		"version", rs.Version,
		"previous_version", prevVersion,
		"categories", len(rs.Names),
	)
	return rs, nil
}

// Ruleset returns the active ruleset.
func (e *Engine) Ruleset() *Ruleset {
	return e.active.Load()
}

// RunCategory runs one category of the active ruleset.
func (e *Engine) RunCategory(ctx context.Context, name string, doc map[string]any) (CategoryResult, error) {
	return e.RunCategoryWith(ctx, e.Ruleset(), name, doc)
}

// RunCategoryWith runs one category of rs. Callers that need several runs
// against a single configuration version pin rs once and pass it here.
func (e *Engine) RunCategoryWith(_ context.Context, rs *Ruleset, name string, doc map[string]any) (CategoryResult, error) {
	cat, ok := rs.Category(name)
	if !ok {
		return CategoryResult{}, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return e.eval.RunCategory(cat, doc, rs.Execution.StopOnReject), nil
}

// RunAll evaluates categories in order (the configured execution order when
// order is nil) using the active ruleset.
func (e *Engine) RunAll(ctx context.Context, doc map[string]any, order []string) Assessment {
	return e.RunAllWith(ctx, e.Ruleset(), doc, order)
}

// RunAllWith is RunAll against a pinned ruleset. Missing categories are
// logged and skipped. Precedence is reject over conditional over approve.
// With stop-on-reject the first rejecting category ends the run. An approve
// verdict whose weighted score is below the minimum threshold is demoted to
// conditional.
func (e *Engine) RunAllWith(ctx context.Context, rs *Ruleset, doc map[string]any, order []string) Assessment {
	if order == nil {
		order = rs.Execution.ExecutionOrder
	}
	if len(order) == 0 {
		order = rs.Names
	}

	out := Assessment{
		ConfigVersion: rs.Version,
		Categories:    make(map[string]CategoryResult, len(order)),
		Order:         make([]string, 0, len(order)),
		Flags:         []string{},
		Action:        ActionApprove,
	}
	var rejecting, conditional []string

	for i, name := range order {
		cat, ok := rs.Category(name)
		if !ok {
			e.logger.WarnContext(ctx, "category missing from ruleset",
				"category", name,
				"version", rs.Version,
			)
			out.Summary.Missing = append(out.Summary.Missing, name)
			continue
		}

		res := e.eval.RunCategory(cat, doc, rs.Execution.StopOnReject)
		out.Categories[name] = res
		out.Order = append(out.Order, name)
		out.RawScore += res.TotalScore
		out.WeightedScore += res.TotalScore * rs.Weight(name)
		out.Flags = append(out.Flags, res.Flags...)
		out.Action = Dominant(out.Action, res.Action)
		out.Summary.CategoriesRun++
		out.Summary.TotalRules += res.TotalRules
		out.Summary.PassedRules += res.PassedRules
		out.Summary.FailedRules += res.FailedRules

		switch res.Action {
		case ActionReject:
			rejecting = append(rejecting, name)
		case ActionConditional:
			conditional = append(conditional, name)
		}

		if rs.Execution.StopOnReject && res.Action == ActionReject {
			out.Summary.Stopped = true
			out.Summary.CategoriesSkipped = append(out.Summary.CategoriesSkipped, order[i+1:]...)
			break
		}
	}

	out.Flags = strutil.DedupeAndTrim(out.Flags)

	switch out.Action {
	case ActionReject:
		out.Recommendation = "rejected by " + strings.Join(rejecting, ", ")
	case ActionConditional:
		out.Recommendation = "conditional approval required by " + strings.Join(conditional, ", ")
	case ActionApprove:
		if out.WeightedScore < rs.Execution.MinimumScoreThreshold {
			out.Action = ActionConditional
			out.Recommendation = fmt.Sprintf(
				"weighted score %.2f is below the minimum threshold %.2f (shortfall %.2f)",
				out.WeightedScore,
				rs.Execution.MinimumScoreThreshold,
				rs.Execution.MinimumScoreThreshold-out.WeightedScore,
			)
		}
	}
	return out
}
