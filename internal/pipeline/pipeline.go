package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"loanflow/internal/audit"
	"loanflow/internal/pipeline/metrics"
	"loanflow/pkg/record"
	"loanflow/pkg/requestcontext"
	str "loanflow/pkg/platform/strings"
)

const tracerName = "loanflow/internal/pipeline"

// StageHandler evaluates one stage against a snapshot.
type StageHandler interface {
	Run(ctx context.Context, snap Snapshot) (StageReport, error)
}

// StageFunc adapts a function to StageHandler.
type StageFunc func(ctx context.Context, snap Snapshot) (StageReport, error)

func (f StageFunc) Run(ctx context.Context, snap Snapshot) (StageReport, error) {
	return f(ctx, snap)
}

// Stage is a named step of a pipeline.
type Stage struct {
	Name    string
	Handler StageHandler
}

type settings struct {
	logger        *slog.Logger
	audit         audit.Sink
	metrics       *metrics.Metrics
	configVersion string
	stageTimeout  time.Duration
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*settings)

// WithLogger sets the logger used for stage transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditSink records every stage transition and the final outcome.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *settings) {
		if sink != nil {
			s.audit = sink
		}
	}
}

// WithMetrics sets the Prometheus metrics. Nil disables them.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithConfigVersion stamps outcomes with the rule configuration version.
func WithConfigVersion(version string) Option {
	return func(s *settings) {
		s.configVersion = version
	}
}

// WithStageTimeout bounds each handler invocation. Zero means no bound
// beyond the caller's context.
func WithStageTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.stageTimeout = d
	}
}

// WithClock sets the clock that stamps stage start and completion times.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		audit:  audit.Discard{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Pipeline is an ordered, immutable list of stages.
type Pipeline struct {
	stages []Stage
	settings
}

// NewPipeline validates stage names and handlers.
func NewPipeline(stages []Stage, opts ...Option) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline: at least one stage is required")
	}
	seen := make(map[string]struct{}, len(stages))
	for i, st := range stages {
		if strings.TrimSpace(st.Name) == "" {
			return nil, fmt.Errorf("pipeline: stage %d has no name", i)
		}
		if st.Handler == nil {
			return nil, fmt.Errorf("pipeline: stage %s has no handler", st.Name)
		}
		if _, dup := seen[st.Name]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage %s", st.Name)
		}
		seen[st.Name] = struct{}{}
	}
	return &Pipeline{
		stages:   append([]Stage(nil), stages...),
		settings: newSettings(opts),
	}, nil
}

// StageNames lists the stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name
	}
	return names
}

// Begin starts an execution over a private copy of rec.
func (p *Pipeline) Begin(applicationID string, rec map[string]any) *Execution {
	states := make(map[string]StageStatus, len(p.stages))
	for _, st := range p.stages {
		states[st.Name] = StatusPending
	}
	return &Execution{
		p:             p,
		applicationID: applicationID,
		current:       record.Clone(rec),
		states:        states,
	}
}

// Run drives an execution to completion.
func (p *Pipeline) Run(ctx context.Context, applicationID string, rec map[string]any) (Outcome, error) {
	exec := p.Begin(applicationID, rec)
	for !exec.Done() {
		if _, err := exec.Next(ctx); err != nil {
			return Outcome{}, err
		}
	}
	return exec.Outcome()
}

// Execution is one application's pass through a pipeline. It is not safe
// for concurrent use.
type Execution struct {
	p             *Pipeline
	applicationID string
	current       map[string]any
	states        map[string]StageStatus
	results       []StageResult
	next          int
	done          bool
	fatal         error
	failing       string
	terms         *LoanTerms
	flags         []string
	conditions    []string
}

// Done reports whether the execution has ended, by completion, rejection or
// a fatal error.
func (e *Execution) Done() bool {
	return e.done
}

// State reports a stage's status. Unknown stages report pending.
func (e *Execution) State(stage string) StageStatus {
	if s, ok := e.states[stage]; ok {
		return s
	}
	return StatusPending
}

// Results returns the results of the stages run so far.
func (e *Execution) Results() []StageResult {
	return append([]StageResult(nil), e.results...)
}

// Record returns a copy of the record with all enrichment applied so far.
func (e *Execution) Record() map[string]any {
	return record.Clone(e.current)
}

// Next runs the next stage. A rejected stage ends the execution with a nil
// error; a FatalError ends it without an outcome.
func (e *Execution) Next(ctx context.Context) (StageResult, error) {
	if e.done {
		return StageResult{}, ErrExecutionComplete
	}
	stage := e.p.stages[e.next]
	logger := e.p.logger.With(
		"application_id", e.applicationID,
		"stage", stage.Name,
		"request_id", requestcontext.RequestID(ctx),
	)

	if err := ctx.Err(); err != nil {
		return StageResult{}, e.abort(ctx, stage.Name, err)
	}

	e.states[stage.Name] = StatusInProgress
	e.appendAudit(ctx, audit.NewEntry(e.applicationID, audit.KindStageTransition, stage.Name, string(StatusInProgress), nil))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+stage.Name)
	defer span.End()
	span.SetAttributes(
		attribute.String("application.id", e.applicationID),
		attribute.String("pipeline.stage", stage.Name),
	)

	started := e.p.now()
	report, err := e.invoke(ctx, stage)
	completed := e.p.now()
	elapsed := completed.Sub(started)

	res := StageResult{
		Stage:       stage.Name,
		StartedAt:   started,
		CompletedAt: completed,
	}

	var collabErr *CollaboratorError
	switch {
	case errors.As(err, &collabErr):
		logger.WarnContext(ctx, "stage collaborator failed", "collaborator", collabErr.Collaborator, "error", err)
		span.RecordError(err)
		res.Reasons = []string{collabErr.Message}
		res.Flags = []string{collabErr.Collaborator + "_unavailable"}
		res.Payload = map[string]any{"collaborator": collabErr.Collaborator}
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.p.metrics.ObserveStage(stage.Name, string(StatusFailed), elapsed)
		return StageResult{}, e.abort(ctx, stage.Name, err)
	default:
		res.Passed = report.Passed
		res.Payload = report.Payload
		res.Reasons = report.Reasons
		res.Flags = report.Flags
	}

	e.flags = append(e.flags, res.Flags...)
	if res.Passed {
		res.Status = StatusCompleted
		e.current = record.Merge(e.current, report.Enrichment)
		e.conditions = append(e.conditions, report.Conditions...)
		if report.Terms != nil {
			t := *report.Terms
			e.terms = &t
		}
	} else {
		res.Status = StatusFailed
		e.failing = stage.Name
		e.done = true
		span.SetStatus(codes.Error, "stage rejected")
	}
	e.states[stage.Name] = res.Status
	e.results = append(e.results, res)
	e.next++
	if e.next == len(e.p.stages) {
		e.done = true
	}

	e.p.metrics.ObserveStage(stage.Name, string(res.Status), elapsed)
	logger.InfoContext(ctx, "stage finished",
		"status", res.Status,
		"duration_ms", elapsed.Milliseconds(),
		"reasons", res.Reasons,
	)
	e.appendAudit(ctx, audit.NewEntry(e.applicationID, audit.KindStageTransition, stage.Name, string(res.Status), map[string]any{
		"passed":  res.Passed,
		"reasons": res.Reasons,
		"flags":   res.Flags,
		"payload": res.Payload,
	}))

	if e.done {
		out := e.buildOutcome()
		e.p.metrics.IncrementOutcome(string(out.Decision), out.FailingStage)
		e.appendAudit(ctx, audit.NewEntry(e.applicationID, audit.KindOutcome, out.FailingStage, string(out.Decision), map[string]any{
			"approved":       out.Approved,
			"reason":         out.Reason,
			"flags":          out.Flags,
			"terms":          out.Terms,
			"config_version": out.ConfigVersion,
		}))
	}
	return res, nil
}

// Outcome returns the terminal outcome once the execution is done.
func (e *Execution) Outcome() (Outcome, error) {
	if e.fatal != nil {
		return Outcome{}, e.fatal
	}
	if !e.done {
		return Outcome{}, ErrExecutionIncomplete
	}
	return e.buildOutcome(), nil
}

func (e *Execution) invoke(ctx context.Context, stage Stage) (report StageReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.p.logger.ErrorContext(ctx, "stage handler panicked",
				"application_id", e.applicationID,
				"stage", stage.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if e.p.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.p.stageTimeout)
		defer cancel()
	}
	snap := Snapshot{
		ApplicationID: e.applicationID,
		Record:        record.Clone(e.current),
		Previous:      e.Results(),
	}
	return stage.Handler.Run(ctx, snap)
}

func (e *Execution) abort(ctx context.Context, stage string, err error) error {
	fatal := &FatalError{Stage: stage, Err: err}
	e.states[stage] = StatusFailed
	e.fatal = fatal
	e.done = true
	e.p.logger.ErrorContext(ctx, "pipeline aborted",
		"application_id", e.applicationID,
		"stage", stage,
		"error", err,
	)
	e.appendAudit(context.WithoutCancel(ctx), audit.NewEntry(e.applicationID, audit.KindStageTransition, stage, "aborted", map[string]any{
		"error": err.Error(),
	}))
	return fatal
}

func (e *Execution) appendAudit(ctx context.Context, entry audit.Entry) {
	entry.RequestID = requestcontext.RequestID(ctx)
	if err := e.p.audit.Append(ctx, entry); err != nil {
		e.p.logger.WarnContext(ctx, "audit append failed",
			"application_id", e.applicationID,
			"kind", entry.Kind,
			"stage", entry.Stage,
			"error", err,
		)
	}
}

func (e *Execution) buildOutcome() Outcome {
	out := Outcome{
		ApplicationID: e.applicationID,
		Flags:         str.DedupeAndTrim(e.flags),
		Stages:        e.Results(),
		ConfigVersion: e.p.configVersion,
	}
	if e.failing != "" {
		var reasons []string
		for _, r := range e.results {
			if r.Stage == e.failing {
				reasons = r.Reasons
			}
		}
		if len(reasons) == 0 {
			reasons = []string{fmt.Sprintf("stage %s did not pass", e.failing)}
		}
		out.Decision = DecisionRejected
		out.FailingStage = e.failing
		out.Reason = strings.Join(reasons, "; ")
		out.Recommendations = Recommend(reasons)
		return out
	}

	out.Approved = true
	out.Decision = DecisionApproved
	conditions := str.DedupeAndTrim(e.conditions)
	if e.terms != nil {
		t := *e.terms
		t.Conditions = str.DedupeAndTrim(append(append([]string(nil), t.Conditions...), conditions...))
		conditions = t.Conditions
		out.Terms = &t
	}
	if len(conditions) > 0 {
		out.Decision = DecisionConditionalApproval
	}
	out.NextSteps = nextSteps(out.Terms, conditions)
	return out
}

func nextSteps(terms *LoanTerms, conditions []string) []string {
	steps := make([]string, 0, len(conditions)+4)
	for _, c := range conditions {
		steps = append(steps, "Resolve condition: "+c)
	}
	if terms != nil && terms.AmountCapped {
		steps = append(steps, fmt.Sprintf("Accept the revised amount of %d", terms.ApprovedAmount))
	}
	steps = append(steps,
		"Upload the last three months of bank statements",
		"Sign the loan agreement electronically",
		"Set up auto-debit for the monthly instalment",
	)
	return steps
}
