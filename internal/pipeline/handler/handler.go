// Package handler exposes the onboarding pipeline and the rule engine over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"loanflow/internal/audit"
	"loanflow/internal/pipeline"
	"loanflow/internal/pipeline/metrics"
	"loanflow/internal/rules"
	"loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/httputil"
	"loanflow/pkg/requestcontext"
)

// Evaluator runs an application through the onboarding pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, applicationID string, rec map[string]any) (pipeline.Outcome, error)
}

// RuleEngine is the subset of the rule engine the handlers use.
type RuleEngine interface {
	RunAll(ctx context.Context, doc map[string]any, order []string) rules.Assessment
	Ruleset() *rules.Ruleset
	Reload(ctx context.Context) (*rules.Ruleset, error)
}

// AuditReader lists the audit trail of one application.
type AuditReader interface {
	ListByApplication(ctx context.Context, applicationID string) ([]audit.Entry, error)
}

// Handler wires pipeline and rule endpoints.
type Handler struct {
	evaluator Evaluator
	engine    RuleEngine
	audit     AuditReader
	logger    *slog.Logger
	metrics   *metrics.Metrics
	detailed  bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithDetailedErrors includes internal error text in responses. Development only.
func WithDetailedErrors(enabled bool) Option {
	return func(h *Handler) {
		h.detailed = enabled
	}
}

// WithAuditReader enables GET /v1/applications/{id}/audit.
func WithAuditReader(r AuditReader) Option {
	return func(h *Handler) {
		h.audit = r
	}
}

// New constructs a handler with its dependencies.
func New(evaluator Evaluator, engine RuleEngine, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		evaluator: evaluator,
		engine:    engine,
		logger:    logger,
		metrics:   m,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/applications/evaluate", h.HandleEvaluate)
	r.Post("/v1/assessments", h.HandleAssess)
	r.Get("/v1/rules", h.HandleGetRules)
	if h.audit != nil {
		r.Get("/v1/applications/{id}/audit", h.HandleGetAudit)
	}
}

// RegisterAdmin mounts operator endpoints; callers guard them.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/v1/rules/reload", h.HandleReload)
}

// HandleEvaluate handles POST /v1/applications/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	applicationID := req.ID().String()

	outcome, err := h.evaluator.Evaluate(ctx, applicationID, req.Application)
	if err != nil {
		h.logger.ErrorContext(ctx, "application evaluation failed",
			"request_id", requestID,
			"application_id", applicationID,
			"error", err,
		)
		h.writeError(w, evaluationError(err))
		return
	}

	h.logger.InfoContext(ctx, "application evaluated",
		"request_id", requestID,
		"application_id", applicationID,
		"decision", outcome.Decision,
		"failing_stage", outcome.FailingStage,
		"config_version", outcome.ConfigVersion,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// HandleAssess handles POST /v1/assessments.
func (h *Handler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AssessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Categories != nil {
		rs := h.engine.Ruleset()
		for _, name := range req.Categories {
			if _, found := rs.Category(name); !found {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown category "+name))
				return
			}
		}
	}

	assessment := h.engine.RunAll(ctx, req.Record, req.Categories)
	h.logger.InfoContext(ctx, "record assessed",
		"request_id", requestID,
		"action", assessment.Action,
		"weighted_score", assessment.WeightedScore,
		"config_version", assessment.ConfigVersion,
	)
	httputil.WriteJSON(w, http.StatusOK, assessment)
}

// HandleGetRules handles GET /v1/rules.
func (h *Handler) HandleGetRules(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, fromRuleset(h.engine.Ruleset()))
}

// HandleReload handles POST /v1/rules/reload. A rejected document leaves
// the active ruleset in place.
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	previous := h.engine.Ruleset().Version

	rs, err := h.engine.Reload(ctx)
	h.metrics.IncrementReload(err == nil)
	if err != nil {
		h.logger.ErrorContext(ctx, "rule reload failed",
			"request_id", requestID,
			"active_version", previous,
			"error", err,
		)
		if rules.IsConfigError(err) {
			msg := "rule document rejected"
			if h.detailed {
				msg = err.Error()
			}
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvariantViolation, msg))
			return
		}
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "rules reloaded",
		"request_id", requestID,
		"version", rs.Version,
		"previous_version", previous,
	)
	httputil.WriteJSON(w, http.StatusOK, ReloadResponse{
		Version:         rs.Version,
		PreviousVersion: previous,
		Categories:      rs.Names,
		Warnings:        rs.Warnings,
	})
}

// HandleGetAudit handles GET /v1/applications/{id}/audit.
func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	applicationID := id.String()

	entries, err := h.audit.ListByApplication(ctx, applicationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", applicationID,
			"error", err,
		)
		h.writeError(w, err)
		return
	}
	if len(entries) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no audit entries for application "+applicationID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{ApplicationID: applicationID, Entries: entries})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if h.detailed {
		httputil.WriteErrorDetailed(w, err)
		return
	}
	httputil.WriteError(w, err)
}

func evaluationError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation timed out")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "evaluation cancelled")
	default:
		return err
	}
}
