package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanflow/configs"
	"loanflow/internal/audit/store/memory"
	"loanflow/internal/bureau"
	"loanflow/internal/pipeline"
	"loanflow/internal/pipeline/metrics"
	"loanflow/internal/rules"
	"loanflow/pkg/requestcontext"
)

type swappableSource struct {
	mu   sync.Mutex
	data []byte
}

func (s *swappableSource) Load(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, nil
}

func (s *swappableSource) set(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

type fixture struct {
	router  chi.Router
	source  *swappableSource
	metrics *metrics.Metrics
	audit   *memory.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	source := &swappableSource{data: configs.DefaultRules}
	engine, err := rules.NewEngine(context.Background(), source)
	require.NoError(t, err)

	sim := bureau.NewSimulator()
	sim.RegisterReport(bureau.CreditReport{
		PAN: "ABCDE1234F", CIBILScore: 780, CreditHistoryLength: 60,
		PaymentHistory: 98, CreditUtilization: 30, RecentInquiries: 1,
	})
	sim.RegisterReport(bureau.CreditReport{
		PAN: "PQRST6789K", CIBILScore: 520, CreditHistoryLength: 12,
		PaymentHistory: 70, CreditUtilization: 90, RecentInquiries: 7,
	})

	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.DiscardHandler)
	trail := memory.New()
	onboarding := pipeline.NewOnboarding(engine, sim, sim, pipeline.OnboardingConfig{
		Policy:                pipeline.DefaultLoanPolicy(),
		SecondaryVerification: true,
	}, pipeline.WithLogger(logger), pipeline.WithMetrics(m), pipeline.WithAuditSink(trail))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithTime(req.Context(), time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
			ctx = requestcontext.WithRequestID(ctx, "req-test")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h := New(onboarding, engine, logger, m, append([]Option{WithAuditReader(trail)}, opts...)...)
	h.Register(r)
	h.RegisterAdmin(r)
	return &fixture{router: r, source: source, metrics: m, audit: trail}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func applicationBody(pan string) string {
	body := map[string]any{
		"application_id": "550e8400-e29b-41d4-a716-446655440000",
		"application": map[string]any{
			"applicant": map[string]any{
				"first_name":    "Ravi",
				"last_name":     "Kumar",
				"date_of_birth": "1992-05-14",
				"pan":           pan,
				"email":         "ravi.kumar@example.com",
				"phone":         "+919800000000",
				"secondary_id":  "1234 5678 9012",
			},
			"employment": map[string]any{
				"type":             "salaried",
				"monthly_income":   120000,
				"experience_years": 5,
				"existing_emi":     10000,
			},
			"loan": map[string]any{"requested_amount": 500000, "tenure_months": 36},
		},
	}
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	return buf.String()
}

func TestHandleEvaluate(t *testing.T) {
	f := newFixture(t)

	t.Run("approves a strong applicant", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/applications/evaluate", applicationBody("ABCDE1234F"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out pipeline.Outcome
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		assert.True(t, out.Approved)
		assert.Equal(t, pipeline.DecisionApproved, out.Decision)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", out.ApplicationID)
		require.NotNil(t, out.Terms)
		assert.Equal(t, int64(16251), out.Terms.EMI)
		assert.Len(t, out.Stages, 5)
	})

	t.Run("rejects poor credit with recommendations", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/applications/evaluate", applicationBody("PQRST6789K"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out pipeline.Outcome
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		assert.False(t, out.Approved)
		assert.Equal(t, pipeline.StageCredit, out.FailingStage)
		require.NotEmpty(t, out.Recommendations)
		assert.Equal(t, "credit_score", out.Recommendations[0].Field)
	})

	t.Run("missing sections are rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/applications/evaluate", `{"application":{"applicant":{}}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "application.employment must be an object")
	})

	t.Run("malformed application id", func(t *testing.T) {
		body := strings.Replace(applicationBody("ABCDE1234F"), "550e8400-e29b-41d4-a716-446655440000", "app-1", 1)
		rec := f.do(t, http.MethodPost, "/v1/applications/evaluate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_input")
	})

	t.Run("empty body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/applications/evaluate", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "request body is required")
	})
}

func TestHandleAssess(t *testing.T) {
	f := newFixture(t)

	t.Run("runs requested categories", func(t *testing.T) {
		body := `{"record":{"credit_report":{"cibil_score":700,"payment_history":99}},"categories":["cibil_rules"]}`
		rec := f.do(t, http.MethodPost, "/v1/assessments", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out rules.Assessment
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		assert.Equal(t, []string{"cibil_rules"}, out.Order)
		assert.Equal(t, 35.0, out.Categories["cibil_rules"].TotalScore, "good band 25 + payment history 10")
		assert.Equal(t, "2.1.0", out.ConfigVersion)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/assessments", `{"record":{"a":1},"categories":["nope_rules"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("record required", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/assessments", `{"record":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRules(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out RulesetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "2.1.0", out.Version)
	assert.Len(t, out.Categories, 6)
	assert.True(t, out.Execution.StopOnReject)

	t.Run("reload swaps version", func(t *testing.T) {
		f.source.set(bytes.Replace(configs.DefaultRules, []byte(`version: "2.1.0"`), []byte(`version: "2.2.0"`), 1))
		rec := f.do(t, http.MethodPost, "/v1/rules/reload", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ReloadResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "2.2.0", resp.Version)
		assert.Equal(t, "2.1.0", resp.PreviousVersion)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RuleReloads.WithLabelValues("ok")))
	})

	t.Run("invalid document keeps active ruleset", func(t *testing.T) {
		f.source.set([]byte("metadata: {}\n"))
		rec := f.do(t, http.MethodPost, "/v1/rules/reload", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = f.do(t, http.MethodGet, "/v1/rules", "")
		var out RulesetResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		assert.Equal(t, "2.2.0", out.Version)
	})
}

func TestHandleReload_ConfigErrorDetail(t *testing.T) {
	reject := func(t *testing.T, f *fixture) string {
		t.Helper()
		f.source.set([]byte("metadata: {}\n"))
		rec := f.do(t, http.MethodPost, "/v1/rules/reload", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return body.ErrorDescription
	}

	t.Run("generic message by default", func(t *testing.T) {
		assert.Equal(t, "rule document rejected", reject(t, newFixture(t)))
	})

	t.Run("validation text when detailed errors are on", func(t *testing.T) {
		desc := reject(t, newFixture(t, WithDetailedErrors(true)))
		assert.NotEmpty(t, desc)
		assert.NotEqual(t, "rule document rejected", desc)
	})
}

func TestHandleGetAudit(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/applications/evaluate", applicationBody("PQRST6789K"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/applications/550e8400-e29b-41d4-a716-446655440000/audit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out AuditResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	// three stages run, each with start and finish entries, plus the outcome
	assert.Len(t, out.Entries, 7)
	assert.Equal(t, "outcome", string(out.Entries[len(out.Entries)-1].Kind))

	rec = f.do(t, http.MethodGet, "/v1/applications/7d444840-9dc0-11d1-b245-5ffdce74fad2/audit", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/applications/not-a-uuid/audit", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
