package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"loanflow/internal/bureau"
	"loanflow/internal/identity"
	"loanflow/internal/rules"
	"loanflow/pkg/domain"
	"loanflow/pkg/record"
	"loanflow/pkg/requestcontext"
)

// Onboarding stage names, in execution order.
const (
	StagePreliminary = "preliminary_assessment"
	StageIdentity    = "identity_verification"
	StageCredit      = "credit_check"
	StageEmployment  = "employment_verification"
	StageEligibility = "eligibility_assessment"
)

// Rule categories evaluated by individual stages.
const (
	categoryPreliminary = "preliminary_rules"
	categoryKYC         = "kyc_rules"
	categoryCIBIL       = "cibil_rules"
	categoryEmployment  = "employment_rules"
)

// FlagSecondaryUnavailable marks an application whose optional secondary
// identity check could not be completed.
const FlagSecondaryUnavailable = "secondary_verification_unavailable"

// OnboardingConfig tunes the onboarding stages.
type OnboardingConfig struct {
	Policy                LoanPolicy
	SecondaryVerification bool
}

// Onboarding assembles the five loan onboarding stages. Each execution pins
// the engine's active ruleset so every stage of one application sees the
// same configuration version, even across a reload.
type Onboarding struct {
	engine    *rules.Engine
	identity  bureau.IdentityBureau
	credit    bureau.CreditBureau
	validator *identity.Validator
	cfg       OnboardingConfig
	opts      []Option
	settings  settings
}

// NewOnboarding wires the stages to their collaborators. opts apply to every
// pipeline it builds.
func NewOnboarding(engine *rules.Engine, idb bureau.IdentityBureau, cb bureau.CreditBureau, cfg OnboardingConfig, opts ...Option) *Onboarding {
	if cfg.Policy.IncomeMultiplier == 0 && cfg.Policy.DefaultAnnualRate == 0 {
		cfg.Policy = DefaultLoanPolicy()
	}
	s := newSettings(opts)
	return &Onboarding{
		engine:    engine,
		identity:  idb,
		credit:    cb,
		validator: identity.NewValidator(identity.WithLogger(s.logger)),
		cfg:       cfg,
		opts:      opts,
		settings:  s,
	}
}

// Pipeline builds a pipeline bound to the currently active ruleset.
func (o *Onboarding) Pipeline() (*Pipeline, error) {
	rs := o.engine.Ruleset()
	opts := append(append([]Option(nil), o.opts...), WithConfigVersion(rs.Version))
	return NewPipeline(o.stages(rs), opts...)
}

// Begin starts a step-wise execution for one application.
func (o *Onboarding) Begin(applicationID string, rec map[string]any) (*Execution, error) {
	p, err := o.Pipeline()
	if err != nil {
		return nil, err
	}
	return p.Begin(applicationID, rec), nil
}

// Evaluate runs every stage for one application.
func (o *Onboarding) Evaluate(ctx context.Context, applicationID string, rec map[string]any) (Outcome, error) {
	p, err := o.Pipeline()
	if err != nil {
		return Outcome{}, err
	}
	return p.Run(ctx, applicationID, rec)
}

func (o *Onboarding) stages(rs *rules.Ruleset) []Stage {
	return []Stage{
		{Name: StagePreliminary, Handler: StageFunc(func(ctx context.Context, snap Snapshot) (StageReport, error) {
			return o.preliminary(ctx, rs, snap)
		})},
		{Name: StageIdentity, Handler: StageFunc(func(ctx context.Context, snap Snapshot) (StageReport, error) {
			return o.verifyIdentity(ctx, rs, snap)
		})},
		{Name: StageCredit, Handler: StageFunc(func(ctx context.Context, snap Snapshot) (StageReport, error) {
			return o.creditCheck(ctx, rs, snap)
		})},
		{Name: StageEmployment, Handler: StageFunc(func(ctx context.Context, snap Snapshot) (StageReport, error) {
			return o.employment(ctx, rs, snap)
		})},
		{Name: StageEligibility, Handler: StageFunc(func(ctx context.Context, snap Snapshot) (StageReport, error) {
			return o.eligibility(ctx, rs, snap)
		})},
	}
}

func (o *Onboarding) preliminary(ctx context.Context, rs *rules.Ruleset, snap Snapshot) (StageReport, error) {
	dob, ok := identity.ParseDate(stringAt(snap.Record, "applicant.date_of_birth"))
	if !ok {
		return StageReport{
			Reasons: []string{"date of birth is missing or invalid"},
			Flags:   []string{"invalid_date_of_birth"},
		}, nil
	}
	age := ageOn(dob, requestcontext.Now(ctx))

	applicant := map[string]any{"age": age}
	pan, err := domain.ParsePAN(stringAt(snap.Record, "applicant.pan"))
	applicant["pan_valid"] = err == nil
	if err == nil {
		applicant["pan"] = pan.String()
	}
	enrichment := map[string]any{"applicant": applicant}

	res, err := o.engine.RunCategoryWith(ctx, rs, categoryPreliminary, record.Merge(snap.Record, enrichment))
	if err != nil {
		return StageReport{}, err
	}
	report := categoryReport(res, enrichment)
	report.Payload["age"] = age
	return report, nil
}

func (o *Onboarding) verifyIdentity(ctx context.Context, rs *rules.Ruleset, snap Snapshot) (StageReport, error) {
	declared := identity.Declared{
		FirstName:   stringAt(snap.Record, "applicant.first_name"),
		LastName:    stringAt(snap.Record, "applicant.last_name"),
		DateOfBirth: stringAt(snap.Record, "applicant.date_of_birth"),
		PAN:         stringAt(snap.Record, "applicant.pan"),
		SecondaryID: stringAt(snap.Record, "applicant.secondary_id"),
	}
	query := bureau.IdentityQuery{
		PAN:         declared.PAN,
		FullName:    strings.TrimSpace(declared.FirstName + " " + declared.LastName),
		DateOfBirth: declared.DateOfBirth,
	}

	var (
		primary      *bureau.IdentityVerification
		secondary    *bureau.SecondaryVerification
		secondaryErr error
	)
	checkSecondary := o.cfg.SecondaryVerification && declared.SecondaryID != ""
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := o.identity.Verify(gctx, query)
		if err != nil {
			return err
		}
		primary = v
		return nil
	})
	if checkSecondary {
		g.Go(func() error {
			secondary, secondaryErr = o.identity.VerifySecondary(gctx, declared.SecondaryID)
			return nil
		})
	}
	err := g.Wait()
	o.settings.metrics.ObserveCollaborator("identity_bureau", time.Since(started))
	if err != nil {
		return StageReport{}, collaboratorError("identity_bureau", "identity bureau", err)
	}

	var flags []string
	if secondaryErr != nil {
		o.settings.logger.WarnContext(ctx, "secondary identity verification unavailable",
			"application_id", snap.ApplicationID,
			"error", secondaryErr,
		)
		flags = append(flags, FlagSecondaryUnavailable)
		secondary = nil
	}

	masked := primary.MaskedSecondaryID
	if masked == "" && secondary != nil {
		masked = secondary.MaskedID
	}
	result := o.validator.Validate(declared, identity.Verified{
		IsValid:           primary.IsValid,
		FullName:          primary.FullName,
		DateOfBirth:       primary.DateOfBirth,
		PAN:               primary.PAN,
		MaskedSecondaryID: masked,
	})
	secondaryVerified := secondary != nil && secondary.Verified &&
		(!result.SecondaryChecked || result.SecondaryMatch)

	enrichment := map[string]any{"identity": map[string]any{
		"verified":           primary.IsValid,
		"verified_name":      primary.FullName,
		"name_match":         result.NameMatch.Passed,
		"name_match_order":   string(result.NameMatch.Order),
		"name_similarity":    result.NameMatch.Similarity,
		"dob_match":          result.DOBMatch,
		"pan_match":          result.PANMatch,
		"secondary_checked":  result.SecondaryChecked,
		"secondary_verified": secondaryVerified,
	}}

	res, err := o.engine.RunCategoryWith(ctx, rs, categoryKYC, record.Merge(snap.Record, enrichment))
	if err != nil {
		return StageReport{}, err
	}
	report := categoryReport(res, enrichment)
	report.Passed = report.Passed && result.Passed
	report.Reasons = append(append([]string(nil), result.Reasons...), report.Reasons...)
	report.Flags = append(append(flags, result.Flags...), report.Flags...)
	report.Payload["name_similarity"] = result.NameMatch.Similarity
	report.Payload["name_match_order"] = string(result.NameMatch.Order)
	return report, nil
}

func (o *Onboarding) creditCheck(ctx context.Context, rs *rules.Ruleset, snap Snapshot) (StageReport, error) {
	pan := stringAt(snap.Record, "applicant.pan")
	started := time.Now()
	report, err := o.credit.FetchReport(ctx, pan)
	o.settings.metrics.ObserveCollaborator("credit_bureau", time.Since(started))
	if err != nil {
		return StageReport{}, collaboratorError("credit_bureau", "credit bureau", err)
	}

	creditReport := map[string]any{
		"cibil_score":           report.CIBILScore,
		"credit_history_length": report.CreditHistoryLength,
		"payment_history":       report.PaymentHistory,
		"credit_utilization":    report.CreditUtilization,
		"recent_inquiries":      report.RecentInquiries,
		"defaults":              report.Defaults,
	}
	enrichment := map[string]any{"credit_report": creditReport}

	res, err := o.engine.RunCategoryWith(ctx, rs, categoryCIBIL, record.Merge(snap.Record, enrichment))
	if err != nil {
		return StageReport{}, err
	}
	// the band is whichever score bucket the rules selected
	var band string
	if bucket, ok := res.SelectedBucket(); ok {
		band = bucket.RuleID
	}
	creditReport["band"] = band
	out := categoryReport(res, enrichment)
	out.Payload["cibil_score"] = report.CIBILScore
	out.Payload["band"] = band
	return out, nil
}

func (o *Onboarding) employment(ctx context.Context, rs *rules.Ruleset, snap Snapshot) (StageReport, error) {
	income, ok := numberAt(snap.Record, "employment.monthly_income")
	if !ok || income <= 0 {
		return StageReport{
			Reasons: []string{"monthly income is missing or not positive"},
			Flags:   []string{"invalid_income"},
		}, nil
	}
	existing, _ := numberAt(snap.Record, "employment.existing_emi")
	foir := round4(existing / income)
	enrichment := map[string]any{"employment": map[string]any{"foir": foir}}

	res, err := o.engine.RunCategoryWith(ctx, rs, categoryEmployment, record.Merge(snap.Record, enrichment))
	if err != nil {
		return StageReport{}, err
	}
	report := categoryReport(res, enrichment)
	report.Payload["foir"] = foir
	return report, nil
}

func (o *Onboarding) eligibility(ctx context.Context, rs *rules.Ruleset, snap Snapshot) (StageReport, error) {
	requested, okAmount := numberAt(snap.Record, "loan.requested_amount")
	tenure, okTenure := numberAt(snap.Record, "loan.tenure_months")
	income, okIncome := numberAt(snap.Record, "employment.monthly_income")
	if !okAmount || !okTenure || !okIncome || tenure <= 0 || income <= 0 {
		return StageReport{
			Reasons: []string{"loan amount, tenure and income are required to size the loan"},
		}, nil
	}
	existing, _ := numberAt(snap.Record, "employment.existing_emi")
	band := stringAt(snap.Record, "credit_report.band")

	terms := o.cfg.Policy.Terms(int64(math.Round(requested)), int(tenure), income, band)
	enrichment := map[string]any{"eligibility": map[string]any{
		"approved_amount": terms.ApprovedAmount,
		"emi":             terms.EMI,
		"annual_rate":     terms.AnnualRate,
		"amount_capped":   terms.AmountCapped,
		"projected_foir":  round4((existing + float64(terms.EMI)) / income),
	}}

	assessment := o.engine.RunAllWith(ctx, rs, record.Merge(snap.Record, enrichment), nil)
	payload := map[string]any{
		"action":         string(assessment.Action),
		"raw_score":      assessment.RawScore,
		"weighted_score": assessment.WeightedScore,
		"categories_run": assessment.Summary.CategoriesRun,
		"config_version": assessment.ConfigVersion,
	}
	if assessment.Recommendation != "" {
		payload["recommendation"] = assessment.Recommendation
	}

	report := StageReport{
		Passed:     assessment.Action != rules.ActionReject,
		Payload:    payload,
		Enrichment: enrichment,
		Flags:      assessment.Flags,
	}
	if !report.Passed {
		for _, name := range assessment.Order {
			report.Reasons = append(report.Reasons, assessment.Categories[name].RejectReasons...)
		}
		if len(report.Reasons) == 0 && assessment.Recommendation != "" {
			report.Reasons = []string{assessment.Recommendation}
		}
		return report, nil
	}

	for _, name := range assessment.Order {
		terms.Conditions = append(terms.Conditions, conditionMessages(assessment.Categories[name])...)
	}
	if assessment.Action == rules.ActionConditional && len(terms.Conditions) == 0 && assessment.Recommendation != "" {
		terms.Conditions = append(terms.Conditions, assessment.Recommendation)
	}
	report.Terms = &terms
	return report, nil
}

// categoryReport turns a category run into a stage report: the stage passes
// unless the category rejected.
func categoryReport(res rules.CategoryResult, enrichment map[string]any) StageReport {
	return StageReport{
		Passed: res.Action != rules.ActionReject,
		Payload: map[string]any{
			"category":     res.Category,
			"action":       string(res.Action),
			"score":        res.TotalScore,
			"max_score":    res.MaxPossibleScore,
			"passed_rules": res.PassedRules,
			"failed_rules": res.FailedRules,
		},
		Enrichment: enrichment,
		Reasons:    append([]string(nil), res.RejectReasons...),
		Flags:      append([]string(nil), res.Flags...),
		Conditions: conditionMessages(res),
	}
}

func conditionMessages(res rules.CategoryResult) []string {
	var out []string
	for _, r := range res.Rules {
		if r.Fired() && r.Action == rules.ActionConditional && r.Message != "" {
			out = append(out, r.Message)
		}
	}
	return out
}

func collaboratorError(name, label string, err error) error {
	category := bureau.GetCategory(err)
	if !bureau.IsProviderError(err) && errors.Is(err, context.DeadlineExceeded) {
		category = bureau.ErrorTimeout
	}
	return &CollaboratorError{
		Collaborator: name,
		Message:      fmt.Sprintf("%s unavailable: %s", label, category),
		Err:          err,
	}
}

func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func stringAt(doc map[string]any, path string) string {
	v, ok := record.Lookup(doc, path)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func numberAt(doc map[string]any, path string) (float64, bool) {
	v, ok := record.Lookup(doc, path)
	if !ok {
		return 0, false
	}
	return rules.Number(v)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
