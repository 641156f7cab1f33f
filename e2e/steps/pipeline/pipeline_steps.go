package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the shared context these steps use.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers application evaluation and rule steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &pipelineSteps{tc: tc}

	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		steps.application = nil
		steps.applicationID = ""
		return c, nil
	})

	ctx.Step(`^an applicant "([^"]*) ([^"]*)" born "([^"]*)" with PAN "([^"]*)"$`, steps.anApplicant)
	ctx.Step(`^a salaried income of (\d+) with existing EMI (\d+)$`, steps.salariedIncome)
	ctx.Step(`^a loan request of (\d+) over (\d+) months$`, steps.loanRequest)
	ctx.Step(`^the applicant has no date of birth$`, steps.noDateOfBirth)
	ctx.Step(`^the application id is "([^"]*)"$`, steps.applicationIDIs)
	ctx.Step(`^I submit the application$`, steps.submitApplication)
	ctx.Step(`^I submit an application without employment details$`, steps.submitWithoutEmployment)
	ctx.Step(`^I request the active rules$`, steps.requestRules)
	ctx.Step(`^I request the audit trail$`, steps.requestAuditTrail)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the decision should be "([^"]*)"$`, steps.decisionShouldBe)
	ctx.Step(`^the failing stage should be "([^"]*)"$`, steps.failingStageShouldBe)
	ctx.Step(`^the response flags should include "([^"]*)"$`, steps.flagsShouldInclude)
	ctx.Step(`^the first recommendation should concern "([^"]*)"$`, steps.firstRecommendationField)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the audit trail should end with an outcome entry$`, steps.auditEndsWithOutcome)
}

type pipelineSteps struct {
	tc            TestContext
	application   map[string]any
	applicationID string
}

func (s *pipelineSteps) section(name string) map[string]any {
	if s.application == nil {
		s.application = map[string]any{}
	}
	sec, ok := s.application[name].(map[string]any)
	if !ok {
		sec = map[string]any{}
		s.application[name] = sec
	}
	return sec
}

func (s *pipelineSteps) anApplicant(_ context.Context, first, last, dob, pan string) error {
	a := s.section("applicant")
	a["first_name"] = first
	a["last_name"] = last
	a["date_of_birth"] = dob
	a["pan"] = pan
	a["email"] = strings.ToLower(first+"."+last) + "@example.com"
	a["phone"] = "+919800000000"
	return nil
}

func (s *pipelineSteps) salariedIncome(_ context.Context, income, emi int) error {
	e := s.section("employment")
	e["type"] = "salaried"
	e["monthly_income"] = income
	e["existing_emi"] = emi
	e["experience_years"] = 5
	return nil
}

func (s *pipelineSteps) loanRequest(_ context.Context, amount, tenure int) error {
	l := s.section("loan")
	l["requested_amount"] = amount
	l["tenure_months"] = tenure
	return nil
}

func (s *pipelineSteps) noDateOfBirth(context.Context) error {
	delete(s.section("applicant"), "date_of_birth")
	return nil
}

func (s *pipelineSteps) applicationIDIs(_ context.Context, id string) error {
	s.applicationID = id
	return nil
}

func (s *pipelineSteps) submitApplication(context.Context) error {
	body := map[string]any{"application": s.application}
	if s.applicationID != "" {
		body["application_id"] = s.applicationID
	}
	return s.tc.POST("/v1/applications/evaluate", body)
}

func (s *pipelineSteps) submitWithoutEmployment(ctx context.Context) error {
	delete(s.application, "employment")
	return s.submitApplication(ctx)
}

func (s *pipelineSteps) requestRules(context.Context) error {
	return s.tc.GET("/v1/rules")
}

func (s *pipelineSteps) requestAuditTrail(context.Context) error {
	if s.applicationID == "" {
		return fmt.Errorf("scenario did not set an application id")
	}
	return s.tc.GET("/v1/applications/" + s.applicationID + "/audit")
}

func (s *pipelineSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *pipelineSteps) decisionShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBe(ctx, "decision", want)
}

func (s *pipelineSteps) failingStageShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBe(ctx, "failing_stage", want)
}

func (s *pipelineSteps) fieldShouldBe(_ context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s %q, got %q", field, want, got)
	}
	return nil
}

func (s *pipelineSteps) flagsShouldInclude(_ context.Context, flag string) error {
	v, err := s.tc.GetResponseField("flags")
	if err != nil {
		return err
	}
	flags, _ := v.([]any)
	for _, f := range flags {
		if f == flag {
			return nil
		}
	}
	return fmt.Errorf("flag %q not in %v", flag, flags)
}

func (s *pipelineSteps) firstRecommendationField(_ context.Context, field string) error {
	var body struct {
		Recommendations []struct {
			Field string `json:"field"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return err
	}
	if len(body.Recommendations) == 0 {
		return fmt.Errorf("response has no recommendations")
	}
	if got := body.Recommendations[0].Field; got != field {
		return fmt.Errorf("expected first recommendation for %q, got %q", field, got)
	}
	return nil
}

func (s *pipelineSteps) auditEndsWithOutcome(context.Context) error {
	var body struct {
		Entries []struct {
			Kind string `json:"kind"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return err
	}
	if len(body.Entries) == 0 {
		return fmt.Errorf("audit trail is empty")
	}
	if last := body.Entries[len(body.Entries)-1].Kind; last != "outcome" {
		return fmt.Errorf("expected last audit entry to be an outcome, got %q", last)
	}
	return nil
}
