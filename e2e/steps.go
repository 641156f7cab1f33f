package e2e

import (
	"github.com/cucumber/godog"

	"loanflow/e2e/steps/pipeline"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	pipeline.RegisterSteps(ctx, tc)
}
