package e2e

import (
	"github.com/cucumber/godog"

	"tessera/e2e/steps/common"
	"tessera/e2e/steps/eligibility"
	"tessera/e2e/steps/trading"
)

// RegisterSteps wires all step definitions against one suite context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	eligibility.RegisterSteps(ctx, tc)
	trading.RegisterSteps(ctx, tc)
}
