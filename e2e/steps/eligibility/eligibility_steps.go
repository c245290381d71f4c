// Package eligibility drives commitment registration and proof verification.
package eligibility

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	AdminDELETE(path string) error
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &eligibilitySteps{tc: tc}

	ctx.Step(`^principal "([^"]*)" has registered a commitment$`, steps.registerCommitment)
	ctx.Step(`^I check eligibility for "([^"]*)"$`, steps.checkEligibility)
	ctx.Step(`^"([^"]*)" proves knowledge of the committed preimage$`, steps.proveKnowledge)
	ctx.Step(`^the authority revokes the commitment of "([^"]*)"$`, steps.revokeCommitment)
}

type eligibilitySteps struct {
	tc TestContext
}

// Secret and nullifier are derived from the principal name so a scenario can
// later reveal the preimage without carrying state between steps.
func preimage(principal string) (secret, nullifier []byte) {
	return []byte(principal + "-secret"), []byte(principal + "-nullifier")
}

// commitmentHex mirrors the server's legacy commitment digest: SHA-256 over a
// length-prefixed concatenation of secret and nullifier.
func commitmentHex(principal string) string {
	secret, nullifier := preimage(principal)
	h := sha256.New()
	fmt.Fprintf(h, "%d:", len(secret))
	h.Write(secret)
	h.Write(nullifier)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *eligibilitySteps) registerCommitment(principal string) error {
	return s.tc.POST("/eligibility/commitments", map[string]string{
		"principal":       principal,
		"commitment_hash": commitmentHex(principal),
	})
}

func (s *eligibilitySteps) checkEligibility(principal string) error {
	return s.tc.GET("/eligibility/" + principal)
}

func (s *eligibilitySteps) proveKnowledge(principal string) error {
	secret, nullifier := preimage(principal)
	return s.tc.POST("/eligibility/"+principal+"/verify-knowledge", map[string]string{
		"type":      "legacy",
		"secret":    base64.StdEncoding.EncodeToString(secret),
		"nullifier": base64.StdEncoding.EncodeToString(nullifier),
	})
}

func (s *eligibilitySteps) revokeCommitment(principal string) error {
	return s.tc.AdminDELETE("/eligibility/" + principal)
}
