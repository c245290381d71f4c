// Package trading drives price publication, issuance, and fraction trades.
package trading

import (
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	FeedID() string
	FeedSecret() string
	SetAssetID(id uint64)
	AssetID() uint64
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &tradingSteps{tc: tc}

	ctx.Step(`^the feed publishes price (\d+) with exponent (-?\d+)$`, steps.publishPrice)
	ctx.Step(`^"([^"]*)" issues an asset worth (\d+) split into (\d+) fractions$`, steps.issueAsset)
	ctx.Step(`^"([^"]*)" buys (\d+) fractions paying (\d+)$`, steps.purchase)
	ctx.Step(`^"([^"]*)" transfers (\d+) fractions to "([^"]*)"$`, steps.transfer)
	ctx.Step(`^I read the balance of "([^"]*)"$`, steps.readBalance)
}

type tradingSteps struct {
	tc TestContext
}

type attestationClaims struct {
	Feed        string `json:"feed"`
	Price       int64  `json:"price"`
	Expo        int32  `json:"expo"`
	Conf        uint64 `json:"conf"`
	PublishedAt int64  `json:"published_at"`
	jwt.RegisteredClaims
}

func (s *tradingSteps) publishPrice(price, expo int) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, attestationClaims{
		Feed:        s.tc.FeedID(),
		Price:       int64(price),
		Expo:        int32(expo),
		Conf:        1,
		PublishedAt: time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(s.tc.FeedSecret()))
	if err != nil {
		return fmt.Errorf("sign attestation: %w", err)
	}
	return s.tc.POST("/oracle/updates", map[string]any{
		"feed_id":     s.tc.FeedID(),
		"attestation": signed,
		"fee_minor":   1,
	})
}

func (s *tradingSteps) issueAsset(issuer string, totalValue, fractions int) error {
	err := s.tc.POST("/assets", map[string]any{
		"issuer":            issuer,
		"document_hash":     "aa11223344556677889900112233445566778899001122334455667788990011",
		"total_value_minor": totalValue,
		"fraction_count":    fractions,
		"min_fraction_unit": 1,
		"feed_id":           s.tc.FeedID(),
	})
	if err != nil {
		return err
	}
	if id, err := s.tc.GetResponseField("asset_id"); err == nil {
		if f, ok := id.(float64); ok {
			s.tc.SetAssetID(uint64(f))
		}
	}
	return nil
}

func (s *tradingSteps) purchase(buyer string, amount, payment int) error {
	return s.tc.POST(fmt.Sprintf("/assets/%d/purchase", s.tc.AssetID()), map[string]any{
		"buyer":         buyer,
		"amount":        amount,
		"payment_minor": payment,
	})
}

func (s *tradingSteps) transfer(from string, amount int, to string) error {
	return s.tc.POST(fmt.Sprintf("/assets/%d/transfer", s.tc.AssetID()), map[string]any{
		"from":   from,
		"to":     to,
		"amount": amount,
	})
}

func (s *tradingSteps) readBalance(holder string) error {
	return s.tc.GET(fmt.Sprintf("/assets/%d/balances/%s", s.tc.AssetID(), holder))
}
