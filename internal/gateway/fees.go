package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantapay/gateway/internal/domain"
)

// baseNetworkRate is the 0.1% network rate before the configured
// multiplier is applied.
var baseNetworkRate = decimal.RequireFromString("0.001")

var oneHundred = decimal.NewFromInt(100)

// FeeCalculator computes the fees frozen onto a payment at creation.
// All arithmetic is exact decimal; results are floored to whole units.
type FeeCalculator struct {
	platformPercent   decimal.Decimal
	networkMultiplier decimal.Decimal
}

func NewFeeCalculator(platformPercent, networkMultiplier string) (FeeCalculator, error) {
	pct, err := decimal.NewFromString(platformPercent)
	if err != nil {
		return FeeCalculator{}, fmt.Errorf("NewFeeCalculator: platform percent %q: %w", platformPercent, err)
	}
	mult, err := decimal.NewFromString(networkMultiplier)
	if err != nil {
		return FeeCalculator{}, fmt.Errorf("NewFeeCalculator: network multiplier %q: %w", networkMultiplier, err)
	}
	return FeeCalculator{platformPercent: pct, networkMultiplier: mult}, nil
}

func (f FeeCalculator) Calculate(amount decimal.Decimal) domain.Fees {
	network := amount.Mul(baseNetworkRate).Mul(f.networkMultiplier).Floor()
	platform := amount.Mul(f.platformPercent).Div(oneHundred).Floor()
	return domain.Fees{
		Network:  network,
		Platform: platform,
		Total:    network.Add(platform),
	}
}
