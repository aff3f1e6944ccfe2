package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFeeCalculator(t *testing.T) {
	tests := []struct {
		name         string
		platformPct  string
		multiplier   string
		amount       string
		wantNetwork  string
		wantPlatform string
		wantTotal    string
	}{
		{
			name:        "thousand at default policy",
			platformPct: "0.5", multiplier: "1.0",
			amount:      "1000",
			wantNetwork: "1", wantPlatform: "5", wantTotal: "6",
		},
		{
			name:        "network fee floors to zero below a thousand",
			platformPct: "0.5", multiplier: "1.0",
			amount:      "999",
			wantNetwork: "0", wantPlatform: "4", wantTotal: "4",
		},
		{
			name:        "multiplier scales network only",
			platformPct: "0.5", multiplier: "2.5",
			amount:      "1000",
			wantNetwork: "2", wantPlatform: "5", wantTotal: "7",
		},
		{
			name:        "higher platform percentage",
			platformPct: "2.5", multiplier: "1.0",
			amount:      "100",
			wantNetwork: "0", wantPlatform: "2", wantTotal: "2",
		},
		{
			name:        "fractional amount stays exact",
			platformPct: "0.5", multiplier: "1.0",
			amount:      "10000.99",
			wantNetwork: "10", wantPlatform: "50", wantTotal: "60",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := NewFeeCalculator(tt.platformPct, tt.multiplier)
			require.NoError(t, err)

			fees := calc.Calculate(decimal.RequireFromString(tt.amount))
			require.Equal(t, tt.wantNetwork, fees.Network.String())
			require.Equal(t, tt.wantPlatform, fees.Platform.String())
			require.Equal(t, tt.wantTotal, fees.Total.String())
		})
	}
}

func TestNewFeeCalculator_BadInput(t *testing.T) {
	_, err := NewFeeCalculator("not-a-number", "1.0")
	require.Error(t, err)

	_, err = NewFeeCalculator("0.5", "")
	require.Error(t, err)
}

func TestFeeCalculator_Deterministic(t *testing.T) {
	calc, err := NewFeeCalculator("0.5", "1.0")
	require.NoError(t, err)

	amount := decimal.RequireFromString("12345.67")
	first := calc.Calculate(amount)
	second := calc.Calculate(amount)
	require.True(t, first.Total.Equal(second.Total))
	require.True(t, first.Network.Equal(second.Network))
	require.True(t, first.Platform.Equal(second.Platform))
}
