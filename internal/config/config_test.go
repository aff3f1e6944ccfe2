package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "gateway:events", cfg.RedisEventKey)
	require.Equal(t, "0.5", cfg.PlatformFeePercent)
	require.Equal(t, "1.0", cfg.NetworkFeeMultiplier)
	require.True(t, cfg.EscrowEnabled)
	require.Equal(t, []string{"USD", "EUR", "GBP"}, cfg.SupportedCurrencies)
	require.Contains(t, cfg.SupportedMethods, "bank_transfer")
	require.Equal(t, 5, cfg.SchedulerIntervalS)
	require.Equal(t, 10, cfg.ConditionPollIntervalS)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "1.25")
	t.Setenv("ESCROW_ENABLED", "false")
	t.Setenv("SUPPORTED_CURRENCIES", "USD,JPY")
	t.Setenv("SCHEDULER_INTERVAL_S", "30")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "1.25", cfg.PlatformFeePercent)
	require.False(t, cfg.EscrowEnabled)
	require.Equal(t, []string{"USD", "JPY"}, cfg.SupportedCurrencies)
	require.Equal(t, 30, cfg.SchedulerIntervalS)
}
