package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisEventKey string `env:"REDIS_EVENT_KEY" envDefault:"gateway:events"`
	SettlementURL string `env:"SETTLEMENT_URL" envDefault:"http://settlement-sim:8081"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	// Fee policy, frozen onto each payment at creation. Kept as decimal
	// strings so money never passes through a float.
	PlatformFeePercent   string `env:"PLATFORM_FEE_PERCENT" envDefault:"0.5"`
	NetworkFeeMultiplier string `env:"NETWORK_FEE_MULTIPLIER" envDefault:"1.0"`

	EscrowEnabled bool `env:"ESCROW_ENABLED" envDefault:"true"`

	SupportedCurrencies []string `env:"SUPPORTED_CURRENCIES" envSeparator:"," envDefault:"USD,EUR,GBP"`
	SupportedMethods    []string `env:"SUPPORTED_METHODS" envSeparator:"," envDefault:"card,bank_transfer,wallet,crypto"`

	SchedulerIntervalS     int `env:"SCHEDULER_INTERVAL_S" envDefault:"5"`
	ConditionPollIntervalS int `env:"CONDITION_POLL_INTERVAL_S" envDefault:"10"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
