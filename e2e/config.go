package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_SERVER_ADDR is the base URL of a running server; the suite is skipped when empty
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR"`
	// E2E_DEBUG_JSON dumps response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_STALE_THRESHOLD must match the server's STALE_THRESHOLD
	StaleThreshold string `envconfig:"E2E_STALE_THRESHOLD" default:"10s"`
	// E2E_SWEEP_INTERVAL must match the server's SWEEP_INTERVAL
	SweepInterval string `envconfig:"E2E_SWEEP_INTERVAL" default:"15s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
