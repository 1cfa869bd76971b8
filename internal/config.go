package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=5000"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/chat-room"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	StaleThreshold  time.Duration `env:"STALE_THRESHOLD,default=10s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,default=15s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	RateLimitRPS    int           `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=10"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// LoadConfig reads the environment, after loading the given .env files when they exist.
// Variables already set in the environment win over the files.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.StaleThreshold <= 0 {
		return fmt.Errorf("STALE_THRESHOLD must be positive, got %s", c.StaleThreshold)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.BadgerFilepath == "" {
		return fmt.Errorf("BADGER_FILEPATH must not be empty")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
