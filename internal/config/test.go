package config

import "github.com/caarlos0/env/v11"

// TestConfig carries the settings integration tests read from the
// environment. Loading fails when the DSN is absent so tests can skip
// instead of dialling a default.
type TestConfig struct {
	PostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
}

func LoadTest() (TestConfig, error) {
	cfg := TestConfig{}
	if err := env.Parse(&cfg); err != nil {
		return TestConfig{}, err
	}
	return cfg, nil
}
