package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if c.Sync.MaxBatchSize <= 0 {
		return fmt.Errorf("sync.max_batch_size must be > 0 (got %d)", c.Sync.MaxBatchSize)
	}
	if c.Sync.RatePerMinute <= 0 {
		return fmt.Errorf("sync.rate_per_minute must be > 0 (got %d)", c.Sync.RatePerMinute)
	}
	if c.Sync.StatusRatePerMin <= 0 {
		return fmt.Errorf("sync.status_rate_per_min must be > 0 (got %d)", c.Sync.StatusRatePerMin)
	}

	return nil
}
