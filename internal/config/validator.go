package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validatePostgres(cfg.Database.Postgres); err != nil {
		errs = append(errs, err)
	}

	if err := validateIngestion(cfg.Ingestion); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "postgres host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "database name is required",
		}
	}

	return nil
}

func validateIngestion(cfg IngestionConfig) error {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	if cfg.RateLimit.RPS <= 0 {
		return &ValidationError{
			Field:   "ingestion.rate_limit.rps",
			Message: "rps must be positive when rate limiting is enabled",
		}
	}

	if cfg.RateLimit.Burst <= 0 {
		return &ValidationError{
			Field:   "ingestion.rate_limit.burst",
			Message: "burst must be positive when rate limiting is enabled",
		}
	}

	return nil
}

// SecretConfigured reports whether the webhook signing secret is present.
// The readiness probe consumes this; the secret is deliberately not part of
// ValidateStatic so the service can boot and report not-ready instead of
// crash-looping.
func (c *Config) SecretConfigured() bool {
	return c.Webhook.Secret != ""
}
