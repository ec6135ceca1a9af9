package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/liamcoop/marches/internal/logger"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks every section and reports all failures at once
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateCache(cfg.Cache); err != nil {
		errs = append(errs, err)
	}

	if err := validateLogging(cfg.Logging); err != nil {
		errs = append(errs, err)
	}

	if err := validateEngine(cfg.Engine); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read and write timeouts must be positive",
		}
	}

	if cfg.RequestTimeout <= 0 {
		return &ValidationError{
			Field:   "server.request_timeout",
			Message: "request timeout must be positive",
		}
	}

	return nil
}

func validateCache(cfg CacheConfig) error {
	switch cfg.Backend {
	case CacheBackendMemory, CacheBackendNone:
	case CacheBackendRedis:
		if cfg.RedisAddr == "" {
			return &ValidationError{
				Field:   "cache.redis_addr",
				Message: "redis address is required when cache.backend is redis",
			}
		}
	default:
		return &ValidationError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("unknown cache backend %q (use memory, redis or none)", cfg.Backend),
		}
	}

	if cfg.TTL < 0 {
		return &ValidationError{
			Field:   "cache.ttl",
			Message: "ttl cannot be negative",
		}
	}

	return nil
}

func validateLogging(cfg LoggingConfig) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return &ValidationError{
			Field:   "logging.level",
			Message: err.Error(),
		}
	}
	if cfg.ErrorSampleRate < 1 {
		return &ValidationError{
			Field:   "logging.error_sample_rate",
			Message: fmt.Sprintf("sample rate must be at least 1, got %d", cfg.ErrorSampleRate),
		}
	}
	return nil
}

func validateEngine(cfg EngineConfig) error {
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return &ValidationError{
			Field:   "engine.timezone",
			Message: fmt.Sprintf("unknown time zone %q", cfg.Timezone),
		}
	}
	return nil
}
