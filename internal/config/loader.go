package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from defaults, the optional YAML file and the
// environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.run_migrations", false)

	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.otel_enabled", false)
	v.SetDefault("logging.service_name", "marches")
	v.SetDefault("logging.error_sample_rate", 1)

	v.SetDefault("engine.timezone", "Europe/Paris")
}

// bindEnvVariables adds the short names used by container platforms on top
// of the SECTION_KEY names AutomaticEnv derives.
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.run_migrations", "DATABASE_RUN_MIGRATIONS", "RUN_MIGRATIONS")
	v.BindEnv("logging.level", "LOGGING_LEVEL", "LOG_LEVEL")
	v.BindEnv("logging.otel_enabled", "LOGGING_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("logging.service_name", "LOGGING_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("logging.error_sample_rate", "LOGGING_ERROR_SAMPLE_RATE", "ERROR_SAMPLE_RATE")
}
