package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// INTEL_ prefix with underscores for nesting (INTEL_SERVER_PORT,
// INTEL_WORKER_QUEUE_BACKEND, ...) and take precedence over file
// values. Returns a validated Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers defaults for every setting so a bare
// environment still produces a runnable in-memory configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("worker.queue_backend", "memory")
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.claim_batch_size", 1)
	v.SetDefault("worker.poll_interval_seconds", 2)
	v.SetDefault("worker.fetch_timeout_seconds", 15)
	v.SetDefault("worker.extract_timeout_seconds", 120)

	v.SetDefault("supervisor.sweep_interval_seconds", 5)
	v.SetDefault("supervisor.lease_timeout_seconds", 900)
	v.SetDefault("supervisor.shutdown_when_idle", false)

	v.SetDefault("approval.enabled", false)

	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_text_length", 8000)
	v.SetDefault("fetch.user_agent", "domainintel/1.0")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
}

// validate checks structural validity plus the cross-field rules the
// struct tags cannot express: the selected queue backend must have its
// connection settings present.
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.Worker.QueueBackend {
	case "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("invalid configuration: database.url is required for the postgres queue backend")
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("invalid configuration: redis.addr is required for the redis queue backend")
		}
	}

	return nil
}
