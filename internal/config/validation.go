package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateDatabaseConfig(&config.Database); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := validateAuthConfig(config); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	if err := validateWorkersConfig(&config.Workers); err != nil {
		return fmt.Errorf("workers config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	switch config.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("environment %q must be development, staging or production", config.Environment)
	}

	if config.MaxConns < 1 {
		return fmt.Errorf("max_conns must be positive, got %d", config.MaxConns)
	}

	for _, origin := range config.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("allowed origin %q is not a valid http(s) origin", origin)
		}
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.RequestsPerMinute < 1 {
			return fmt.Errorf("rate_limit.requests_per_minute must be positive")
		}
		if config.RateLimit.BurstSize < 1 {
			return fmt.Errorf("rate_limit.burst_size must be positive")
		}
	}

	return nil
}

// validateDatabaseConfig validates database configuration values
func validateDatabaseConfig(config *DatabaseConfig) error {
	switch config.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("driver %q must be sqlite or postgres", config.Driver)
	}

	if strings.TrimSpace(config.DSN) == "" {
		return fmt.Errorf("dsn must not be empty")
	}

	if config.MaxOpenConns < 1 || config.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must be positive")
	}
	if config.MaxIdleConns > config.MaxOpenConns {
		return fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d",
			config.MaxIdleConns, config.MaxOpenConns)
	}

	return nil
}

// validateAuthConfig validates auth configuration values
func validateAuthConfig(config *Config) error {
	auth := &config.Auth

	if auth.Secret == "" {
		return fmt.Errorf("secret must not be empty")
	}
	// The development fallback secret must never sign production tokens.
	if config.IsProduction() && auth.Secret == "secret" {
		return fmt.Errorf("default secret is not allowed in production")
	}

	if auth.TokenTTLDays < 1 || auth.TokenTTLDays > 90 {
		return fmt.Errorf("token_ttl_days %d is not in valid range 1-90", auth.TokenTTLDays)
	}

	if auth.BcryptCost < 10 || auth.BcryptCost > 20 {
		return fmt.Errorf("bcrypt_cost %d is not in valid range 10-20", auth.BcryptCost)
	}

	return nil
}

// validateWorkersConfig validates the chess-workers client configuration
func validateWorkersConfig(config *WorkersConfig) error {
	u, err := url.Parse(config.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q is not a valid http(s) URL", config.BaseURL)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// validateLoggingConfig validates logging configuration values
func validateLoggingConfig(config *LoggingConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("level %q must be debug, info, warn or error", config.Level)
	}

	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format %q must be text or json", config.Format)
	}

	return nil
}
