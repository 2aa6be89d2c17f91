package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes))
	}

	switch c.Provider.Type {
	case "none", "":
	case "openai":
		if c.Provider.Model == "" {
			errs = append(errs, fmt.Errorf("provider.model is required when provider.type is \"openai\""))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.type must be \"none\" or \"openai\", got %q", c.Provider.Type))
	}

	switch c.Sandbox.Mode {
	case "local":
		if len(c.Sandbox.Interpreter) == 0 {
			errs = append(errs, fmt.Errorf("sandbox.interpreter is required when sandbox.mode is \"local\""))
		}
	case "remote":
		if c.Sandbox.RemoteURL == "" {
			errs = append(errs, fmt.Errorf("sandbox.remote_url is required when sandbox.mode is \"remote\""))
		}
	default:
		errs = append(errs, fmt.Errorf("sandbox.mode must be \"local\" or \"remote\", got %q", c.Sandbox.Mode))
	}
	if c.Sandbox.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.default_timeout must be > 0, got %s", c.Sandbox.DefaultTimeout))
	}
	if c.Sandbox.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_concurrent must be > 0, got %d", c.Sandbox.MaxConcurrent))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.requests_per_minute must be >= 0, got %d", c.Auth.RequestsPerMinute))
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of TRACE, DEBUG, INFO, WARN, ERROR, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
