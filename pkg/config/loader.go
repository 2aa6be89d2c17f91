package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/ormodeler/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file (ORMODELER_ENV_FILE or ./.env), if present
//  3. YAML config file (explicit path, ORMODELER_CONFIG env, ./config.yaml, /etc/ormodeler/config.yaml)
//  4. ORMODELER_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "config file loaded", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs into the process environment. Variables
// that are already set keep their value. A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv("ORMODELER_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ORMODELER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/ormodeler/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("ORMODELER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/ormodeler/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ORMODELER_* environment variables onto config
// fields. Malformed numbers and durations are reported instead of being
// silently ignored.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Provider.Type, "ORMODELER_PROVIDER")
	setString(&cfg.Provider.BaseURL, "ORMODELER_PROVIDER_URL")
	setString(&cfg.Provider.APIKey, "ORMODELER_API_KEY")
	setString(&cfg.Provider.Model, "ORMODELER_MODEL")
	setString(&cfg.Sandbox.Mode, "ORMODELER_SANDBOX_MODE")
	setString(&cfg.Sandbox.RemoteURL, "ORMODELER_SANDBOX_URL")
	setString(&cfg.Sandbox.WorkDir, "ORMODELER_SANDBOX_WORK_DIR")
	setString(&cfg.Auth.Type, "ORMODELER_AUTH_TYPE")
	setString(&cfg.Auth.JWT.Secret, "ORMODELER_JWT_SECRET")
	setString(&cfg.Logging.Level, "ORMODELER_LOG_LEVEL")
	setString(&cfg.Logging.Debug, "ORMODELER_DEBUG")

	if v := os.Getenv("ORMODELER_SANDBOX_INTERPRETER"); v != "" {
		cfg.Sandbox.Interpreter = strings.Fields(v)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(setInt(&cfg.Server.Port, "ORMODELER_PORT"))
	collect(setInt(&cfg.Sandbox.MaxConcurrent, "ORMODELER_SANDBOX_MAX_CONCURRENT"))
	collect(setInt(&cfg.Auth.RequestsPerMinute, "ORMODELER_RATE_LIMIT"))
	collect(setDuration(&cfg.Sandbox.DefaultTimeout, "ORMODELER_SANDBOX_TIMEOUT"))
	collect(setDuration(&cfg.Provider.Timeout, "ORMODELER_PROVIDER_TIMEOUT"))

	// ORMODELER_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("ORMODELER_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		collect(err)
		if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// setDuration accepts Go duration syntax ("45s") or a bare number of seconds.
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing ORMODELER_API_KEYS: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// provider.api_key_file -> provider.api_key
	if cfg.Provider.APIKeyFile != "" && cfg.Provider.APIKey == "" {
		val, err := readSecretFile(cfg.Provider.APIKeyFile)
		if err != nil {
			return fmt.Errorf("provider.api_key_file: %w", err)
		}
		cfg.Provider.APIKey = val
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
