// Package config provides unified configuration for the ormodeler services.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. Optional .env file (never overrides variables already set)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (ORMODELER_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the ormodeler server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Provider      ProviderConfig      `yaml:"provider"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`           // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`  // default: 10m30s, raised to cover the longest execution
	MaxBodyBytes int64         `yaml:"max_body_bytes"` // default: 10 MiB
}

// ProviderConfig holds the text-generation backend settings.
type ProviderConfig struct {
	Type        string        `yaml:"type"`         // "none" or "openai", default: "none"
	BaseURL     string        `yaml:"base_url"`     // OpenAI-compatible endpoint, optional
	APIKey      string        `yaml:"api_key"`      // optional
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
	Model       string        `yaml:"model"`        // required when type is "openai"
	Temperature float32       `yaml:"temperature"`  // default: 0
	MaxTokens   int           `yaml:"max_tokens"`   // 0 lets the backend decide
	Timeout     time.Duration `yaml:"timeout"`      // default: 120s
}

// SandboxConfig holds the code execution settings.
type SandboxConfig struct {
	Mode           string        `yaml:"mode"`             // "local" or "remote", default: "local"
	Interpreter    []string      `yaml:"interpreter"`      // default: ["python3"]
	DefaultTimeout time.Duration `yaml:"default_timeout"`  // default: 30s
	MaxConcurrent  int           `yaml:"max_concurrent"`   // default: 3
	MaxOutputBytes int           `yaml:"max_output_bytes"` // per stream, default: 1 MiB
	RemoteURL      string        `yaml:"remote_url"`       // required when mode is "remote"
	WorkDir        string        `yaml:"work_dir"`         // parent of per-run directories
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type              string         `yaml:"type"`                // "none", "apikey" or "jwt", default: "none"
	APIKeys           []APIKeyConfig `yaml:"api_keys"`            // API key entries for type=apikey
	JWT               JWTConfig      `yaml:"jwt"`                 // settings for type=jwt
	RequestsPerMinute int            `yaml:"requests_per_minute"` // per subject, 0 disables
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds HMAC bearer-token settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// MCPConfig holds the settings of the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// LoggingConfig holds log level and debug category settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // TRACE, DEBUG, INFO, WARN or ERROR, default: INFO
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10*time.Minute + 30*time.Second,
			MaxBodyBytes: 10 << 20,
		},
		Provider: ProviderConfig{
			Type:    "none",
			Timeout: 120 * time.Second,
		},
		Sandbox: SandboxConfig{
			Mode:           "local",
			Interpreter:    []string{"python3"},
			DefaultTimeout: 30 * time.Second,
			MaxConcurrent:  3,
			MaxOutputBytes: 1 << 20,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}
