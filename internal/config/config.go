// ABOUTME: Configuration loading and parsing for chorus-orchestrator
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chorus-orchestrator configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	LLM      LLMConfig      `yaml:"llm"`
	Quota    QuotaConfig    `yaml:"quota"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig holds the process-wide credential decryption material.
// MasterSecret and CredentialSalt together derive the AES key used to
// decrypt registered agent private keys.
type SecurityConfig struct {
	MasterSecret   string `yaml:"master_secret"`
	CredentialSalt string `yaml:"credential_salt"`
}

// LLMConfig holds inference capability configuration
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// QuotaConfig holds per-caller daily allowance configuration
type QuotaConfig struct {
	DailyCap    int           `yaml:"daily_cap"`
	GuestCap    int           `yaml:"guest_cap"`
	ResetWindow time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	ResetWindowRaw string `yaml:"reset_window"`
}

// DispatchConfig holds agent fan-out configuration
type DispatchConfig struct {
	CallTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CallTimeoutRaw string `yaml:"call_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default values applied when a config file omits a field
const (
	DefaultDailyCap    = 5
	DefaultGuestCap    = 1
	DefaultResetWindow = 24 * time.Hour
	DefaultCallTimeout = 30 * time.Second
	DefaultModel       = "gpt-4o-mini"
)

// Load reads and parses a configuration file from the given path.
// Environment variables in ${VAR} form are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses raw YAML configuration bytes, expands environment variables,
// applies defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Quota.DailyCap == 0 {
		c.Quota.DailyCap = DefaultDailyCap
	}
	if c.Quota.GuestCap == 0 {
		c.Quota.GuestCap = DefaultGuestCap
	}
	if c.Quota.ResetWindow == 0 {
		c.Quota.ResetWindow = DefaultResetWindow
	}
	if c.Dispatch.CallTimeout == 0 {
		c.Dispatch.CallTimeout = DefaultCallTimeout
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Security.MasterSecret == "" {
		return fmt.Errorf("security.master_secret is required")
	}

	if c.Security.CredentialSalt == "" {
		return fmt.Errorf("security.credential_salt is required")
	}

	if c.Quota.DailyCap < 0 || c.Quota.GuestCap < 0 {
		return fmt.Errorf("quota caps must be non-negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Quota.ResetWindowRaw != "" {
		cfg.Quota.ResetWindow, err = time.ParseDuration(cfg.Quota.ResetWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing reset_window %q: %w", cfg.Quota.ResetWindowRaw, err)
		}
	}

	if cfg.Dispatch.CallTimeoutRaw != "" {
		cfg.Dispatch.CallTimeout, err = time.ParseDuration(cfg.Dispatch.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Dispatch.CallTimeoutRaw, err)
		}
	}

	return nil
}
