// ABOUTME: Configuration loading and parsing for socrates-gateway
// ABOUTME: Supports YAML files with environment variable expansion, defaults and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	ProviderOpenAI   = "openai"
	ProviderScripted = "scripted"
)

// Defaults applied by Load.
const (
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultDriver      = "sqlite"
	DefaultModel       = "gpt-4.1-mini"
	DefaultSaveTimeout = 5 * time.Second
)

// Config represents the complete socrates-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Persona  PersonaConfig  `yaml:"persona"`
	Turns    TurnsConfig    `yaml:"turns"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ProviderConfig selects and configures the language-model provider
type ProviderConfig struct {
	Kind    string `yaml:"kind"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// PersonaConfig points at the persona asset or carries it inline
type PersonaConfig struct {
	Path string `yaml:"path"`
	Text string `yaml:"text"`
}

// TurnsConfig holds turn timing configuration
type TurnsConfig struct {
	SaveTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SaveTimeoutRaw string `yaml:"save_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates the result.
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

// Default returns a configuration suitable for local development: scripted
// provider, database under the user's data directory.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath()
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = ProviderScripted
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModel
	}
	if c.Turns.SaveTimeout == 0 {
		c.Turns.SaveTimeout = DefaultSaveTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if !slices.Contains([]string{"sqlite", "sqlite3", "memory"}, c.Database.Driver) {
		return fmt.Errorf("database.driver must be sqlite, sqlite3 or memory, got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Provider.Kind {
	case ProviderScripted:
	case ProviderOpenAI:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("provider.kind must be %s or %s, got %q", ProviderOpenAI, ProviderScripted, c.Provider.Kind)
	}

	if c.Persona.Path != "" && c.Persona.Text != "" {
		return fmt.Errorf("persona.path and persona.text are mutually exclusive")
	}

	if c.Turns.SaveTimeout < 0 {
		return fmt.Errorf("turns.save_timeout must be positive")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Turns.SaveTimeoutRaw != "" {
		cfg.Turns.SaveTimeout, err = time.ParseDuration(cfg.Turns.SaveTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing save_timeout %q: %w", cfg.Turns.SaveTimeoutRaw, err)
		}
	}

	return nil
}

// ResolvePath returns the config file to load: the explicit flag value,
// then SOCRATES_CONFIG, then $XDG_CONFIG_HOME/socrates/config.yaml. The
// second result reports whether the file must exist.
func ResolvePath(flagValue string) (string, bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if env := os.Getenv("SOCRATES_CONFIG"); env != "" {
		return env, true
	}
	return filepath.Join(configHome(), "socrates", "config.yaml"), false
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return "."
}

func defaultDatabasePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "socrates", "socrates.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "socrates", "socrates.db")
	}
	return "socrates.db"
}
