// ABOUTME: Configuration loading and parsing for query-assistant
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a field or does not exist.
const (
	DefaultHTTPAddr    = "127.0.0.1:8501"
	DefaultSecretsFile = ".streamlit/secrets.toml"
	DefaultEnvFile     = ".env"
	DefaultAgentHost   = "https://api.agents.weaviate.io"
	DefaultCollection  = "Cookbook"
	DefaultTitle       = "Loren Cook Query Assistant"
	DefaultDescription = "Query the Loren Cook test collection using Weaviate + OpenAI."
)

// Config represents the complete query-assistant configuration.
// Credentials are not part of it: they are resolved per request by the
// credentials package from the secrets file or the environment.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Weaviate    WeaviateConfig    `yaml:"weaviate"`
	Agent       AgentConfig       `yaml:"agent"`
	UI          UIConfig          `yaml:"ui"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// CredentialsConfig points at the two credential sources.
type CredentialsConfig struct {
	SecretsFile string `yaml:"secrets_file"`
	EnvFile     string `yaml:"env_file"`
}

// WeaviateConfig holds connection settings for the Weaviate cluster.
// Timeout bounds each connect-time check, not the query that follows.
type WeaviateConfig struct {
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// AgentConfig holds settings for the hosted query agent.
type AgentConfig struct {
	Host       string `yaml:"host"`
	Collection string `yaml:"collection"`
	Limit      int    `yaml:"limit"`

	// Timeout of zero means the call waits for completion or failure.
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// UIConfig holds the page text
type UIConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

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

// LoadOrDefault behaves like Load but returns defaults when the file does not exist.
// The boolean reports whether a file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return nil, false, err
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
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Credentials.SecretsFile == "" {
		c.Credentials.SecretsFile = DefaultSecretsFile
	}
	if c.Credentials.EnvFile == "" {
		c.Credentials.EnvFile = DefaultEnvFile
	}
	if c.Agent.Host == "" {
		c.Agent.Host = DefaultAgentHost
	}
	if c.Agent.Collection == "" {
		c.Agent.Collection = DefaultCollection
	}
	if c.UI.Title == "" {
		c.UI.Title = DefaultTitle
	}
	if c.UI.Description == "" {
		c.UI.Description = DefaultDescription
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	u, err := url.Parse(c.Agent.Host)
	if err != nil {
		return fmt.Errorf("agent.host is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("agent.host must use http or https scheme")
	}

	if c.Agent.Limit < 0 {
		return fmt.Errorf("agent.limit must not be negative")
	}
	if c.Agent.Timeout < 0 {
		return fmt.Errorf("agent.timeout must not be negative")
	}
	if c.Weaviate.Timeout < 0 {
		return fmt.Errorf("weaviate.timeout must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Weaviate.TimeoutRaw != "" {
		cfg.Weaviate.Timeout, err = time.ParseDuration(cfg.Weaviate.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing weaviate.timeout %q: %w", cfg.Weaviate.TimeoutRaw, err)
		}
	}

	if cfg.Agent.TimeoutRaw != "" {
		cfg.Agent.Timeout, err = time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
	}

	return nil
}
