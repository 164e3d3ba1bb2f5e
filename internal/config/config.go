package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models tripline.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		// AllowUnverified restores the prototype behavior of extracting
		// claims without signature verification. Off by default.
		AllowUnverified bool `yaml:"allow_unverified"`
	} `yaml:"auth"`
	Assistant struct {
		Endpoint       string `yaml:"endpoint"`
		APIKeyEnv      string `yaml:"api_key_env"`
		PrimaryModel   string `yaml:"primary_model"`
		FallbackModel  string `yaml:"fallback_model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		HistoryLimit   int    `yaml:"history_limit"`
	} `yaml:"assistant"`
	Geocode struct {
		PrimaryEndpoint  string `yaml:"primary_endpoint"`
		FallbackEndpoint string `yaml:"fallback_endpoint"`
		MaxResults       int    `yaml:"max_results"`
	} `yaml:"geocode"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Assistant.PrimaryModel == "" {
		return fmt.Errorf("config.assistant.primary_model is required")
	}
	if c.Assistant.APIKeyEnv == "" {
		return fmt.Errorf("config.assistant.api_key_env is required")
	}
	if c.Assistant.TimeoutSeconds < 0 {
		return fmt.Errorf("config.assistant.timeout_seconds must not be negative")
	}
	if c.Geocode.MaxResults < 0 {
		return fmt.Errorf("config.geocode.max_results must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "tripline.yml")
}

// APIKey resolves the completion-service key from the configured env var.
func (c *Config) APIKey() string {
	if c.Assistant.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Assistant.APIKeyEnv)
}

// DefaultYAML returns the default config file contents.
func DefaultYAML() []byte {
	return []byte(defaultTemplate)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: :8080
  base_path: /v1

auth:
  jwt_secret: ""
  allow_unverified: false

assistant:
  endpoint: https://generativelanguage.googleapis.com
  api_key_env: TRIPLINE_ASSISTANT_API_KEY
  primary_model: gemini-2.0-flash
  fallback_model: gemini-2.0-flash-lite
  timeout_seconds: 45
  history_limit: 20

geocode:
  primary_endpoint: https://nominatim.openstreetmap.org/search
  fallback_endpoint: https://geocode.maps.co/search
  max_results: 5
`
