package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models minoil.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		// JWTSecret signs and verifies API bearer tokens.
		JWTSecret string `yaml:"jwt_secret"`
		// AllowLegacyActorHeader accepts X-Actor-Id in place of a bearer
		// token. Meant for local tooling only.
		AllowLegacyActorHeader bool `yaml:"allow_legacy_actor_header"`
	} `yaml:"server"`
	Backup struct {
		Dir  string `yaml:"dir"`
		Keep int    `yaml:"keep"`
	} `yaml:"backup"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run minoil init or create it by hand", path)
		}
		return nil, err
	}
	return FromYAML(data, workspace)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(workspace), nil
		}
		return nil, err
	}
	return FromYAML(data, workspace)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte, workspace string) (*Config, error) {
	cfg := Default(workspace)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("config.backup.keep must not be negative")
	}
	return nil
}

// Default returns the built-in configuration for a workspace.
func Default(workspace string) *Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Server.BasePath = "/v0"
	cfg.Backup.Dir = filepath.Join(workspace, ".minoil", "backups")
	cfg.Backup.Keep = 30
	return &cfg
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "minoil.yml")
}
