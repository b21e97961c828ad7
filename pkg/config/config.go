package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the process needs, assembled once at startup by
// Load and passed explicitly to the components that use it. Secrets and
// connection settings come from environment variables; the optional YAML
// file under the user's home directory (~/.taskpilot/config.yaml) only
// carries server host/port.
//
// Environment variables:
//
//	DATABASE_PATH     sqlite database file (default ./taskpilot.db)
//	AUTH_SECRET       HS256 secret for bearer-token validation
//	OPENAI_API_KEY    key for the chat-completion provider
//	OPENAI_BASE_URL   OpenAI-compatible endpoint (default api.openai.com)
//	OPENAI_MODEL      model name (default gpt-4o-mini)
//	ENVIRONMENT       "development" or "production" (default development)
//	TASKPILOT_HOST    overrides server.host from the config file
//	TASKPILOT_PORT    overrides server.port from the config file
type Config struct {
	Host string
	Port int

	DatabasePath string
	AuthSecret   string
	Environment  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

type fileConfig struct {
	Server struct {
		Host *string `yaml:"host"`
		Port *int    `yaml:"port"`
	} `yaml:"server"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8090

	DefaultDatabasePath = "taskpilot.db"
	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultModel        = "gpt-4o-mini"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".taskpilot")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load builds and validates the configuration. A missing config file is not
// an error; an unparsable one is. Production refuses to start without an
// auth secret and a provider API key; development falls back to the dev
// token bypass and the fallback reply path instead.
func Load() (*Config, error) {
	cfg := &Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		DatabasePath:  getenvDefault("DATABASE_PATH", DefaultDatabasePath),
		AuthSecret:    os.Getenv("AUTH_SECRET"),
		Environment:   strings.ToLower(getenvDefault("ENVIRONMENT", EnvDevelopment)),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getenvDefault("OPENAI_BASE_URL", DefaultBaseURL),
		OpenAIModel:   getenvDefault("OPENAI_MODEL", DefaultModel),
	}

	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	if b, err := os.ReadFile(configFile); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", configFile, err)
		}
		if fc.Server.Host != nil && strings.TrimSpace(*fc.Server.Host) != "" {
			cfg.Host = strings.TrimSpace(*fc.Server.Host)
		}
		if fc.Server.Port != nil {
			cfg.Port = *fc.Server.Port
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if v := strings.TrimSpace(os.Getenv("TASKPILOT_HOST")); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TASKPILOT_PORT %q: %w", v, err)
		}
		cfg.Port = p
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Port)
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("invalid ENVIRONMENT %q (want %s or %s)", c.Environment, EnvDevelopment, EnvProduction)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return errors.New("DATABASE_PATH must not be empty")
	}
	if c.IsProduction() {
		if c.AuthSecret == "" {
			return errors.New("AUTH_SECRET is required in production")
		}
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required in production")
		}
	}
	return nil
}

// IsProduction reports whether the dev token bypass must be rejected.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
