package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a mission-control deployment.
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Langfuse Langfuse `yaml:"langfuse"`
	Workflow Workflow `yaml:"workflow"`
	Log      Log      `yaml:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr        string   `yaml:"addr"`                   // host:port to bind
	CORSOrigins []string `yaml:"cors_origins,omitempty"` // allowed browser origins
}

// Database configures the SQLite store.
type Database struct {
	Path string `yaml:"path"`
}

// Langfuse configures the telemetry import source. Import stays disabled
// until all three fields are set.
type Langfuse struct {
	Host      string `yaml:"host,omitempty"`
	PublicKey string `yaml:"public_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// Enabled reports whether the import credentials are fully configured.
func (l Langfuse) Enabled() bool {
	return l.Host != "" && l.PublicKey != "" && l.SecretKey != ""
}

// Workflow configures the filesystem workflow board.
type Workflow struct {
	Root string `yaml:"root,omitempty"` // supervisor system directory
}

// Log configures structured logging.
type Log struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads and parses the config file at the given path, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config file when it exists, otherwise returns the
// defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnv()
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: Server{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: Database{Path: "mission-control.db"},
		Log:      Log{Level: "info"},
	}
}

// applyEnv overlays MISSION_CONTROL_* environment variables onto the config.
func (c *Config) applyEnv() {
	setFromEnv(&c.Server.Addr, "MISSION_CONTROL_ADDR")
	setFromEnv(&c.Database.Path, "MISSION_CONTROL_DB_PATH")
	setFromEnv(&c.Langfuse.Host, "MISSION_CONTROL_LANGFUSE_HOST")
	setFromEnv(&c.Langfuse.PublicKey, "MISSION_CONTROL_LANGFUSE_PUBLIC_KEY")
	setFromEnv(&c.Langfuse.SecretKey, "MISSION_CONTROL_LANGFUSE_SECRET_KEY")
	setFromEnv(&c.Workflow.Root, "MISSION_CONTROL_WORKFLOW_ROOT")
	setFromEnv(&c.Log.Level, "MISSION_CONTROL_LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Langfuse.Host != "" || c.Langfuse.PublicKey != "" || c.Langfuse.SecretKey != "" {
		if !c.Langfuse.Enabled() {
			return fmt.Errorf("langfuse requires host, public_key and secret_key together")
		}
	}
	return nil
}
