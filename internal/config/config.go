package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/incidentfox/incidentfox/internal/database"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	// DefaultDirName is created under the user's home directory
	DefaultDirName = ".incidentfox"
	// DefaultConfigFile is looked up inside the data directory
	DefaultConfigFile = "config.yaml"
)

// Config holds all configuration for the application
type Config struct {
	// Store configuration
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`

	Catalog CatalogConfig `yaml:"catalog"`
	Log     LogConfig     `yaml:"log"`
	MCP     MCPConfig     `yaml:"mcp"`
	Slack   SlackConfig   `yaml:"slack"`

	// File is the config file that was loaded, empty when none was found
	File string `yaml:"-"`
}

// CatalogConfig locates the service catalog
type CatalogConfig struct {
	Path            string `yaml:"path"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MCPConfig controls how the MCP server is exposed
type MCPConfig struct {
	Transport string   `yaml:"transport"`
	HTTPAddr  string   `yaml:"http_addr"`
	APIKeys   []string `yaml:"api_keys"`
	// RateLimit is requests per second on the HTTP transport; 0 disables it
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// SlackConfig enables completion notifications
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Catalog: CatalogConfig{CacheTTLSeconds: 30},
		Log:     LogConfig{Level: "info", Format: "auto"},
		MCP: MCPConfig{
			Transport: TransportStdio,
			HTTPAddr:  "127.0.0.1:8765",
			RateBurst: 20,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence. An explicit path
// must exist; otherwise <data dir>/config.yaml is used when present.
func Load(path string) (*Config, error) {
	cfg := Default()
	if dir := os.Getenv("INCIDENTFOX_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	if path == "" {
		candidate := filepath.Join(cfg.DataDir, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.File = path
	}

	applyEnv(cfg)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.DefaultPath(cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DataDir = getEnvOrDefault("INCIDENTFOX_DATA_DIR", cfg.DataDir)
	cfg.DatabaseURL = getEnvOrDefault("INCIDENTFOX_DATABASE_URL", cfg.DatabaseURL)
	cfg.Catalog.Path = getEnvOrDefault("INCIDENTFOX_CATALOG", cfg.Catalog.Path)
	cfg.Log.Level = getEnvOrDefault("INCIDENTFOX_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("INCIDENTFOX_LOG_FORMAT", cfg.Log.Format)
	cfg.MCP.Transport = getEnvOrDefault("MCP_TRANSPORT", cfg.MCP.Transport)
	cfg.MCP.HTTPAddr = getEnvOrDefault("MCP_HTTP_ADDR", cfg.MCP.HTTPAddr)
	cfg.MCP.RateLimit = getEnvAsFloatOrDefault("MCP_RATE_LIMIT", cfg.MCP.RateLimit)
	cfg.MCP.RateBurst = getEnvAsIntOrDefault("MCP_RATE_BURST", cfg.MCP.RateBurst)
	if keys := os.Getenv("INCIDENTFOX_API_KEYS"); keys != "" {
		cfg.MCP.APIKeys = splitList(keys)
	}
	cfg.Slack.WebhookURL = getEnvOrDefault("SLACK_WEBHOOK_URL", cfg.Slack.WebhookURL)
	cfg.Slack.Channel = getEnvOrDefault("SLACK_CHANNEL", cfg.Slack.Channel)
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	switch c.MCP.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("unsupported MCP transport %q (want %s or %s)", c.MCP.Transport, TransportStdio, TransportHTTP))
	}
	if c.MCP.Transport == TransportHTTP && c.MCP.HTTPAddr == "" {
		errs = append(errs, errors.New("MCP HTTP address is required for the http transport"))
	}
	if c.MCP.RateLimit < 0 {
		errs = append(errs, errors.New("MCP rate limit must not be negative"))
	}
	if c.Catalog.CacheTTLSeconds < 0 {
		errs = append(errs, errors.New("catalog cache TTL must not be negative"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database URL is empty"))
	}
	return errors.Join(errs...)
}

// EnsureDataDir creates the data directory with owner-only permissions
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create data directory %s: %w", c.DataDir, err)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
