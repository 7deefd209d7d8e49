// Package config loads gateway configuration from an optional YAML file
// and TITAN_* environment variables. Values are resolved once at process
// start; request-handling code receives them by value and never reads the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full gateway configuration.
type Config struct {
	// Downstream Titan API.
	APIBaseURL string // base URL, no trailing slash
	APIToken   string // bearer credential for the Titan API
	OrgID      string // optional organization scope

	// Gateway policy.
	EnableWrites bool   // allow mutating tools
	BearerSecret string // inbound bearer secret; empty = open mode

	// Listener.
	Addr     string // host:port
	BasePath string // MCP endpoint path, e.g. /mcp

	// Audit log.
	AuditDBPath    string
	AuditRetention time.Duration

	LogLevel slog.Level
}

// fileConfig is the YAML file shape. Credentials are environment-only.
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	OrgID          string `yaml:"org_id"`
	EnableWrites   *bool  `yaml:"enable_writes"`
	Addr           string `yaml:"addr"`
	BasePath       string `yaml:"base_path"`
	AuditDB        string `yaml:"audit_db"`
	AuditRetention string `yaml:"audit_retention"`
	LogLevel       string `yaml:"log_level"`
}

// Load resolves configuration: defaults, then the YAML file (when it
// exists), then environment variables. Environment wins.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:     "https://api.titan.dev",
		Addr:           "127.0.0.1:8080",
		BasePath:       "/mcp",
		AuditDBPath:    defaultDataPath("audit.db"),
		AuditRetention: 720 * time.Hour,
		LogLevel:       slog.LevelInfo,
	}

	path := envOr("TITAN_MCP_CONFIG", defaultDataPath("titan-mcp.yaml"))
	if _, err := os.Stat(path); err == nil {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	if !strings.HasPrefix(cfg.BasePath, "/") {
		cfg.BasePath = "/" + cfg.BasePath
	}
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")
	if cfg.BasePath == "" {
		cfg.BasePath = "/mcp"
	}

	if cfg.APIToken == "" {
		return nil, fmt.Errorf("TITAN_API_TOKEN is required")
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.APIURL != "" {
		cfg.APIBaseURL = fc.APIURL
	}
	if fc.OrgID != "" {
		cfg.OrgID = fc.OrgID
	}
	if fc.EnableWrites != nil {
		cfg.EnableWrites = *fc.EnableWrites
	}
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	if fc.BasePath != "" {
		cfg.BasePath = fc.BasePath
	}
	if fc.AuditDB != "" {
		cfg.AuditDBPath = fc.AuditDB
	}
	if fc.AuditRetention != "" {
		d, err := time.ParseDuration(fc.AuditRetention)
		if err != nil {
			return fmt.Errorf("parse audit_retention: %w", err)
		}
		cfg.AuditRetention = d
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TITAN_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("TITAN_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("TITAN_ORG_ID"); v != "" {
		cfg.OrgID = v
	}
	if v := os.Getenv("TITAN_MCP_ENABLE_WRITES"); v != "" {
		cfg.EnableWrites = parseBool(v)
	}
	if v := os.Getenv("TITAN_MCP_BEARER"); v != "" {
		cfg.BearerSecret = v
	}
	if v := os.Getenv("TITAN_MCP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("TITAN_MCP_PATH"); v != "" {
		cfg.BasePath = v
	}
	if v := os.Getenv("TITAN_MCP_AUDIT_DB"); v != "" {
		cfg.AuditDBPath = v
	}
	if v := os.Getenv("TITAN_MCP_AUDIT_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TITAN_MCP_AUDIT_RETENTION: %w", err)
		}
		cfg.AuditRetention = d
	}
	if v := os.Getenv("TITAN_MCP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	return nil
}

// defaultDataPath returns ~/.titan-mcp/<filename>, falling back to a
// CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".titan-mcp", filename)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
