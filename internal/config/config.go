// Package config loads chatterm configuration and sets up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	APIBaseURL string `yaml:"api_base_url"`

	// OAuth
	OAuthClientID    string `yaml:"oauth_client_id"`
	OAuthAuthURL     string `yaml:"oauth_auth_url"`
	OAuthRedirectURL string `yaml:"oauth_redirect_url"`

	// Local state
	TokenFile string `yaml:"token_file"`
	CacheDB   string `yaml:"cache_db"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// Raw log level from the file, resolved into LogLevel.
	LogLevelName string `yaml:"log_level"`
}

// Dir returns the chatterm config directory, honoring the platform user
// config dir.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "chatterm")
}

// defaults returns the built-in configuration.
func defaults() Config {
	dir := Dir()
	return Config{
		APIBaseURL:       "http://localhost:8000",
		OAuthAuthURL:     "https://oauth.iitd.ac.in",
		OAuthRedirectURL: "http://localhost:8910/callback",
		TokenFile:        filepath.Join(dir, "token"),
		CacheDB:          filepath.Join(dir, "cache.db"),
		LogFile:          filepath.Join(dir, "chatterm.log"),
		LogLevel:         slog.LevelInfo,
	}
}

// Load builds the configuration: defaults, overridden by the YAML config
// file when present, overridden by CHATTERM_* environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if err := loadFile(&cfg, filepath.Join(Dir(), "config.yaml")); err != nil {
		return cfg, err
	}
	if cfg.LogLevelName != "" {
		cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// loadFile merges the YAML file at path into cfg. A missing file is fine;
// a malformed one is a configuration error.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.APIBaseURL, "CHATTERM_API_BASE_URL")
	setEnv(&cfg.OAuthClientID, "CHATTERM_OAUTH_CLIENT_ID")
	setEnv(&cfg.OAuthAuthURL, "CHATTERM_OAUTH_AUTH_URL")
	setEnv(&cfg.OAuthRedirectURL, "CHATTERM_OAUTH_REDIRECT_URL")
	setEnv(&cfg.TokenFile, "CHATTERM_TOKEN_FILE")
	setEnv(&cfg.CacheDB, "CHATTERM_CACHE_DB")
	setEnv(&cfg.LogFile, "CHATTERM_LOG_FILE")

	if val := os.Getenv("CHATTERM_LOG_LEVEL"); val != "" {
		cfg.LogLevel = parseLogLevel(val)
	}
}

func setEnv(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
