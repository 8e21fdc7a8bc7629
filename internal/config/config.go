// Package config loads and validates the desk application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	SharePoint SharePointConfig `yaml:"sharepoint"`
	Auth       AuthConfig       `yaml:"auth"`
	Listen     ListenConfig     `yaml:"listen"`
	Store      StoreConfig      `yaml:"store"`
	Lists      ListsConfig      `yaml:"lists"`
	Log        LogConfig        `yaml:"log"`
}

// SharePointConfig holds the Azure AD / SharePoint connection settings.
// TenantID and ClientID may be empty: the app then runs in demo mode and the
// coordinator rejects interactive logins with a configuration error.
type SharePointConfig struct {
	SiteURL      string   `yaml:"site_url"`      // SharePoint site, also the credential store key
	TenantID     string   `yaml:"tenant_id"`     // Azure AD tenant
	ClientID     string   `yaml:"client_id"`     // app registration client ID
	ClientSecret string   `yaml:"client_secret"` // optional, empty for PKCE-only public clients
	RedirectURI  string   `yaml:"redirect_uri"`  // loopback redirect target
	Scopes       []string `yaml:"scopes"`
}

// AuthConfig tunes the login session state machine.
type AuthConfig struct {
	PollInterval    int  `yaml:"poll_interval"`     // seconds between credential-store polls
	PollMaxAttempts int  `yaml:"poll_max_attempts"` // polling budget before the session times out
	CloseGraceMs    int  `yaml:"close_grace_ms"`    // wait after auth window close before the final auth check
	ExchangeTimeout int  `yaml:"exchange_timeout"`  // seconds budget for a single token endpoint call
	VerifyIDToken   bool `yaml:"verify_id_token"`   // opt-in ID token signature/nonce verification
}

// ListenConfig defines where the app listens.
type ListenConfig struct {
	HTTP   string `yaml:"http"`   // loopback redirect server address (e.g. "127.0.0.1:1420")
	Socket string `yaml:"socket"` // Unix socket for the cross-process event relay
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, file, or keyring
	Path    string `yaml:"path"`    // file backend: path to the credentials document
	Service string `yaml:"service"` // keyring backend: keychain service name
}

// ListsConfig overrides the SharePoint list titles the record layer reads.
type ListsConfig struct {
	ServiziGiorno   string `yaml:"servizi_giorno"`
	ProssimiServizi string `yaml:"prossimi_servizi"`
	Tesserati       string `yaml:"tesserati"`
	Automezzi       string `yaml:"automezzi"`
	Operatori       string `yaml:"operatori"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the file when it exists and falls back to the
// defaults otherwise. Desktop installs often run without a config file,
// entirely on environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SharePoint: SharePointConfig{
			RedirectURI: "http://localhost:1420",
			Scopes:      []string{"https://graph.microsoft.com/Sites.ReadWrite.All", "offline_access"},
		},
		Auth: AuthConfig{
			PollInterval:    2,    // seconds; 60 attempts * 2s = 2 minute ceiling
			PollMaxAttempts: 60,
			CloseGraceMs:    1500,
			ExchangeTimeout: 20,
		},
		Listen: ListenConfig{
			HTTP:   "127.0.0.1:1420",
			Socket: defaultSocketPath(),
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    defaultStorePath(),
			Service: "trasporti-desk",
		},
		Lists: ListsConfig{
			ServiziGiorno:   "Servizi Giorno",
			ProssimiServizi: "Prossimi Servizi",
			Tesserati:       "Tesserati",
			Automezzi:       "Automezzi",
			Operatori:       "Operatori",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultSocketPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/trasporti-desk/events.sock"
	}
	return "/tmp/trasporti-desk-events.sock"
}

func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/trasporti-desk/credentials.json"
	}
	return "credentials.json"
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRASPORTI_SITE_URL"); v != "" {
		c.SharePoint.SiteURL = v
	}
	if v := os.Getenv("TRASPORTI_TENANT_ID"); v != "" {
		c.SharePoint.TenantID = v
	}
	if v := os.Getenv("TRASPORTI_CLIENT_ID"); v != "" {
		c.SharePoint.ClientID = v
	}
	if v := os.Getenv("TRASPORTI_CLIENT_SECRET"); v != "" {
		c.SharePoint.ClientSecret = v
	}
	if v := os.Getenv("TRASPORTI_REDIRECT_URI"); v != "" {
		c.SharePoint.RedirectURI = v
	}

	if v := os.Getenv("TRASPORTI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TRASPORTI_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	if v := os.Getenv("TRASPORTI_LISTEN_HTTP"); v != "" {
		c.Listen.HTTP = v
	}
	if v := os.Getenv("TRASPORTI_LISTEN_SOCKET"); v != "" {
		c.Listen.Socket = v
	}

	if v := os.Getenv("TRASPORTI_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("TRASPORTI_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

// Validate checks that the configuration is consistent.
// Tenant and client IDs are deliberately not required here: the app can run
// unauthenticated in demo mode, and the login coordinator reports a
// configuration error at the moment the user actually tries to sign in.
func (c *Config) Validate() error {
	// An empty site URL is allowed: the app then serves demo records only.
	if c.SharePoint.SiteURL != "" && !isHTTPURL(c.SharePoint.SiteURL) {
		return fmt.Errorf("sharepoint.site_url must be a valid HTTP(S) URL")
	}

	if c.SharePoint.RedirectURI == "" {
		return fmt.Errorf("sharepoint.redirect_uri is required")
	}
	if !isHTTPURL(c.SharePoint.RedirectURI) {
		return fmt.Errorf("sharepoint.redirect_uri must be a valid HTTP(S) URL")
	}

	if len(c.SharePoint.Scopes) == 0 {
		return fmt.Errorf("sharepoint.scopes must contain at least one scope")
	}

	if c.Auth.PollInterval <= 0 {
		return fmt.Errorf("auth.poll_interval must be positive")
	}
	if c.Auth.PollMaxAttempts <= 0 {
		return fmt.Errorf("auth.poll_max_attempts must be positive")
	}
	if c.Auth.CloseGraceMs < 0 {
		return fmt.Errorf("auth.close_grace_ms must not be negative")
	}
	if c.Auth.ExchangeTimeout <= 0 {
		return fmt.Errorf("auth.exchange_timeout must be positive")
	}

	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case "keyring":
		if c.Store.Service == "" {
			return fmt.Errorf("store.service is required for the keyring backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of: memory, file, keyring")
	}

	if c.Listen.HTTP == "" {
		return fmt.Errorf("listen.http is required")
	}
	if c.Listen.Socket == "" {
		return fmt.Errorf("listen.socket is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: json, text")
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// PollIntervalDuration returns the polling interval as a duration.
func (c *AuthConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// CloseGraceDuration returns the window-close grace delay as a duration.
func (c *AuthConfig) CloseGraceDuration() time.Duration {
	return time.Duration(c.CloseGraceMs) * time.Millisecond
}

// ExchangeTimeoutDuration returns the token exchange deadline as a duration.
func (c *AuthConfig) ExchangeTimeoutDuration() time.Duration {
	return time.Duration(c.ExchangeTimeout) * time.Second
}

// SetupLogging configures the global slog logger based on the LogConfig.
func SetupLogging(cfg *LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Redact returns a deep-enough copy of the config with secrets redacted
// for safe logging.
func (c *Config) Redact() *Config {
	redacted := *c
	if c.SharePoint.Scopes != nil {
		redacted.SharePoint.Scopes = make([]string, len(c.SharePoint.Scopes))
		copy(redacted.SharePoint.Scopes, c.SharePoint.Scopes)
	}
	if redacted.SharePoint.ClientSecret != "" {
		redacted.SharePoint.ClientSecret = "[REDACTED]"
	}
	return &redacted
}
