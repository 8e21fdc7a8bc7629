package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
sharepoint:
  site_url: https://contoso.sharepoint.com/sites/trasporti
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Defaults fill everything the file omits
	if cfg.SharePoint.RedirectURI != "http://localhost:1420" {
		t.Errorf("RedirectURI = %s, want http://localhost:1420", cfg.SharePoint.RedirectURI)
	}
	if cfg.Auth.PollInterval != 2 {
		t.Errorf("PollInterval = %d, want 2", cfg.Auth.PollInterval)
	}
	if cfg.Auth.PollMaxAttempts != 60 {
		t.Errorf("PollMaxAttempts = %d, want 60", cfg.Auth.PollMaxAttempts)
	}
	if cfg.Auth.CloseGraceMs != 1500 {
		t.Errorf("CloseGraceMs = %d, want 1500", cfg.Auth.CloseGraceMs)
	}
	if cfg.Lists.ServiziGiorno != "Servizi Giorno" || cfg.Lists.Tesserati != "Tesserati" {
		t.Errorf("default list titles not applied: %+v", cfg.Lists)
	}

	// Tenant/client absent is valid: demo mode
	if cfg.SharePoint.TenantID != "" || cfg.SharePoint.ClientID != "" {
		t.Error("tenant/client should be empty in minimal config")
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sharepoint:
  site_url: https://contoso.sharepoint.com/sites/trasporti
  tenant_id: t1
  client_id: c1
  client_secret: s3cret
  redirect_uri: http://localhost:9999
auth:
  poll_interval: 1
  poll_max_attempts: 5
  verify_id_token: true
store:
  backend: memory
lists:
  servizi_giorno: LOREAPP_SERVIZI
log:
  level: debug
  format: json
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SharePoint.TenantID != "t1" || cfg.SharePoint.ClientID != "c1" {
		t.Error("tenant/client not parsed")
	}
	if cfg.Auth.PollIntervalDuration() != time.Second {
		t.Errorf("PollIntervalDuration = %v, want 1s", cfg.Auth.PollIntervalDuration())
	}
	if !cfg.Auth.VerifyIDToken {
		t.Error("VerifyIDToken not parsed")
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %s, want memory", cfg.Store.Backend)
	}
	if cfg.Lists.ServiziGiorno != "LOREAPP_SERVIZI" {
		t.Errorf("Lists.ServiziGiorno = %s, want the file override", cfg.Lists.ServiziGiorno)
	}
	if cfg.Lists.Operatori != "Operatori" {
		t.Errorf("Lists.Operatori = %s, want the default", cfg.Lists.Operatori)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRASPORTI_TENANT_ID", "env-tenant")
	t.Setenv("TRASPORTI_CLIENT_ID", "env-client")
	t.Setenv("TRASPORTI_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SharePoint.TenantID != "env-tenant" {
		t.Errorf("TenantID = %s, want env-tenant", cfg.SharePoint.TenantID)
	}
	if cfg.SharePoint.ClientID != "env-client" {
		t.Errorf("ClientID = %s, want env-client", cfg.SharePoint.ClientID)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad site url", func(c *Config) { c.SharePoint.SiteURL = "ftp://x" }},
		{"missing redirect", func(c *Config) { c.SharePoint.RedirectURI = "" }},
		{"no scopes", func(c *Config) { c.SharePoint.Scopes = nil }},
		{"zero poll interval", func(c *Config) { c.Auth.PollInterval = 0 }},
		{"zero poll budget", func(c *Config) { c.Auth.PollMaxAttempts = 0 }},
		{"negative grace", func(c *Config) { c.Auth.CloseGraceMs = -1 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"file backend without path", func(c *Config) { c.Store.Backend = "file"; c.Store.Path = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SharePoint.SiteURL = "https://contoso.sharepoint.com/sites/trasporti"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should have failed")
			}
		})
	}
}

func TestValidateAllowsEmptySiteURL(t *testing.T) {
	// Demo mode runs without a SharePoint site configured.
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate rejected the default demo config: %v", err)
	}
}

func TestRedact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SharePoint.SiteURL = "https://contoso.sharepoint.com/sites/trasporti"
	cfg.SharePoint.ClientSecret = "super-secret"

	redacted := cfg.Redact()
	if redacted.SharePoint.ClientSecret != "[REDACTED]" {
		t.Errorf("ClientSecret = %s, want [REDACTED]", redacted.SharePoint.ClientSecret)
	}
	if cfg.SharePoint.ClientSecret != "super-secret" {
		t.Error("Redact must not mutate the original")
	}
}
