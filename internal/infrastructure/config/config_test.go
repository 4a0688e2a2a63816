package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a config file to a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

const validYAML = `
home:
  id: home-test
  name: Test Home
database:
  path: /tmp/homelink-test.db
auth:
  jwt:
    secret: test-secret-key-at-least-32-characters-long
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Home.ID != "home-test" {
		t.Errorf("Home.ID = %q, want %q", cfg.Home.ID, "home-test")
	}
	if cfg.Database.Path != "/tmp/homelink-test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/homelink-test.db")
	}
	// Defaults survive partial files
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080 (default)", cfg.API.Port)
	}
	if cfg.Auth.ResolveTimeout != 10 {
		t.Errorf("Auth.ResolveTimeout = %d, want 10 (default)", cfg.Auth.ResolveTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	yaml := `
home:
  id: home-test
database:
  path: /tmp/test.db
`
	_, err := Load(writeConfig(t, yaml))
	if err == nil {
		t.Fatal("Load() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt.secret") {
		t.Errorf("error = %v, want mention of jwt.secret", err)
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	yaml := `
home:
  id: home-test
database:
  path: /tmp/test.db
auth:
  jwt:
    secret: too-short
`
	_, err := Load(writeConfig(t, yaml))
	if err == nil {
		t.Fatal("Load() should reject short JWT secrets")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOMELINK_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("HOMELINK_API_PORT", "9090")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWT.Secret = "test-secret-key-at-least-32-characters-long"
	cfg.API.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 0")
	}
}

func TestValidate_InfluxRequiresURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWT.Secret = "test-secret-key-at-least-32-characters-long"
	cfg.InfluxDB.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should require influxdb.url when enabled")
	}
}
