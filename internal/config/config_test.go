package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected
// default values. This serves as living documentation of the defaults and
// makes accidental default changes fail loudly.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default APIURL is the vendor v1 endpoint", func(t *testing.T) {
		t.Parallel()
		if cfg.APIURL != "https://api.endorlabs.com/v1" {
			t.Errorf("expected APIURL to be the vendor v1 endpoint, got %q", cfg.APIURL)
		}
	})

	t.Run("default Timeout is 600 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 600*time.Second {
			t.Errorf("expected Timeout to be 600s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Workers is 1 (sequential)", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 1 {
			t.Errorf("expected Workers to be 1, got %d", cfg.Workers)
		}
	})

	t.Run("default MaxAttempts is 5", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxAttempts != 5 {
			t.Errorf("expected MaxAttempts to be 5, got %d", cfg.MaxAttempts)
		}
	})

	t.Run("default RetryBaseDelay is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.RetryBaseDelay != time.Second {
			t.Errorf("expected RetryBaseDelay to be 1s, got %v", cfg.RetryBaseDelay)
		}
	})

	t.Run("default output and state dirs", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "exports" {
			t.Errorf("expected OutputDir to be 'exports', got %q", cfg.OutputDir)
		}
		if cfg.StateDir != ".state" {
			t.Errorf("expected StateDir to be '.state', got %q", cfg.StateDir)
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveHistory {
			t.Error("expected SaveHistory to be true")
		}
		if cfg.HistoryDBDir == "" {
			t.Error("expected HistoryDBDir to default to the XDG data dir")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case targets one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	// validConfig returns a minimal valid configuration.
	// Tests can modify specific fields to test validation rules.
	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.RootNamespace = "acme"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(_ *Config) {}, wantErr: nil},
		{name: "missing namespace", modify: func(c *Config) { c.RootNamespace = "" }, wantErr: ErrNoNamespace},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative findings timeout", modify: func(c *Config) { c.FindingsTimeout = -1 }, wantErr: ErrInvalidTimeout},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "zero max attempts", modify: func(c *Config) { c.MaxAttempts = 0 }, wantErr: ErrInvalidMaxAttempts},
		{name: "negative retry delay", modify: func(c *Config) { c.RetryBaseDelay = -time.Second }, wantErr: ErrInvalidRetryDelay},
		{name: "empty output dir", modify: func(c *Config) { c.OutputDir = "" }, wantErr: ErrInvalidDirectory},
		{name: "empty state dir", modify: func(c *Config) { c.StateDir = "" }, wantErr: ErrInvalidDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestLoadConfigFile tests YAML config file loading and namespace merging.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid YAML returns an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("namespaces: [not a map"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML, got nil")
		}
	})

	t.Run("namespace overrides merge over defaults", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  findingsPageSize: 200
namespaces:
  acme.prod:
    findingsPageSize: 50
    skipProjects:
      - deadbeef
`
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}

		got := cf.GetNamespaceConfig("acme.prod")
		if got.FindingsPageSize != 50 {
			t.Errorf("FindingsPageSize = %d, want 50 (namespace override)", got.FindingsPageSize)
		}
		if !got.ShouldSkip("deadbeef") {
			t.Error("expected deadbeef to be in skip list")
		}
		if got.ShouldSkip("cafebabe") {
			t.Error("did not expect cafebabe to be in skip list")
		}

		other := cf.GetNamespaceConfig("acme.dev")
		if other.FindingsPageSize != 200 {
			t.Errorf("FindingsPageSize = %d, want 200 (file default)", other.FindingsPageSize)
		}
	})
}

// TestFindConfigFile verifies the config file search order.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists is returned", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "myconfig.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile(%q) = %q, want same path", path, got)
		}
	})

	t.Run("explicit path that does not exist returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

// TestFindConfigFileXDG verifies the XDG config directory search step.
// t.Setenv and xdg.Reload forbid t.Parallel here.
func TestFindConfigFileXDG(t *testing.T) {
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()

	dir := XDGConfigDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, DefaultConfigFile)
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(""); got != path {
		t.Errorf("FindConfigFile(\"\") = %q, want %q", got, path)
	}
}

// TestLoadCredentials verifies the env-based credential loading paths.
// t.Setenv forbids t.Parallel, so these subtests run sequentially.
func TestLoadCredentials(t *testing.T) {
	clearEnv := func(t *testing.T) {
		t.Helper()
		t.Setenv(EnvToken, "")
		t.Setenv(EnvAPIKey, "")
		t.Setenv(EnvAPISecret, "")
	}

	t.Run("direct token", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvToken, "tok-123")

		creds, err := LoadCredentials()
		if err != nil {
			t.Fatalf("LoadCredentials() error = %v", err)
		}
		if !creds.HasToken() {
			t.Error("expected HasToken() to be true")
		}
		if creds.Token != "tok-123" {
			t.Errorf("Token = %q, want %q", creds.Token, "tok-123")
		}
	})

	t.Run("key pair", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvAPIKey, "key-abc")
		t.Setenv(EnvAPISecret, "secret-xyz")

		creds, err := LoadCredentials()
		if err != nil {
			t.Fatalf("LoadCredentials() error = %v", err)
		}
		if creds.HasToken() {
			t.Error("expected HasToken() to be false")
		}
		if !creds.HasKeyPair() {
			t.Error("expected HasKeyPair() to be true")
		}
	})

	t.Run("key without secret is not enough", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvAPIKey, "key-abc")

		if _, err := LoadCredentials(); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})

	t.Run("nothing set", func(t *testing.T) {
		clearEnv(t)

		if _, err := LoadCredentials(); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})
}
