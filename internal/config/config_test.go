package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKey = "dGVzdC1rZXktMTIzNDU2Nzg5MDEyMzQ1Njc4OTAxMjM="

func TestNewConfig(t *testing.T) {
	t.Setenv("MAILDECK_ENV", "production")
	t.Setenv("MAILDECK_ENCRYPTION_KEY_BASE64", testKey)
	t.Setenv("MAILDECK_CONFIG_DIR", "/tmp/maildeck-test/config")
	t.Setenv("MAILDECK_DATA_DIR", "/tmp/maildeck-test/data")
	t.Setenv("MAILDECK_OAUTH_CLIENT_ID", "client-id")
	t.Setenv("MAILDECK_OAUTH_CLIENT_SECRET", "client-secret")

	config, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() returned error: %v", err)
	}

	if config.Environment != "production" {
		t.Errorf("expected Environment 'production', got '%s'", config.Environment)
	}

	if config.EncryptionKeyBase64 != testKey {
		t.Errorf("expected EncryptionKeyBase64 '%s', got '%s'", testKey, config.EncryptionKeyBase64)
	}

	if config.ConfigDir != "/tmp/maildeck-test/config" {
		t.Errorf("expected ConfigDir '/tmp/maildeck-test/config', got '%s'", config.ConfigDir)
	}

	if got := config.AccountsFile(); got != filepath.Join("/tmp/maildeck-test/config", "accounts.json") {
		t.Errorf("unexpected accounts file path: %s", got)
	}

	if got := config.DatabaseFile(); got != filepath.Join("/tmp/maildeck-test/data", "cache.db") {
		t.Errorf("unexpected database file path: %s", got)
	}

	oauth := config.OAuthClient()
	if oauth == nil {
		t.Fatal("expected OAuth client registration")
	}
	if oauth.ClientID != "client-id" || oauth.ClientSecret != "client-secret" {
		t.Errorf("unexpected OAuth registration: %+v", oauth)
	}
	if oauth.RedirectURI != "http://localhost:8080/oauth/callback" {
		t.Errorf("expected default redirect URI, got '%s'", oauth.RedirectURI)
	}
}

func TestNewConfigWithDefaults(t *testing.T) {
	t.Setenv("MAILDECK_ENV", "production")
	t.Setenv("MAILDECK_ENCRYPTION_KEY_BASE64", testKey)
	os.Unsetenv("MAILDECK_CONFIG_DIR")
	os.Unsetenv("MAILDECK_DATA_DIR")
	os.Unsetenv("MAILDECK_OAUTH_CLIENT_ID")
	os.Unsetenv("MAILDECK_OAUTH_CLIENT_SECRET")

	config, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() returned error: %v", err)
	}

	if !strings.HasSuffix(config.ConfigDir, "maildeck") {
		t.Errorf("expected default ConfigDir to end in 'maildeck', got '%s'", config.ConfigDir)
	}
	if !strings.HasSuffix(config.DataDir, "maildeck") {
		t.Errorf("expected default DataDir to end in 'maildeck', got '%s'", config.DataDir)
	}
	if config.OAuthClient() != nil {
		t.Error("expected no OAuth client registration by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		shouldErr bool
		errMsg    string
	}{
		{
			name:      "valid config",
			config:    &Config{EncryptionKeyBase64: testKey},
			shouldErr: false,
		},
		{
			name:      "missing encryption key",
			config:    &Config{},
			shouldErr: true,
			errMsg:    "MAILDECK_ENCRYPTION_KEY_BASE64 is required",
		},
		{
			name:      "invalid base64 key",
			config:    &Config{EncryptionKeyBase64: "not-valid-base64!!!"},
			shouldErr: true,
			errMsg:    "MAILDECK_ENCRYPTION_KEY_BASE64 is not valid base64",
		},
		{
			name:      "wrong key length",
			config:    &Config{EncryptionKeyBase64: "dGVzdA=="},
			shouldErr: true,
			errMsg:    "MAILDECK_ENCRYPTION_KEY_BASE64 must decode to 32 bytes",
		},
		{
			name:      "client id without secret",
			config:    &Config{EncryptionKeyBase64: testKey, OAuthClientID: "id"},
			shouldErr: true,
			errMsg:    "must be set together",
		},
		{
			name:      "client secret without id",
			config:    &Config{EncryptionKeyBase64: testKey, OAuthClientSecret: "secret"},
			shouldErr: true,
			errMsg:    "must be set together",
		},
		{
			name:      "redirect without scheme",
			config:    &Config{EncryptionKeyBase64: testKey, OAuthRedirectURI: "localhost:8080/cb"},
			shouldErr: true,
			errMsg:    "MAILDECK_OAUTH_REDIRECT_URI must use http:// or https:// scheme",
		},
		{
			name:      "https redirect",
			config:    &Config{EncryptionKeyBase64: testKey, OAuthRedirectURI: "https://example.com/cb"},
			shouldErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.shouldErr && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
			if tt.shouldErr && err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error message to contain '%s', got '%s'", tt.errMsg, err.Error())
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	config := &Config{
		EncryptionKeyBase64: testKey,
		ConfigDir:           filepath.Join(base, "config", "maildeck"),
		DataDir:             filepath.Join(base, "data", "maildeck"),
	}

	if err := config.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() returned error: %v", err)
	}

	for _, dir := range []string{config.ConfigDir, config.DataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_KEY", "test-value")

	got := getEnvOrDefault("TEST_KEY", "default")
	if got != "test-value" {
		t.Errorf("expected 'test-value', got '%s'", got)
	}

	got = getEnvOrDefault("NONEXISTENT_KEY", "default")
	if got != "default" {
		t.Errorf("expected 'default', got '%s'", got)
	}
}
