package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/maildeck/maildeck/internal/account"
)

// Config holds process-level settings read from the environment. Account
// definitions live in the accounts file, not here.
type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	ConfigDir           string
	DataDir             string
	OAuthClientID       string
	OAuthClientSecret   string
	OAuthRedirectURI    string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILDECK_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("MAILDECK_ENCRYPTION_KEY_BASE64"),
		ConfigDir:           getEnvOrDefault("MAILDECK_CONFIG_DIR", defaultConfigDir()),
		DataDir:             getEnvOrDefault("MAILDECK_DATA_DIR", defaultDataDir()),
		OAuthClientID:       os.Getenv("MAILDECK_OAUTH_CLIENT_ID"),
		OAuthClientSecret:   os.Getenv("MAILDECK_OAUTH_CLIENT_SECRET"),
		OAuthRedirectURI:    getEnvOrDefault("MAILDECK_OAUTH_REDIRECT_URI", account.DefaultRedirectURI),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("MAILDECK_ENCRYPTION_KEY_BASE64 is required")
	}

	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return fmt.Errorf("MAILDECK_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("MAILDECK_ENCRYPTION_KEY_BASE64 must decode to 32 bytes, got %d", len(key))
	}

	if (c.OAuthClientID == "") != (c.OAuthClientSecret == "") {
		return fmt.Errorf("MAILDECK_OAUTH_CLIENT_ID and MAILDECK_OAUTH_CLIENT_SECRET must be set together")
	}

	if c.OAuthRedirectURI != "" &&
		!strings.HasPrefix(c.OAuthRedirectURI, "http://") &&
		!strings.HasPrefix(c.OAuthRedirectURI, "https://") {
		return fmt.Errorf("MAILDECK_OAUTH_REDIRECT_URI must use http:// or https:// scheme")
	}

	return nil
}

// AccountsFile returns the path of the JSON accounts file.
func (c *Config) AccountsFile() string {
	return filepath.Join(c.ConfigDir, "accounts.json")
}

// DatabaseFile returns the path of the local message cache database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// EnsureDirectories creates the config and data directories. Both hold
// credential material, hence the restrictive mode.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ConfigDir, c.DataDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OAuthClient returns the process-wide OAuth2 client registration, or nil when
// none is configured.
func (c *Config) OAuthClient() *account.OAuthConfig {
	if c.OAuthClientID == "" {
		return nil
	}
	return &account.OAuthConfig{
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthClientSecret,
		RedirectURI:  c.OAuthRedirectURI,
	}
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "maildeck")
	}
	return ".maildeck"
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "maildeck")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "maildeck")
	}
	return ".maildeck"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
