// Package account defines the account/credential model and the registry that
// owns configured accounts.
package account

import (
	"strings"

	"github.com/google/uuid"

	"github.com/maildeck/maildeck/internal/mailerr"
)

// AuthMethod selects how a protocol session authenticates.
type AuthMethod string

const (
	AuthPlain   AuthMethod = "plain"
	AuthLogin   AuthMethod = "login"
	AuthCramMD5 AuthMethod = "cram-md5" // reserved; adapters reject it without a network attempt
	AuthOAuth2  AuthMethod = "oauth2"
)

// IMAPConfig is the IMAP endpoint of an account.
type IMAPConfig struct {
	Server      string          `json:"server"`
	Port        int             `json:"port"`
	Username    string          `json:"username"`
	Password    string          `json:"password,omitempty"`
	UseTLS      bool            `json:"use_tls"`
	UseStartTLS bool            `json:"use_starttls"`
	AuthMethod  AuthMethod      `json:"auth_method"`
	Folders     []FolderMapping `json:"folders,omitempty"`
}

// SMTPConfig is the SMTP endpoint of an account.
type SMTPConfig struct {
	Server      string     `json:"server"`
	Port        int        `json:"port"`
	Username    string     `json:"username"`
	Password    string     `json:"password,omitempty"`
	UseTLS      bool       `json:"use_tls"`
	UseStartTLS bool       `json:"use_starttls"`
	AuthMethod  AuthMethod `json:"auth_method"`
}

// Account is one configured mail account.
type Account struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	IMAP          IMAPConfig   `json:"imap"`
	SMTP          SMTPConfig   `json:"smtp"`
	Signature     string       `json:"signature,omitempty"`
	DefaultFolder string       `json:"default_folder"`
	Enabled       bool         `json:"enabled"`
	OAuth         *OAuthConfig `json:"oauth,omitempty"`
	Tokens        *OAuthTokens `json:"tokens,omitempty"`
}

// New creates an enabled account with a fresh id and the conventional default
// folder.
func New(name, email string) *Account {
	return &Account{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         email,
		DefaultFolder: "INBOX",
		Enabled:       true,
	}
}

// Validate checks the account for the fields every backend needs. Checks run
// in a fixed order and the first failure is returned as a Configuration error.
func (a *Account) Validate() error {
	switch {
	case a.Name == "":
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "account name cannot be empty")
	case a.Email == "":
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "email cannot be empty")
	case !strings.Contains(a.Email, "@"):
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "invalid email format: %s", a.Email)
	case a.IMAP.Server == "":
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "IMAP server cannot be empty")
	case a.SMTP.Server == "":
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "SMTP server cannot be empty")
	case a.IMAP.Username == "":
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "IMAP username cannot be empty")
	case a.SMTP.Username == "":
		return mailerr.Errorf(mailerr.Configuration, "account.validate", "SMTP username cannot be empty")
	}
	return nil
}

// Domain returns the part of the email after '@', lowercased, or "" when the
// email has no '@'.
func (a *Account) Domain() string {
	if i := strings.LastIndex(a.Email, "@"); i >= 0 {
		return strings.ToLower(a.Email[i+1:])
	}
	return ""
}

// UsesOAuth reports whether any endpoint of the account authenticates via
// OAuth2 and a client registration is present.
func (a *Account) UsesOAuth() bool {
	return a.OAuth != nil && (a.IMAP.AuthMethod == AuthOAuth2 || a.SMTP.AuthMethod == AuthOAuth2)
}
