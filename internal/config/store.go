package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/crypto"
)

// Store reads and writes the JSON accounts file. Passwords and OAuth2 refresh
// tokens are encrypted before they touch the disk; everything else is stored
// as-is.
type Store struct {
	path      string
	encryptor *crypto.Encryptor
}

// accountsFile is the on-disk document. Version is bumped when the layout
// changes incompatibly.
type accountsFile struct {
	Version  int                `json:"version"`
	Accounts []*account.Account `json:"accounts"`
}

const fileVersion = 1

// NewStore creates a store for the given file path.
func NewStore(path string, encryptor *crypto.Encryptor) *Store {
	return &Store{path: path, encryptor: encryptor}
}

// Load reads the accounts file and decrypts credential fields. A missing file
// is not an error: it yields an empty account list.
func (s *Store) Load() ([]*account.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var doc accountsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	for _, acct := range doc.Accounts {
		if err := s.decryptCredentials(acct); err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.ID, err)
		}
	}
	return doc.Accounts, nil
}

// Save writes the accounts with credential fields encrypted. The write goes
// through a temp file and a rename so a crash never leaves a truncated file.
func (s *Store) Save(accounts []*account.Account) error {
	doc := accountsFile{Version: fileVersion, Accounts: make([]*account.Account, 0, len(accounts))}
	for _, acct := range accounts {
		clone := cloneAccount(acct)
		if err := s.encryptCredentials(clone); err != nil {
			return fmt.Errorf("account %s: %w", acct.ID, err)
		}
		doc.Accounts = append(doc.Accounts, clone)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode accounts file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace accounts file: %w", err)
	}
	return nil
}

func (s *Store) encryptCredentials(acct *account.Account) error {
	var err error
	if acct.IMAP.Password != "" {
		if acct.IMAP.Password, err = s.encryptor.EncryptString(acct.IMAP.Password); err != nil {
			return fmt.Errorf("failed to encrypt IMAP password: %w", err)
		}
	}
	if acct.SMTP.Password != "" {
		if acct.SMTP.Password, err = s.encryptor.EncryptString(acct.SMTP.Password); err != nil {
			return fmt.Errorf("failed to encrypt SMTP password: %w", err)
		}
	}
	if acct.Tokens != nil && acct.Tokens.RefreshToken != "" {
		if acct.Tokens.RefreshToken, err = s.encryptor.EncryptString(acct.Tokens.RefreshToken); err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}
	return nil
}

func (s *Store) decryptCredentials(acct *account.Account) error {
	var err error
	if acct.IMAP.Password != "" {
		if acct.IMAP.Password, err = s.encryptor.DecryptString(acct.IMAP.Password); err != nil {
			return fmt.Errorf("failed to decrypt IMAP password: %w", err)
		}
	}
	if acct.SMTP.Password != "" {
		if acct.SMTP.Password, err = s.encryptor.DecryptString(acct.SMTP.Password); err != nil {
			return fmt.Errorf("failed to decrypt SMTP password: %w", err)
		}
	}
	if acct.Tokens != nil && acct.Tokens.RefreshToken != "" {
		if acct.Tokens.RefreshToken, err = s.encryptor.DecryptString(acct.Tokens.RefreshToken); err != nil {
			return fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}
	return nil
}

// cloneAccount copies an account deeply enough that encrypting the clone's
// credential fields never mutates the caller's account.
func cloneAccount(acct *account.Account) *account.Account {
	clone := *acct
	if acct.OAuth != nil {
		oauth := *acct.OAuth
		clone.OAuth = &oauth
	}
	if acct.Tokens != nil {
		tokens := *acct.Tokens
		clone.Tokens = &tokens
	}
	if acct.IMAP.Folders != nil {
		clone.IMAP.Folders = append([]account.FolderMapping(nil), acct.IMAP.Folders...)
	}
	return &clone
}
