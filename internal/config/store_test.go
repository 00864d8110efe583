package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/crypto"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	encryptor, err := crypto.NewEncryptor(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "accounts.json")
	return NewStore(path, encryptor), path
}

func storedAccount() *account.Account {
	acct := account.New("Mina", "mina@example.com")
	acct.IMAP = account.IMAPConfig{
		Server: "imap.example.com", Port: 993,
		Username: "mina@example.com", Password: "imap-secret",
		UseTLS: true, AuthMethod: account.AuthPlain,
		Folders: []account.FolderMapping{{Type: account.FolderSent, ServerName: "Sent Items"}},
	}
	acct.SMTP = account.SMTPConfig{
		Server: "smtp.example.com", Port: 587,
		Username: "mina@example.com", Password: "smtp-secret",
		UseStartTLS: true, AuthMethod: account.AuthPlain,
	}
	acct.Signature = "Sent from maildeck"
	acct.OAuth = account.NewOAuthConfig("client-id", "client-secret")
	acct.Tokens = &account.OAuthTokens{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh-secret",
		ExpiresIn:    3599,
		TokenType:    "Bearer",
	}
	return acct
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	acct := storedAccount()

	require.NoError(t, store.Save([]*account.Account{acct}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, "imap-secret", got.IMAP.Password)
	assert.Equal(t, "smtp-secret", got.SMTP.Password)
	require.NotNil(t, got.Tokens)
	assert.Equal(t, "1//refresh-secret", got.Tokens.RefreshToken)
	assert.Equal(t, "ya29.access", got.Tokens.AccessToken)
	assert.Equal(t, acct.IMAP.Folders, got.IMAP.Folders)
	assert.Equal(t, "Sent from maildeck", got.Signature)
}

func TestStoreEncryptsCredentialsOnDisk(t *testing.T) {
	store, path := newTestStore(t)
	acct := storedAccount()

	require.NoError(t, store.Save([]*account.Account{acct}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.NotContains(t, content, "imap-secret")
	assert.NotContains(t, content, "smtp-secret")
	assert.NotContains(t, content, "1//refresh-secret")
	// Non-credential fields stay readable.
	assert.Contains(t, content, "mina@example.com")
	assert.Contains(t, content, "imap.example.com")
}

func TestStoreSaveDoesNotMutateInput(t *testing.T) {
	store, _ := newTestStore(t)
	acct := storedAccount()

	require.NoError(t, store.Save([]*account.Account{acct}))

	assert.Equal(t, "imap-secret", acct.IMAP.Password, "saving must not encrypt the in-memory account")
	assert.Equal(t, "1//refresh-secret", acct.Tokens.RefreshToken)
}

func TestStoreLoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	accounts, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestStoreLoadRejectsForeignKey(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save([]*account.Account{storedAccount()}))

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherEncryptor, err := crypto.NewEncryptor(otherKey)
	require.NoError(t, err)

	_, err = NewStore(path, otherEncryptor).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decrypt")
}

func TestStoreLoadRejectsMalformedJSON(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestStoreSaveEmptyList(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save(nil))

	_, err := os.Stat(path)
	require.NoError(t, err)

	accounts, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
