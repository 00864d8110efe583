package client

import (
	"context"
)

// BeginAuthorization starts (or restarts) the OAuth2 flow for the account and
// returns the URL the user must visit.
func (m *Manager) BeginAuthorization(accountID string) (string, error) {
	acct, err := m.Account(accountID)
	if err != nil {
		return "", err
	}
	return m.flows.Begin(acct)
}

// CompleteAuthorization verifies the callback state, redeems the code, and
// writes the issued tokens into the registry account.
func (m *Manager) CompleteAuthorization(ctx context.Context, accountID, state, code string) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}
	if err := m.flows.Complete(accountID, state); err != nil {
		return err
	}

	tokens, err := m.flows.Exchange(ctx, acct, code)
	if err != nil {
		return err
	}

	m.mu.Lock()
	acct.Tokens = tokens
	m.mu.Unlock()
	return nil
}

// RefreshTokens redeems the account's refresh token for a fresh access token
// and writes it back. On failure the stale tokens are kept so the caller can
// prompt re-authorization.
func (m *Manager) RefreshTokens(ctx context.Context, accountID string) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	var refreshToken string
	if acct.Tokens != nil {
		refreshToken = acct.Tokens.RefreshToken
	}
	m.mu.Unlock()

	tokens, err := m.flows.Refresh(ctx, acct, refreshToken)
	if err != nil {
		return err
	}

	m.mu.Lock()
	acct.Tokens = tokens
	m.mu.Unlock()
	return nil
}
