// Package oauth implements the OAuth2 authorization-code flow for mail
// accounts: CSRF-protected begin/complete, code exchange, token refresh, and
// identity probes against the provider.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
)

// Scopes requested on every authorization: read, modify, send.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.send",
}

const (
	defaultUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"
)

var (
	// ErrNoSuchFlow is returned by Complete when no flow is pending for the
	// account, including when a pending flow was already consumed.
	ErrNoSuchFlow = errors.New("invalid or expired OAuth flow")
	// ErrStateMismatch is returned by Complete when the callback state does
	// not match the stored token.
	ErrStateMismatch = errors.New("CSRF token mismatch")
)

// Endpoints collects the provider URLs. Zero fields select the Google
// endpoints; tests point them at a local server.
type Endpoints struct {
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	TokenInfoURL string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.AuthURL == "" {
		e.AuthURL = google.Endpoint.AuthURL
	}
	if e.TokenURL == "" {
		e.TokenURL = google.Endpoint.TokenURL
	}
	if e.UserInfoURL == "" {
		e.UserInfoURL = defaultUserInfoURL
	}
	if e.TokenInfoURL == "" {
		e.TokenInfoURL = defaultTokenInfoURL
	}
	return e
}

// FlowManager tracks pending authorization flows, at most one per account id.
// A pending entry is consumed by Complete regardless of outcome, so an
// authorization link can be redeemed only once. Entries never expire on a
// timer; beginning a new flow for the same account replaces the old entry and
// permanently invalidates the earlier link.
type FlowManager struct {
	endpoints Endpoints
	client    *http.Client

	mu      sync.Mutex
	pending map[string]string // account id -> expected state token
}

// NewFlowManager creates a manager against the default Google endpoints.
func NewFlowManager() *FlowManager {
	return NewFlowManagerWithEndpoints(Endpoints{})
}

// NewFlowManagerWithEndpoints creates a manager against custom provider
// endpoints. Zero fields keep their defaults.
func NewFlowManagerWithEndpoints(endpoints Endpoints) *FlowManager {
	return &FlowManager{
		endpoints: endpoints.withDefaults(),
		client:    &http.Client{Timeout: 30 * time.Second},
		pending:   make(map[string]string),
	}
}

// Begin starts (or restarts) the authorization flow for the account and
// returns the URL the user must visit. Any previously pending flow for the
// same account is replaced.
func (m *FlowManager) Begin(acct *account.Account) (string, error) {
	cfg, err := m.oauthConfig(acct)
	if err != nil {
		return "", err
	}

	state, err := newStateToken()
	if err != nil {
		return "", mailerr.E(mailerr.Authentication, "oauth.begin", err)
	}

	m.mu.Lock()
	m.pending[acct.ID] = state
	m.mu.Unlock()

	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Complete consumes the pending flow for the account and verifies the state
// token from the callback. The entry is removed before comparison, so a
// mismatched or replayed callback invalidates the flow either way.
func (m *FlowManager) Complete(accountID, state string) error {
	m.mu.Lock()
	expected, ok := m.pending[accountID]
	delete(m.pending, accountID)
	m.mu.Unlock()

	if !ok {
		return mailerr.E(mailerr.Authentication, "oauth.complete", ErrNoSuchFlow)
	}
	if expected != state {
		return mailerr.E(mailerr.Authentication, "oauth.complete", ErrStateMismatch)
	}
	return nil
}

// Pending reports whether a flow is currently pending for the account.
func (m *FlowManager) Pending(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[accountID]
	return ok
}

// Exchange redeems an authorization code for tokens. Call only after Complete
// verified the callback state.
func (m *FlowManager) Exchange(ctx context.Context, acct *account.Account, code string) (*account.OAuthTokens, error) {
	cfg, err := m.oauthConfig(acct)
	if err != nil {
		return nil, err
	}

	tok, err := cfg.Exchange(m.httpContext(ctx), code)
	if err != nil {
		return nil, mailerr.E(mailerr.Authentication, "oauth.exchange", err)
	}
	return tokensFromOAuth2(tok, ""), nil
}

// Refresh redeems a refresh token for a fresh access token. When the provider
// omits a new refresh token the old one is carried over, since Google issues
// one only on the initial consent.
func (m *FlowManager) Refresh(ctx context.Context, acct *account.Account, refreshToken string) (*account.OAuthTokens, error) {
	if refreshToken == "" {
		return nil, mailerr.Errorf(mailerr.Authentication, "oauth.refresh", "no refresh token for account %s", acct.ID)
	}

	cfg, err := m.oauthConfig(acct)
	if err != nil {
		return nil, err
	}

	src := cfg.TokenSource(m.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mailerr.E(mailerr.Authentication, "oauth.refresh", err)
	}
	return tokensFromOAuth2(tok, refreshToken), nil
}

// UserInfo is the provider's identity document for an access token.
type UserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// UserInfo fetches the identity behind an access token.
func (m *FlowManager) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoints.UserInfoURL, nil)
	if err != nil {
		return nil, mailerr.E(mailerr.Connection, "oauth.userinfo", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, mailerr.E(mailerr.Connection, "oauth.userinfo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mailerr.Errorf(mailerr.Authentication, "oauth.userinfo", "unexpected status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, mailerr.E(mailerr.Protocol, "oauth.userinfo", err)
	}
	return &info, nil
}

// ValidateToken reports whether the provider still accepts the access token.
func (m *FlowManager) ValidateToken(ctx context.Context, accessToken string) bool {
	probe := m.endpoints.TokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (m *FlowManager) oauthConfig(acct *account.Account) (*oauth2.Config, error) {
	if acct.OAuth == nil {
		return nil, mailerr.Errorf(mailerr.Authentication, "oauth.config", "account %s has no OAuth client registration", acct.ID)
	}

	redirect := acct.OAuth.RedirectURI
	if redirect == "" {
		redirect = account.DefaultRedirectURI
	}

	return &oauth2.Config{
		ClientID:     acct.OAuth.ClientID,
		ClientSecret: acct.OAuth.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.endpoints.AuthURL,
			TokenURL: m.endpoints.TokenURL,
		},
	}, nil
}

// httpContext routes the oauth2 library's requests through the manager's
// client so its timeout applies.
func (m *FlowManager) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

func tokensFromOAuth2(tok *oauth2.Token, fallbackRefresh string) *account.OAuthTokens {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}

	tokens := &account.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		if secs := int64(time.Until(tok.Expiry).Seconds()); secs > 0 {
			tokens.ExpiresIn = secs
		}
	}
	return tokens
}

func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
