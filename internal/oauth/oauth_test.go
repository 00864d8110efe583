package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
)

func oauthAccount() *account.Account {
	acct := account.New("Mina", "mina@gmail.com")
	acct.OAuth = account.NewOAuthConfig("client-id", "client-secret")
	return acct
}

// stateFromAuthURL pulls the state parameter out of the URL Begin returned.
func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestBeginBuildsAuthorizationURL(t *testing.T) {
	m := NewFlowManagerWithEndpoints(Endpoints{AuthURL: "https://provider.test/authorize"})
	acct := oauthAccount()

	authURL, err := m.Begin(acct)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "provider.test", u.Host)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "force", q.Get("approval_prompt"))
	assert.NotEmpty(t, q.Get("state"))

	scope := q.Get("scope")
	assert.Contains(t, scope, "https://www.googleapis.com/auth/gmail.readonly")
	assert.Contains(t, scope, "https://www.googleapis.com/auth/gmail.modify")
	assert.Contains(t, scope, "https://www.googleapis.com/auth/gmail.send")

	assert.True(t, m.Pending(acct.ID))
}

func TestBeginRequiresRegistration(t *testing.T) {
	m := NewFlowManager()
	acct := account.New("Mina", "mina@gmail.com")

	_, err := m.Begin(acct)
	require.Error(t, err)
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
}

func TestCompleteConsumesFlow(t *testing.T) {
	m := NewFlowManager()
	acct := oauthAccount()

	authURL, err := m.Begin(acct)
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	require.NoError(t, m.Complete(acct.ID, state))
	assert.False(t, m.Pending(acct.ID))

	err = m.Complete(acct.ID, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuchFlow), "a completed flow cannot be redeemed twice")
}

func TestCompleteUnknownAccount(t *testing.T) {
	m := NewFlowManager()

	err := m.Complete("nobody", "whatever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuchFlow))
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
}

func TestCompleteStateMismatchConsumesEntry(t *testing.T) {
	m := NewFlowManager()
	acct := oauthAccount()

	authURL, err := m.Begin(acct)
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	err = m.Complete(acct.ID, "forged-state")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))

	// The mismatch consumed the entry; even the right state is now useless.
	err = m.Complete(acct.ID, state)
	assert.True(t, errors.Is(err, ErrNoSuchFlow))
}

func TestSecondBeginInvalidatesFirstFlow(t *testing.T) {
	m := NewFlowManager()
	acct := oauthAccount()

	firstURL, err := m.Begin(acct)
	require.NoError(t, err)
	firstState := stateFromAuthURL(t, firstURL)

	secondURL, err := m.Begin(acct)
	require.NoError(t, err)
	secondState := stateFromAuthURL(t, secondURL)
	require.NotEqual(t, firstState, secondState)

	err = m.Complete(acct.ID, firstState)
	assert.True(t, errors.Is(err, ErrStateMismatch), "the first link must be permanently unredeemable")
}

func TestExchange(t *testing.T) {
	var gotGrant, gotCode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.Form.Get("grant_type")
		gotCode = r.Form.Get("code")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.fresh","refresh_token":"1//granted","expires_in":3599,"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{TokenURL: srv.URL})
	tokens, err := m.Exchange(context.Background(), oauthAccount(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotGrant)
	assert.Equal(t, "auth-code", gotCode)
	assert.Equal(t, "ya29.fresh", tokens.AccessToken)
	assert.Equal(t, "1//granted", tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.InDelta(t, 3599, tokens.ExpiresIn, 10)
}

func TestExchangeRejectedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{TokenURL: srv.URL})
	_, err := m.Exchange(context.Background(), oauthAccount(), "bad-code")
	require.Error(t, err)
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
}

func TestRefreshPreservesOldRefreshToken(t *testing.T) {
	var gotGrant, gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.Form.Get("grant_type")
		gotRefresh = r.Form.Get("refresh_token")
		// Google omits refresh_token on refresh responses.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.renewed","expires_in":3599,"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{TokenURL: srv.URL})
	tokens, err := m.Refresh(context.Background(), oauthAccount(), "1//old")
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "1//old", gotRefresh)
	assert.Equal(t, "ya29.renewed", tokens.AccessToken)
	assert.Equal(t, "1//old", tokens.RefreshToken, "an omitted refresh token keeps the old one")
}

func TestRefreshAdoptsRotatedRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.renewed","refresh_token":"1//rotated","expires_in":3599,"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{TokenURL: srv.URL})
	tokens, err := m.Refresh(context.Background(), oauthAccount(), "1//old")
	require.NoError(t, err)
	assert.Equal(t, "1//rotated", tokens.RefreshToken)
}

func TestRefreshWithoutToken(t *testing.T) {
	m := NewFlowManager()
	_, err := m.Refresh(context.Background(), oauthAccount(), "")
	require.Error(t, err)
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
}

func TestRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{TokenURL: srv.URL})
	_, err := m.Refresh(context.Background(), oauthAccount(), "1//revoked")
	require.Error(t, err)
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
}

func TestUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(UserInfo{ID: "108", Email: "mina@gmail.com", Name: "Mina"})
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{UserInfoURL: srv.URL})

	info, err := m.UserInfo(context.Background(), "ya29.token")
	require.NoError(t, err)
	assert.Equal(t, "mina@gmail.com", info.Email)
	assert.Equal(t, "Mina", info.Name)

	_, err = m.UserInfo(context.Background(), "wrong")
	require.Error(t, err)
	assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
}

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") == "ya29.good" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"expires_in":3599}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewFlowManagerWithEndpoints(Endpoints{TokenInfoURL: srv.URL})

	assert.True(t, m.ValidateToken(context.Background(), "ya29.good"))
	assert.False(t, m.ValidateToken(context.Background(), "ya29.expired"))
}
