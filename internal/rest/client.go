// Package rest implements the Gmail-shaped REST mailbox adapter: read-only
// folder and message access over HTTP with bearer-token auth, for accounts
// whose provider exposes the mailbox through a JSON API instead of IMAP. The
// adapter supports folders and fetch only; mutation and send stay on the
// protocol adapters.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
)

const defaultBaseURL = "https://www.googleapis.com/gmail/v1"

// requestTimeout bounds each API request end to end.
const requestTimeout = 30 * time.Second

// Client is a mailbox API session for one account. Requests are stateless;
// Connect verifies the token once so the connection manager can cache the
// client like any other session.
type Client struct {
	acct      *account.Account
	baseURL   string
	http      *http.Client
	connected bool
}

// NewClient returns a client for the account against the public API endpoint.
func NewClient(acct *account.Account) *Client {
	return &Client{
		acct:    acct,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// SetBaseURL points the client at a different API endpoint, for tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Account returns the account this client reads for.
func (c *Client) Account() *account.Account {
	return c.acct
}

// Connected reports whether the profile probe has succeeded.
func (c *Client) Connected() bool {
	return c.connected
}

// Connect probes the API with a profile request, verifying that the token
// grants mailbox access.
func (c *Client) Connect(ctx context.Context) error {
	var profile gmailProfile
	if err := c.get(ctx, "rest.connect", "/users/me/profile", &profile); err != nil {
		return err
	}
	c.connected = true
	return nil
}

// Disconnect drops idle connections. There is no session state to tear down.
func (c *Client) Disconnect() error {
	c.connected = false
	c.http.CloseIdleConnections()
	return nil
}

// get issues an authenticated GET for path and decodes the JSON response into
// out.
func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	token, err := c.accessToken(op)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return mailerr.WithAccount(mailerr.E(mailerr.Protocol, op, err), c.acct.ID)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.wrap(mailerr.Connection, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return mailerr.WithAccount(
			mailerr.Errorf(statusKind(resp.StatusCode), op, "unexpected status %s: %s",
				resp.Status, strings.TrimSpace(string(detail))),
			c.acct.ID)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.wrap(mailerr.Parse, op, err)
	}
	return nil
}

func (c *Client) accessToken(op string) (string, error) {
	if c.acct.Tokens == nil || c.acct.Tokens.AccessToken == "" {
		return "", mailerr.WithAccount(
			mailerr.Errorf(mailerr.Authentication, op, "no OAuth2 access token for %s", c.acct.Email),
			c.acct.ID)
	}
	return c.acct.Tokens.AccessToken, nil
}

// statusKind maps an unexpected HTTP status to an error kind: 401/403 are
// credential problems, everything else is a protocol failure.
func statusKind(code int) mailerr.Kind {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return mailerr.Authentication
	}
	return mailerr.Protocol
}

func (c *Client) wrap(kind mailerr.Kind, op string, err error) error {
	var werr error
	if isTimeout(err) {
		werr = mailerr.Timeout(kind, op, err)
	} else {
		werr = mailerr.E(kind, op, err)
	}
	return mailerr.WithAccount(werr, c.acct.ID)
}

// isTimeout classifies deadline errors. Flag-based, never message text.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
