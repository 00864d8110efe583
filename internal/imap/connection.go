package imap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/xoauth2"
)

const (
	// dialTimeout bounds the TCP dial and the TLS handshake.
	dialTimeout = 30 * time.Second
	// loginTimeout bounds the LOGIN round-trip.
	loginTimeout = 30 * time.Second
	// oauthTimeout bounds the XOAUTH2 SASL round-trip. Exceeding it surfaces
	// as an Authentication timeout, which triggers the REST fallback.
	oauthTimeout = 10 * time.Second
)

// dial connects to the IMAP endpoint per the account config: implicit TLS,
// STARTTLS upgrade, or plaintext.
func dial(cfg account.IMAPConfig) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	dialer := &net.Dialer{
		Timeout: dialTimeout,
	}

	if cfg.UseTLS {
		c, err := client.DialWithDialerTLS(dialer, addr, nil)
		if err != nil {
			return nil, connectErr("imap.dial", err)
		}
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, addr)
	if err != nil {
		return nil, connectErr("imap.dial", err)
	}

	if cfg.UseStartTLS {
		c.Timeout = dialTimeout
		err := c.StartTLS(nil)
		c.Timeout = 0
		if err != nil {
			_ = c.Logout()
			return nil, connectErr("imap.starttls", err)
		}
	}

	return c, nil
}

// authenticate runs the AUTH step selected by the account's AuthMethod. On
// return the client's command timeout is cleared so long-running commands
// (FETCH of a large mailbox, IDLE) are not bounded by the login deadline.
func authenticate(c *client.Client, acct *account.Account) error {
	switch acct.IMAP.AuthMethod {
	case account.AuthOAuth2:
		if acct.Tokens == nil || acct.Tokens.AccessToken == "" {
			return mailerr.Errorf(mailerr.Authentication, "imap.authenticate", "no OAuth2 access token for %s", acct.Email)
		}
		c.Timeout = oauthTimeout
		err := c.Authenticate(xoauth2.NewClient(acct.Email, acct.Tokens.AccessToken))
		c.Timeout = 0
		if err != nil {
			return authErr("imap.authenticate", err)
		}
		return nil

	default:
		c.Timeout = loginTimeout
		err := c.Login(acct.IMAP.Username, acct.IMAP.Password)
		c.Timeout = 0
		if err != nil {
			return authErr("imap.login", err)
		}
		return nil
	}
}

// connectErr classifies a transport failure, flagging deadline violations.
func connectErr(op string, err error) error {
	if isTimeout(err) {
		return mailerr.Timeout(mailerr.Connection, op, err)
	}
	return mailerr.E(mailerr.Connection, op, err)
}

// authErr classifies an auth failure, flagging deadline violations.
func authErr(op string, err error) error {
	if isTimeout(err) {
		return mailerr.Timeout(mailerr.Authentication, op, err)
	}
	return mailerr.E(mailerr.Authentication, op, err)
}

// isTimeout reports whether err is a deadline violation rather than a
// rejection. Flag-based, never message text.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
