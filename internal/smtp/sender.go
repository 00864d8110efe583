// Package smtp implements the submission adapter: one authenticated session
// per account, opened explicitly and reused for sends until disconnected.
// Messages are rendered from canonical form; the envelope sender and the From
// header are always the account's own identity.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/xoauth2"
)

const (
	// dialTimeout bounds TCP connect and the TLS handshake.
	dialTimeout = 30 * time.Second

	// commandTimeout bounds each command round trip on an established session.
	commandTimeout = 30 * time.Second

	// submissionTimeout bounds the whole DATA exchange.
	submissionTimeout = 3 * time.Minute

	// oauthTimeout bounds the XOAUTH2 exchange. Exceeding it surfaces as an
	// Authentication timeout rather than a generic network timeout.
	oauthTimeout = 10 * time.Second
)

// Sender is a live SMTP session for one account. Methods are not safe for
// concurrent use; the connection manager serializes access per session.
type Sender struct {
	acct   *account.Account
	client *smtp.Client
}

// NewSender returns a disconnected sender for the account.
func NewSender(acct *account.Account) *Sender {
	return &Sender{acct: acct}
}

// Account returns the account this sender submits for.
func (s *Sender) Account() *account.Account {
	return s.acct
}

// Connected reports whether an authenticated session is established.
func (s *Sender) Connected() bool {
	return s.client != nil
}

// Connect dials the account's SMTP endpoint, authenticates, and probes the
// session with NOOP. Any previous session is discarded first. On failure the
// sender stays disconnected.
func (s *Sender) Connect() error {
	if s.client != nil {
		_ = s.client.Quit()
		s.client = nil
	}

	// Credential problems are rejected before dialing; there is nothing to
	// try on the wire.
	auth, err := s.saslClient()
	if err != nil {
		return mailerr.WithAccount(err, s.acct.ID)
	}

	c, err := s.dial()
	if err != nil {
		return err
	}

	c.CommandTimeout = commandTimeout
	if s.acct.SMTP.AuthMethod == account.AuthOAuth2 {
		c.CommandTimeout = oauthTimeout
	}
	if err := c.Auth(auth); err != nil {
		_ = c.Close()
		return s.wrap(mailerr.Authentication, "smtp.auth", err)
	}
	c.CommandTimeout = commandTimeout

	if err := c.Noop(); err != nil {
		_ = c.Close()
		return s.wrap(mailerr.Connection, "smtp.noop", err)
	}

	s.client = c
	return nil
}

// Disconnect quits the session. Disconnecting a disconnected sender is a
// no-op.
func (s *Sender) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Quit()
	s.client = nil
	if err != nil {
		return s.wrap(mailerr.Connection, "smtp.quit", err)
	}
	return nil
}

// Send submits the message on the established session. To, Cc, and Bcc all
// become envelope recipients. Send never connects implicitly.
func (s *Sender) Send(msg *models.Message) error {
	const op = "smtp.send"
	if s.client == nil {
		return mailerr.WithAccount(mailerr.Errorf(mailerr.Connection, op, "not connected"), s.acct.ID)
	}
	recipients := recipientList(msg)
	if len(recipients) == 0 {
		return mailerr.WithAccount(mailerr.Errorf(mailerr.Parse, op, "message has no recipients"), s.acct.ID)
	}
	raw, err := s.buildMessage(msg)
	if err != nil {
		return mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), s.acct.ID)
	}
	if err := s.client.SendMail(s.acct.Email, recipients, raw); err != nil {
		return s.wrap(mailerr.Protocol, op, err)
	}
	return nil
}

// saslClient picks the SASL mechanism for the configured auth method.
func (s *Sender) saslClient() (sasl.Client, error) {
	cfg := s.acct.SMTP
	switch cfg.AuthMethod {
	case account.AuthOAuth2:
		if s.acct.Tokens == nil || s.acct.Tokens.AccessToken == "" {
			return nil, mailerr.Errorf(mailerr.Authentication, "smtp.auth", "no OAuth2 access token for %s", s.acct.Email)
		}
		return xoauth2.NewClient(s.acct.Email, s.acct.Tokens.AccessToken), nil
	case account.AuthCramMD5:
		return nil, mailerr.Errorf(mailerr.Authentication, "smtp.auth", "CRAM-MD5 authentication is not supported")
	case account.AuthLogin:
		return sasl.NewLoginClient(cfg.Username, cfg.Password), nil
	default:
		return sasl.NewPlainClient("", cfg.Username, cfg.Password), nil
	}
}

// dial opens the transport for the configured TLS mode. go-smtp's own Dial
// helpers carry no dial timeout, so the connection is made with an explicit
// dialer and handed to smtp.NewClient.
func (s *Sender) dial() (*smtp.Client, error) {
	cfg := s.acct.SMTP
	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	dialer := &net.Dialer{Timeout: dialTimeout}
	tlsConfig := &tls.Config{ServerName: cfg.Server}

	var conn net.Conn
	var err error
	if cfg.UseTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, s.wrap(mailerr.Connection, "smtp.dial", err)
	}

	c := smtp.NewClient(conn)
	c.CommandTimeout = commandTimeout
	c.SubmissionTimeout = submissionTimeout

	if cfg.UseStartTLS && !cfg.UseTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Close()
			return nil, s.wrap(mailerr.Connection, "smtp.starttls", err)
		}
	}
	return c, nil
}

func (s *Sender) wrap(kind mailerr.Kind, op string, err error) error {
	var werr error
	if isTimeout(err) {
		werr = mailerr.Timeout(kind, op, err)
	} else {
		werr = mailerr.E(kind, op, err)
	}
	return mailerr.WithAccount(werr, s.acct.ID)
}

// isTimeout classifies deadline errors the same way the IMAP adapter does.
// Flag-based, never message text.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
