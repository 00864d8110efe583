// Package imap implements the IMAP protocol adapter: one live session per
// account, with folder listing, windowed header fetches, body retrieval,
// flag/move/delete mutations, server-side search, and an IDLE watch loop.
package imap

import (
	"errors"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
)

// Mailbox wraps one account's IMAP session. It is not safe for concurrent
// use; the connection manager serializes operations per session.
type Mailbox struct {
	acct   *account.Account
	client *imapclient.Client

	// PollInterval overrides the IDLE fallback polling cadence. Zero means
	// the default; tests shorten it.
	PollInterval time.Duration
}

// NewMailbox creates a disconnected adapter for the account.
func NewMailbox(acct *account.Account) *Mailbox {
	return &Mailbox{acct: acct}
}

// Account returns the account this adapter serves.
func (m *Mailbox) Account() *account.Account {
	return m.acct
}

// Connect dials the account's IMAP endpoint and authenticates. Any existing
// session is logged out first so a failed attempt leaves the adapter cleanly
// disconnected.
func (m *Mailbox) Connect() error {
	if m.client != nil {
		_ = m.client.Logout()
		m.client = nil
	}

	// Rejected before dialing; there is nothing to try on the wire.
	if m.acct.IMAP.AuthMethod == account.AuthCramMD5 {
		return mailerr.WithAccount(
			mailerr.Errorf(mailerr.Authentication, "imap.authenticate", "CRAM-MD5 authentication is not supported"), m.acct.ID)
	}

	c, err := dial(m.acct.IMAP)
	if err != nil {
		return mailerr.WithAccount(err, m.acct.ID)
	}

	if err := authenticate(c, m.acct); err != nil {
		_ = c.Logout()
		return mailerr.WithAccount(err, m.acct.ID)
	}

	m.client = c
	return nil
}

// Disconnect logs out gracefully. Safe to call on a disconnected or broken
// session; the adapter is disconnected afterwards either way.
func (m *Mailbox) Disconnect() error {
	if m.client == nil {
		return nil
	}

	err := m.client.Logout()
	m.client = nil
	if err != nil {
		return m.wrap(mailerr.Connection, "imap.logout", err)
	}
	return nil
}

// Connected reports whether the adapter holds a session.
func (m *Mailbox) Connected() bool {
	return m.client != nil
}

// session returns the live client, or a Connection error when there is none.
// Operations never connect implicitly.
func (m *Mailbox) session(op string) (*imapclient.Client, error) {
	if m.client == nil {
		return nil, mailerr.WithAccount(mailerr.E(mailerr.Connection, op, errors.New("not connected")), m.acct.ID)
	}
	return m.client, nil
}

// selectFolder selects the folder on the live session and returns its status.
func (m *Mailbox) selectFolder(op, folder string) (*imapclient.Client, *imap.MailboxStatus, error) {
	c, err := m.session(op)
	if err != nil {
		return nil, nil, err
	}

	mbox, err := c.Select(folder, false)
	if err != nil {
		return nil, nil, m.wrap(mailerr.Protocol, op, err)
	}

	return c, mbox, nil
}

// wrap classifies err under the given kind and stamps the account id,
// preserving the timeout flag for deadline violations.
func (m *Mailbox) wrap(kind mailerr.Kind, op string, err error) error {
	if isTimeout(err) {
		return mailerr.WithAccount(mailerr.Timeout(kind, op, err), m.acct.ID)
	}
	return mailerr.WithAccount(mailerr.E(kind, op, err), m.acct.ID)
}
