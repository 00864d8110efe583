// Package client implements the connection manager: the façade that owns the
// account registry, the per-account session caches for the three backend
// kinds, and the OAuth2 flow manager, and routes every operation to the right
// cached session. Sessions are opened explicitly; operations against an
// account without the needed session fail fast instead of connecting on the
// caller's behalf.
package client

import (
	"context"
	"sync"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/imap"
	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/oauth"
	"github.com/maildeck/maildeck/internal/rest"
	"github.com/maildeck/maildeck/internal/smtp"
)

// restCapableDomains are providers whose mailbox is reachable over the JSON
// API when OAuth2 is configured.
var restCapableDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// imapSession pairs a cached adapter with the mutex that serializes
// operations against it. The cache mutexes cover map operations only; network
// calls run under the session mutex so one account's slow operation never
// blocks another account's lookup.
type imapSession struct {
	mu sync.Mutex
	mb *imap.Mailbox
}

type restSession struct {
	mu     sync.Mutex
	client *rest.Client
}

type smtpSession struct {
	mu     sync.Mutex
	sender *smtp.Sender
}

// Manager is the connection manager façade.
type Manager struct {
	mu       sync.Mutex // guards the registry and token write-back
	registry *account.Registry
	flows    *oauth.FlowManager

	restBaseURL string

	// Connector indirection for the Connect policy, swappable in tests to
	// exercise the fallback rules without live endpoints.
	connectIMAP func(accountID string) error
	connectREST func(ctx context.Context, accountID string) error

	imapMu sync.Mutex
	imap   map[string]*imapSession

	restMu sync.Mutex
	rest   map[string]*restSession

	smtpMu sync.Mutex
	smtp   map[string]*smtpSession
}

// NewManager creates a manager over the registry. A nil flow manager selects
// the default provider endpoints.
func NewManager(registry *account.Registry, flows *oauth.FlowManager) *Manager {
	if flows == nil {
		flows = oauth.NewFlowManager()
	}
	m := &Manager{
		registry: registry,
		flows:    flows,
		imap:     make(map[string]*imapSession),
		rest:     make(map[string]*restSession),
		smtp:     make(map[string]*smtpSession),
	}
	m.connectIMAP = m.ConnectIMAP
	m.connectREST = m.ConnectREST
	return m
}

// SetRESTBaseURL points newly connected REST sessions at a different API
// endpoint, for tests.
func (m *Manager) SetRESTBaseURL(u string) {
	m.restBaseURL = u
}

// AddAccount validates and registers the account.
func (m *Manager) AddAccount(acct *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Add(acct)
}

// RemoveAccount tears down the account's sessions and removes it from the
// registry.
func (m *Manager) RemoveAccount(id string) error {
	m.DisconnectAccount(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Remove(id)
}

// Account returns the registered account by id.
func (m *Manager) Account(id string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.registry.Get(id)
	if !ok {
		return nil, mailerr.Errorf(mailerr.Configuration, "client.account", "account not found: %s", id)
	}
	return acct, nil
}

// Accounts returns all registered accounts in registration order.
func (m *Manager) Accounts() []*account.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.All()
}

// restCapable reports whether the account should read over the JSON API
// instead of IMAP.
func restCapable(acct *account.Account) bool {
	return restCapableDomains[acct.Domain()] && acct.UsesOAuth()
}

// Connect opens the account's read session. REST-capable accounts connect
// over the JSON API outright, with no IMAP attempt. Everyone else connects
// over IMAP; when IMAP fails because the OAuth2 handshake exceeded its time
// bound, the JSON API is retried exactly once. Any other failure surfaces
// immediately.
func (m *Manager) Connect(ctx context.Context, accountID string) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}

	if restCapable(acct) {
		return m.connectREST(ctx, accountID)
	}

	err = m.connectIMAP(accountID)
	if mailerr.IsAuthTimeout(err) {
		return m.connectREST(ctx, accountID)
	}
	return err
}

// ConnectIMAP opens a fresh IMAP session for the account and caches it. The
// connect runs without any cache lock held; a previously cached session is
// replaced and torn down afterwards, its failure ignored.
func (m *Manager) ConnectIMAP(accountID string) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}

	mb := imap.NewMailbox(acct)
	if err := mb.Connect(); err != nil {
		return err
	}

	m.imapMu.Lock()
	old := m.imap[accountID]
	m.imap[accountID] = &imapSession{mb: mb}
	m.imapMu.Unlock()

	if old != nil {
		old.mu.Lock()
		_ = old.mb.Disconnect()
		old.mu.Unlock()
	}
	return nil
}

// ConnectREST opens a fresh JSON API session for the account and caches it.
func (m *Manager) ConnectREST(ctx context.Context, accountID string) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}

	rc := rest.NewClient(acct)
	if m.restBaseURL != "" {
		rc.SetBaseURL(m.restBaseURL)
	}
	if err := rc.Connect(ctx); err != nil {
		return err
	}

	m.restMu.Lock()
	old := m.rest[accountID]
	m.rest[accountID] = &restSession{client: rc}
	m.restMu.Unlock()

	if old != nil {
		old.mu.Lock()
		_ = old.client.Disconnect()
		old.mu.Unlock()
	}
	return nil
}

// ConnectSMTP opens a fresh submission session for the account and caches it.
func (m *Manager) ConnectSMTP(accountID string) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}

	sender := smtp.NewSender(acct)
	if err := sender.Connect(); err != nil {
		return err
	}

	m.smtpMu.Lock()
	old := m.smtp[accountID]
	m.smtp[accountID] = &smtpSession{sender: sender}
	m.smtpMu.Unlock()

	if old != nil {
		old.mu.Lock()
		_ = old.sender.Disconnect()
		old.mu.Unlock()
	}
	return nil
}

// DisconnectAccount tears down every cached session for the account.
// Individual disconnect failures are ignored; teardown always completes.
func (m *Manager) DisconnectAccount(accountID string) {
	m.imapMu.Lock()
	is := m.imap[accountID]
	delete(m.imap, accountID)
	m.imapMu.Unlock()
	if is != nil {
		is.mu.Lock()
		_ = is.mb.Disconnect()
		is.mu.Unlock()
	}

	m.restMu.Lock()
	rs := m.rest[accountID]
	delete(m.rest, accountID)
	m.restMu.Unlock()
	if rs != nil {
		rs.mu.Lock()
		_ = rs.client.Disconnect()
		rs.mu.Unlock()
	}

	m.smtpMu.Lock()
	ss := m.smtp[accountID]
	delete(m.smtp, accountID)
	m.smtpMu.Unlock()
	if ss != nil {
		ss.mu.Lock()
		_ = ss.sender.Disconnect()
		ss.mu.Unlock()
	}
}

// DisconnectAll tears down every cached session across all accounts.
func (m *Manager) DisconnectAll() {
	m.imapMu.Lock()
	imapSessions := m.imap
	m.imap = make(map[string]*imapSession)
	m.imapMu.Unlock()
	for _, s := range imapSessions {
		s.mu.Lock()
		_ = s.mb.Disconnect()
		s.mu.Unlock()
	}

	m.restMu.Lock()
	restSessions := m.rest
	m.rest = make(map[string]*restSession)
	m.restMu.Unlock()
	for _, s := range restSessions {
		s.mu.Lock()
		_ = s.client.Disconnect()
		s.mu.Unlock()
	}

	m.smtpMu.Lock()
	smtpSessions := m.smtp
	m.smtp = make(map[string]*smtpSession)
	m.smtpMu.Unlock()
	for _, s := range smtpSessions {
		s.mu.Lock()
		_ = s.sender.Disconnect()
		s.mu.Unlock()
	}
}

func (m *Manager) lookupIMAP(accountID string) *imapSession {
	m.imapMu.Lock()
	defer m.imapMu.Unlock()
	return m.imap[accountID]
}

func (m *Manager) lookupREST(accountID string) *restSession {
	m.restMu.Lock()
	defer m.restMu.Unlock()
	return m.rest[accountID]
}

func (m *Manager) lookupSMTP(accountID string) *smtpSession {
	m.smtpMu.Lock()
	defer m.smtpMu.Unlock()
	return m.smtp[accountID]
}

func (m *Manager) requireIMAP(accountID, op string) (*imapSession, error) {
	if s := m.lookupIMAP(accountID); s != nil {
		return s, nil
	}
	return nil, mailerr.WithAccount(mailerr.Errorf(mailerr.Connection, op, "not connected"), accountID)
}

func (m *Manager) requireSMTP(accountID, op string) (*smtpSession, error) {
	if s := m.lookupSMTP(accountID); s != nil {
		return s, nil
	}
	return nil, mailerr.WithAccount(mailerr.Errorf(mailerr.Connection, op, "not connected"), accountID)
}
