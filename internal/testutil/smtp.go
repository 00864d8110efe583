package testutil

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/maildeck/maildeck/internal/account"
)

// ReceivedMessage is a message accepted by the in-memory SMTP backend.
type ReceivedMessage struct {
	From string
	To   []string
	Data []byte
}

// MemoryBackend is an in-memory SMTP backend that records submitted
// messages. Until RequireAuth is called it accepts any credentials.
type MemoryBackend struct {
	mu       sync.Mutex
	messages []*ReceivedMessage

	authUser string
	authPass string
}

// NewMemoryBackend creates a new in-memory SMTP backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// RequireAuth makes the backend reject AUTH with any other credentials.
func (b *MemoryBackend) RequireAuth(username, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authUser = username
	b.authPass = password
}

// NewSession creates a new SMTP session.
func (b *MemoryBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &memorySession{backend: b}, nil
}

// Messages returns a copy of all received messages.
func (b *MemoryBackend) Messages() []*ReceivedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ReceivedMessage(nil), b.messages...)
}

// ClearMessages clears all stored messages.
func (b *MemoryBackend) ClearMessages() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

func (b *MemoryBackend) checkAuth(username, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.authUser == "" && b.authPass == "" {
		return nil
	}
	if username != b.authUser || password != b.authPass {
		return smtp.ErrAuthFailed
	}
	return nil
}

type memorySession struct {
	backend *MemoryBackend
	from    string
	to      []string
}

func (s *memorySession) AuthMechanisms() []string { return []string{"PLAIN"} }

func (s *memorySession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		return s.backend.checkAuth(username, password)
	}), nil
}

func (s *memorySession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *memorySession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *memorySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, &ReceivedMessage{
		From: s.from,
		To:   s.to,
		Data: data,
	})

	return nil
}

func (s *memorySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *memorySession) Logout() error {
	return nil
}

var _ smtp.AuthSession = (*memorySession)(nil)

// TestSMTPServer represents a test SMTP server instance.
type TestSMTPServer struct {
	Server  *smtp.Server
	Address string
	Backend *MemoryBackend
	cleanup func()
}

// NewTestSMTPServer starts a test SMTP server with an in-memory backend on
// a random local port.
func NewTestSMTPServer(t *testing.T) *TestSMTPServer {
	t.Helper()

	server, addr, cleanup, err := startSMTPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start SMTP server: %v", err)
	}

	s := &TestSMTPServer{
		Server:  server.server,
		Address: addr,
		Backend: server.backend,
		cleanup: cleanup,
	}
	t.Cleanup(s.Close)
	return s
}

// Close shuts down the test SMTP server.
func (s *TestSMTPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Messages returns all messages received by the server.
func (s *TestSMTPServer) Messages() []*ReceivedMessage {
	return s.Backend.Messages()
}

// Account builds an account whose SMTP endpoint points at this server with
// plain authentication, ready for a sender to connect.
func (s *TestSMTPServer) Account(t *testing.T) *account.Account {
	t.Helper()

	host, portStr, err := net.SplitHostPort(s.Address)
	if err != nil {
		t.Fatalf("Failed to split server address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Failed to parse server port: %v", err)
	}

	acct := account.New("Test User", "username@example.com")
	acct.IMAP = account.IMAPConfig{
		Server:     host,
		Port:       port,
		Username:   "username",
		Password:   "password",
		AuthMethod: account.AuthPlain,
	}
	acct.SMTP = account.SMTPConfig{
		Server:     host,
		Port:       port,
		Username:   "username",
		Password:   "password",
		AuthMethod: account.AuthPlain,
	}
	return acct
}

type sandboxSMTP struct {
	server  *smtp.Server
	backend *MemoryBackend
}

// StartSandboxSMTPServer runs the in-memory SMTP server on a fixed address,
// for manual runs outside the test binary. The returned function stops it.
func StartSandboxSMTPServer(addr string) (string, func(), error) {
	_, boundAddr, cleanup, err := startSMTPServer(addr)
	return boundAddr, cleanup, err
}

func startSMTPServer(addr string) (*sandboxSMTP, string, func(), error) {
	be := NewMemoryBackend()

	s := smtp.NewServer(be)
	s.Domain = "localhost"
	s.AllowInsecureAuth = true
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	cleanup := func() {
		_ = s.Close()
	}
	return &sandboxSMTP{server: s, backend: be}, listener.Addr().String(), cleanup, nil
}
