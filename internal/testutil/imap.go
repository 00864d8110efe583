package testutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"

	"github.com/maildeck/maildeck/internal/account"
)

// TestIMAPServer is an in-process IMAP server backed by the go-imap memory
// backend. The backend creates a default user ("username"/"password") whose
// INBOX already contains one sample message.
type TestIMAPServer struct {
	Server   *server.Server
	Address  string
	Backend  *memory.Backend
	cleanup  func()
	username string
	password string
}

// NewTestIMAPServer starts a test IMAP server on a random local port.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	s, addr, cleanup, err := startIMAPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start IMAP server: %v", err)
	}

	srv := &TestIMAPServer{
		Server:   s.server,
		Address:  addr,
		Backend:  s.backend,
		cleanup:  cleanup,
		username: "username",
		password: "password",
	}
	t.Cleanup(srv.Close)
	return srv
}

type sandboxIMAP struct {
	server  *server.Server
	backend *memory.Backend
}

// StartSandboxIMAPServer runs the same in-memory IMAP server on a fixed
// address, for manual runs outside the test binary. The returned function
// stops the server.
func StartSandboxIMAPServer(addr string) (string, func(), error) {
	_, boundAddr, cleanup, err := startIMAPServer(addr)
	return boundAddr, cleanup, err
}

func startIMAPServer(addr string) (*sandboxIMAP, string, func(), error) {
	be := memory.New()

	s := server.New(be)
	s.AllowInsecureAuth = true

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
	return &sandboxIMAP{server: s, backend: be}, listener.Addr().String(), cleanup, nil
}

// Close shuts down the test IMAP server.
func (s *TestIMAPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Username returns the default test username.
func (s *TestIMAPServer) Username() string {
	return s.username
}

// Password returns the default test password.
func (s *TestIMAPServer) Password() string {
	return s.password
}

// Account builds an account whose IMAP endpoint points at this server with
// plain authentication, ready for an adapter to connect.
func (s *TestIMAPServer) Account(t *testing.T) *account.Account {
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
		Username:   s.username,
		Password:   s.password,
		AuthMethod: account.AuthPlain,
	}
	acct.SMTP = account.SMTPConfig{
		Server:     host,
		Port:       port,
		Username:   s.username,
		Password:   s.password,
		AuthMethod: account.AuthPlain,
	}
	return acct
}

// Connect creates a logged-in IMAP client connection to the test server.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := imapclient.Dial(s.Address)
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}

	if err := client.Login(s.username, s.password); err != nil {
		_ = client.Logout()
		t.Fatalf("Failed to login: %v", err)
	}

	cleanup := func() {
		_ = client.Logout()
	}

	return client, cleanup
}

// CreateFolder creates a mailbox for the default user.
func (s *TestIMAPServer) CreateFolder(t *testing.T, name string) {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if err := client.Create(name); err != nil {
		t.Fatalf("Failed to create folder %s: %v", name, err)
	}
}

// TestMessage describes a message to seed into a folder. Zero fields get
// usable defaults.
type TestMessage struct {
	MessageID string
	Subject   string
	From      string
	To        string
	Date      time.Time
	Body      string
	Flags     []string
}

// AddMessage appends the message to the folder and returns its UID.
func (s *TestIMAPServer) AddMessage(t *testing.T, folderName string, msg TestMessage) uint32 {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select(folderName, false); err != nil {
		t.Fatalf("Failed to select folder: %v", err)
	}

	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("<%d@test.local>", time.Now().UnixNano())
	}
	if msg.From == "" {
		msg.From = "sender@example.com"
	}
	if msg.To == "" {
		msg.To = "username@example.com"
	}
	if msg.Date.IsZero() {
		msg.Date = time.Now()
	}
	if msg.Body == "" {
		msg.Body = "Test message body."
	}

	messageBody := fmt.Sprintf(`Message-ID: %s
Date: %s
From: %s
To: %s
Subject: %s
Content-Type: text/plain; charset=utf-8

%s
`, msg.MessageID, msg.Date.Format(time.RFC1123Z), msg.From, msg.To, msg.Subject, msg.Body)

	if err := client.Append(folderName, msg.Flags, msg.Date, strings.NewReader(messageBody)); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	// Search for the message we just added to get its UID
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-ID", msg.MessageID)
	uids, err := client.UidSearch(criteria)
	if err != nil {
		t.Fatalf("Failed to search for message: %v", err)
	}

	if len(uids) == 0 {
		t.Fatal("Message not found after append")
	}

	return uids[0]
}
