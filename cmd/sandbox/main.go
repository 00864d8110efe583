// Command sandbox runs in-memory IMAP and SMTP servers on local ports so the
// maildeck CLI can be exercised without a real mail provider. Both servers
// accept the login username/password and keep everything in memory; restart
// to reset.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	imapclient "github.com/emersion/go-imap/client"
	"github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/testutil"
)

const (
	sandboxUsername = "username"
	sandboxPassword = "password"
)

func main() {
	imapAddr := pflag.String("imap", "127.0.0.1:1143", "address for the IMAP server")
	smtpAddr := pflag.String("smtp", "127.0.0.1:1025", "address for the SMTP server")
	noSeed := pflag.Bool("no-seed", false, "skip seeding folders and sample messages")
	pflag.Parse()

	log.Println("Starting sandbox IMAP server...")
	imapBound, stopIMAP, err := testutil.StartSandboxIMAPServer(*imapAddr)
	if err != nil {
		log.Fatalf("Failed to start IMAP server: %v", err)
	}
	defer stopIMAP()
	log.Printf("Sandbox IMAP server listening on %s", imapBound)

	log.Println("Starting sandbox SMTP server...")
	smtpBound, stopSMTP, err := testutil.StartSandboxSMTPServer(*smtpAddr)
	if err != nil {
		log.Fatalf("Failed to start SMTP server: %v", err)
	}
	defer stopSMTP()
	log.Printf("Sandbox SMTP server listening on %s", smtpBound)

	if !*noSeed {
		if err := seedMailbox(imapBound); err != nil {
			log.Fatalf("Failed to seed mailbox: %v", err)
		}
		log.Println("Seeded folders and sample messages")
	}

	fmt.Printf(`
Sandbox ready.

  IMAP: %s
  SMTP: %s
  Login: %s / %s

Point an account at these addresses (plain auth, no TLS) and run the CLI
against it. Press Ctrl+C to stop.

`, imapBound, smtpBound, sandboxUsername, sandboxPassword)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)
}

// seedMailbox fills the fresh IMAP backend with the folders and messages a
// small real mailbox would have, so list/search/move have something to chew on.
func seedMailbox(addr string) error {
	client, err := imapclient.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer func() {
		_ = client.Logout()
	}()

	if err := client.Login(sandboxUsername, sandboxPassword); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	for _, folder := range []string{"Sent", "Drafts", "Trash", "Archive"} {
		err := client.Create(folder)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			log.Printf("Warning: Failed to create folder %s: %v", folder, err)
		}
	}

	messages := []struct {
		folder  string
		subject string
		from    string
		body    string
		sentAt  time.Time
	}{
		{
			folder:  "INBOX",
			subject: "Welcome aboard",
			from:    "team@example.com",
			body:    "Your sandbox mailbox is ready. Reply to this message to try sending.",
			sentAt:  time.Now().Add(-2 * time.Hour),
		},
		{
			folder:  "INBOX",
			subject: "Meeting tomorrow at 2 PM",
			from:    "colleague@example.com",
			body:    "Don't forget the planning meeting tomorrow. Agenda attached next time.",
			sentAt:  time.Now().Add(-1 * time.Hour),
		},
		{
			folder:  "INBOX",
			subject: "Quarterly report draft",
			from:    "reports@example.com",
			body:    "Here is the Q3 report draft you asked for. Comments welcome.",
			sentAt:  time.Now().Add(-10 * time.Minute),
		},
		{
			folder:  "Archive",
			subject: "Old newsletter",
			from:    "news@example.com",
			body:    "Last month's newsletter, filed away.",
			sentAt:  time.Now().Add(-72 * time.Hour),
		},
	}

	for i, msg := range messages {
		if _, err := client.Select(msg.folder, false); err != nil {
			return fmt.Errorf("failed to select %s: %w", msg.folder, err)
		}

		raw := fmt.Sprintf(`Message-ID: <seed-%d@sandbox.local>
Date: %s
From: %s
To: %s@example.com
Subject: %s
Content-Type: text/plain; charset=utf-8

%s
`, i+1, msg.sentAt.Format(time.RFC1123Z), msg.from, sandboxUsername, msg.subject, msg.body)

		if err := client.Append(msg.folder, nil, msg.sentAt, strings.NewReader(raw)); err != nil {
			return fmt.Errorf("failed to append %q: %w", msg.subject, err)
		}
	}

	return nil
}
