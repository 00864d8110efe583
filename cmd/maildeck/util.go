package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/client"
	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/crypto"
	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/oauth"
	"github.com/maildeck/maildeck/internal/store"
)

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// bootstrap loads the environment config and the accounts file, then wires
// the connection manager. Every command except help runs through here.
func (a *app) bootstrap() {
	cfg, err := config.NewConfig()
	if err != nil {
		fatal("loading config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fatal("%v", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		fatal("creating encryptor: %v", err)
	}

	a.cfg = cfg
	a.accounts = config.NewStore(cfg.AccountsFile(), encryptor)

	loaded, err := a.accounts.Load()
	if err != nil {
		fatal("loading accounts: %v", err)
	}

	registry := account.NewRegistry()
	for _, acct := range loaded {
		// Accounts without their own OAuth client inherit the process-wide one.
		if acct.OAuth == nil {
			acct.OAuth = cfg.OAuthClient()
		}
		if err := registry.Add(acct); err != nil {
			fatal("account %s: %v", acct.Email, err)
		}
	}

	a.manager = client.NewManager(registry, oauth.NewFlowManager())
}

// resolveAccount picks the account named by --account, matching id, name or
// email. With no flag, the only enabled account wins.
func (a *app) resolveAccount() *account.Account {
	all := a.manager.Accounts()

	if a.account == "" {
		var enabled []*account.Account
		for _, acct := range all {
			if acct.Enabled {
				enabled = append(enabled, acct)
			}
		}
		switch len(enabled) {
		case 1:
			return enabled[0]
		case 0:
			fatal("no accounts configured; add one to %s", a.cfg.AccountsFile())
		default:
			fatal("%d accounts configured; pick one with --account", len(enabled))
		}
	}

	for _, acct := range all {
		if acct.ID == a.account || acct.Name == a.account || acct.Email == a.account {
			return acct
		}
	}
	fatal("no account matches %q", a.account)
	return nil
}

// connect opens a session for the account using the manager's protocol
// selection, or exits.
func (a *app) connect(ctx context.Context, acct *account.Account) {
	if err := a.manager.Connect(ctx, acct.ID); err != nil {
		fatal("connecting %s: %v", acct.Email, err)
	}
	if a.verbose {
		log.Printf("Connected %s", acct.Email)
	}
}

// openCache opens the local message cache database.
func (a *app) openCache() *store.Store {
	cache, err := store.Open(a.cfg.DatabaseFile())
	if err != nil {
		fatal("opening message cache: %v", err)
	}
	return cache
}

// saveAccounts writes the registry back to the accounts file, encrypting
// credentials on the way out.
func (a *app) saveAccounts() {
	if err := a.accounts.Save(a.manager.Accounts()); err != nil {
		fatal("saving accounts: %v", err)
	}
}

// promptLine reads one trimmed line from stdin.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readBodySource reads body content from a file path or stdin ("-").
func readBodySource(path string) (string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseAddressArg splits a comma-separated address argument.
func parseAddressArg(arg string) []models.Address {
	if arg == "" {
		return nil
	}
	var out []models.Address
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, models.Address{Address: part})
	}
	return out
}

func formatAddressList(addrs []models.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = addr.String()
	}
	return strings.Join(parts, ", ")
}

// printMessageLine renders one message in the list/search output.
func printMessageLine(i int, msg *models.Message, verbose bool) {
	status := "✗"
	if msg.HasFlag(models.FlagSeen) {
		status = "✓"
	}

	from := "Unknown"
	if len(msg.From) > 0 {
		from = msg.From[0].String()
	}

	fmt.Printf("[%d] ID:%s %s From: %s\n", i+1, msg.ID, status, from)
	fmt.Printf("    Subject: %s\n", msg.Subject)
	fmt.Printf("    Date: %s\n", msg.Date.Format(time.RFC1123))
	if verbose {
		fmt.Printf("    Preview: %s\n", truncate(msg.Body.Text(), 100))
	}
	fmt.Println()
}

// truncate truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
