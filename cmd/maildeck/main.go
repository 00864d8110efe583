package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/client"
	"github.com/maildeck/maildeck/internal/config"
)

const version = "0.1.0"

// app holds global options parsed from the command line plus the wired-up
// services every command shares. bootstrap fills the service fields.
type app struct {
	account string
	verbose bool

	cfg      *config.Config
	accounts *config.Store
	manager  *client.Manager
}

func main() {
	a := &app{}

	// Global flags
	flag.StringVar(&a.account, "account", "", "Account id, name or email to use")
	flag.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("maildeck v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	if cmd == "help" {
		printUsage()
		os.Exit(0)
	}

	a.bootstrap()

	switch cmd {
	case "accounts":
		if err := handleAccounts(a); err != nil {
			fatal("accounts: %v", err)
		}
	case "auth":
		f := parseAuthFlags(cmdArgs)
		if err := handleAuth(a, a.resolveAccount(), f); err != nil {
			fatal("auth: %v", err)
		}
	case "folders":
		if err := handleFolders(a, a.resolveAccount()); err != nil {
			fatal("folders: %v", err)
		}
	case "list":
		f := parseListFlags(cmdArgs)
		if err := handleList(a, a.resolveAccount(), f); err != nil {
			fatal("list: %v", err)
		}
	case "read":
		f := parseReadFlags(cmdArgs)
		if err := handleRead(a, a.resolveAccount(), f); err != nil {
			fatal("read: %v", err)
		}
	case "send":
		f := parseSendFlags(cmdArgs)
		if err := handleSend(a, a.resolveAccount(), f); err != nil {
			fatal("send: %v", err)
		}
	case "move":
		f := parseMoveFlags(cmdArgs)
		if err := handleMove(a, a.resolveAccount(), f); err != nil {
			fatal("move: %v", err)
		}
	case "delete":
		f := parseDeleteFlags(cmdArgs)
		if err := handleDelete(a, a.resolveAccount(), f); err != nil {
			fatal("delete: %v", err)
		}
	case "search":
		f := parseSearchFlags(cmdArgs)
		if err := handleSearch(a, a.resolveAccount(), f); err != nil {
			fatal("search: %v", err)
		}
	case "watch":
		f := parseWatchFlags(cmdArgs)
		if err := handleWatch(a, a.resolveAccount(), f); err != nil {
			fatal("watch: %v", err)
		}
	case "sync":
		f := parseSyncFlags(cmdArgs)
		if err := handleSync(a, f); err != nil {
			fatal("sync: %v", err)
		}
	default:
		fatal("unknown command '%s'", cmd)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `maildeck v%s - Multi-account mail client

Usage:
  maildeck [global options] <command> [command options]

Commands:
  accounts   List configured accounts and cached folder stats
  auth       Run the OAuth2 authorization flow for an account
  folders    List folders
  list       List messages in a folder
  read       Fetch and display a message
  send       Send a message
  move       Move a message to another folder
  delete     Delete a message
  search     Search messages
  watch      Watch a folder for new mail (IMAP IDLE)
  sync       Fetch messages into the local cache

Global Options:
  --account <name>   Account id, name or email to use
  -v, --verbose      Verbose output
  --version          Show version information

Configuration:
  Accounts live in accounts.json under the config directory. Environment:
    MAILDECK_ENCRYPTION_KEY_BASE64  32-byte base64 key for credentials at rest (required)
    MAILDECK_CONFIG_DIR             Config directory (default: OS config dir)
    MAILDECK_DATA_DIR               Data directory for the message cache
    MAILDECK_OAUTH_CLIENT_ID        OAuth2 client id for Gmail accounts
    MAILDECK_OAUTH_CLIENT_SECRET    OAuth2 client secret
  A .env file in the working directory is loaded in development.

Auth Options:
  --refresh              Refresh tokens instead of running the full flow

List Options:
  --folder <name>        Folder to list (default: INBOX)
  --limit <number>       Maximum messages to show (default: 20)
  --unread-only          Show only unread messages
  --cached               Read from the local cache instead of the server

Read Options:
  --id <id>              Message id to fetch (required)
  --folder <name>        Folder containing the message (default: INBOX)
  --mark-read            Mark the message as read afterwards

Send Options:
  --to <emails>          Recipients (comma-separated, required)
  --cc <emails>          CC recipients (comma-separated)
  --bcc <emails>         BCC recipients (comma-separated)
  --subject <text>       Message subject
  --text <text>          Plain text body
  --text-file <path>     Plain text body from file ("-" for stdin)
  --html <html>          HTML body

Move Options:
  --id <id>              Message id to move (required)
  --folder <name>        Source folder (default: INBOX)
  --to-folder <name>     Destination folder (required)

Delete Options:
  --id <id>              Message id to delete (required)
  --folder <name>        Folder containing the message (default: INBOX)

Search Options:
  --query <text>         Search text (required)
  --folder <name>        Folder to search (default: INBOX)
  --limit <number>       Maximum matches to show (default: 20)
  --cached               Full-text search the local cache instead

Watch Options:
  --folder <name>        Folder to watch (default: INBOX)

Sync Options:
  --all                  Sync every enabled account
  --folder <name>        Sync a single folder (default: all folders)
  --limit <number>       Messages per folder (default: 50)

Examples:
  maildeck accounts
  maildeck list --limit 5
  maildeck send --to user@example.com --subject "Hello" --text "Hi!"
  maildeck read --id 12345 --mark-read
  maildeck search --query "quarterly report" --cached
  maildeck sync --all --limit 100
`, version)
}
