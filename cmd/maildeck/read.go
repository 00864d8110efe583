package main

import (
	"context"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
)

type readFlags struct {
	id       string
	folder   string
	markRead bool
}

func parseReadFlags(args []string) readFlags {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var f readFlags
	fs.StringVar(&f.id, "id", "", "Message id to fetch")
	fs.StringVar(&f.folder, "folder", "INBOX", "Folder containing the message")
	fs.BoolVar(&f.markRead, "mark-read", false, "Mark the message as read afterwards")
	if err := fs.Parse(args); err != nil {
		fatal("read: %v", err)
	}
	return f
}

func handleRead(a *app, acct *account.Account, f readFlags) error {
	if f.id == "" {
		return fmt.Errorf("--id is required")
	}

	ctx := context.Background()

	// Marking read is an IMAP mutation, so pin the session to IMAP when the
	// caller asked for it; otherwise let the manager pick the protocol.
	if f.markRead {
		if err := a.manager.ConnectIMAP(acct.ID); err != nil {
			return err
		}
	} else {
		a.connect(ctx, acct)
	}
	defer a.manager.DisconnectAll()

	msg, err := a.manager.FetchMessageBody(ctx, acct.ID, f.folder, f.id)
	if err != nil {
		return err
	}

	fmt.Printf("From: %s\n", formatAddressList(msg.From))
	fmt.Printf("To: %s\n", formatAddressList(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Printf("Cc: %s\n", formatAddressList(msg.Cc))
	}
	fmt.Printf("Date: %s\n", msg.Date.Format(time.RFC1123))
	fmt.Printf("Subject: %s\n\n", msg.Subject)
	fmt.Println(msg.Body.Text())

	if len(msg.Attachments) > 0 {
		fmt.Println("\nAttachments:")
		for _, att := range msg.Attachments {
			fmt.Printf("  %s (%s, %d bytes)\n", att.Filename, att.ContentType, att.Size)
		}
	}

	if f.markRead {
		if err := a.manager.MarkAsRead(acct.ID, f.folder, f.id); err != nil {
			return err
		}
	}
	return nil
}
