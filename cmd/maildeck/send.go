package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/models"
)

type sendFlags struct {
	to, cc, bcc, subject string
	text, textFile, html string
}

func parseSendFlags(args []string) sendFlags {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	var f sendFlags
	fs.StringVar(&f.to, "to", "", "Recipients (comma-separated)")
	fs.StringVar(&f.cc, "cc", "", "CC recipients (comma-separated)")
	fs.StringVar(&f.bcc, "bcc", "", "BCC recipients (comma-separated)")
	fs.StringVar(&f.subject, "subject", "", "Message subject")
	fs.StringVar(&f.text, "text", "", "Plain text body")
	fs.StringVar(&f.textFile, "text-file", "", "Plain text body from file (\"-\" for stdin)")
	fs.StringVar(&f.html, "html", "", "HTML body")
	if err := fs.Parse(args); err != nil {
		fatal("send: %v", err)
	}
	return f
}

func handleSend(a *app, acct *account.Account, f sendFlags) error {
	if f.to == "" {
		return fmt.Errorf("--to is required")
	}

	// --text-file takes precedence over --text
	textBody := f.text
	if f.textFile != "" {
		body, err := readBodySource(f.textFile)
		if err != nil {
			return fmt.Errorf("--text-file: %w", err)
		}
		textBody = body
	}

	body := models.PlainBody(textBody)
	if f.html != "" {
		body = models.HTMLBody(f.html)
	}

	msg := &models.Message{
		To:      parseAddressArg(f.to),
		Cc:      parseAddressArg(f.cc),
		Bcc:     parseAddressArg(f.bcc),
		Subject: f.subject,
		Body:    body,
	}

	if err := a.manager.ConnectSMTP(acct.ID); err != nil {
		return err
	}
	defer a.manager.DisconnectAll()

	if err := a.manager.SendMessage(acct.ID, msg); err != nil {
		return err
	}
	fmt.Printf("Sent %q to %s\n", f.subject, f.to)
	return nil
}
