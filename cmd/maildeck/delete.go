package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
)

type deleteFlags struct {
	id     string
	folder string
}

func parseDeleteFlags(args []string) deleteFlags {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	var f deleteFlags
	fs.StringVar(&f.id, "id", "", "Message id to delete")
	fs.StringVar(&f.folder, "folder", "INBOX", "Folder containing the message")
	if err := fs.Parse(args); err != nil {
		fatal("delete: %v", err)
	}
	return f
}

func handleDelete(a *app, acct *account.Account, f deleteFlags) error {
	if f.id == "" {
		return fmt.Errorf("--id is required")
	}

	// Deletes are IMAP-only and permanent: mark \Deleted, then expunge.
	if err := a.manager.ConnectIMAP(acct.ID); err != nil {
		return err
	}
	defer a.manager.DisconnectAll()

	if err := a.manager.DeleteMessage(acct.ID, f.folder, f.id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s from %s\n", f.id, f.folder)
	return nil
}
