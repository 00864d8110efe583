package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
)

type moveFlags struct {
	id     string
	folder string
	to     string
}

func parseMoveFlags(args []string) moveFlags {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	var f moveFlags
	fs.StringVar(&f.id, "id", "", "Message id to move")
	fs.StringVar(&f.folder, "folder", "INBOX", "Source folder")
	fs.StringVar(&f.to, "to-folder", "", "Destination folder")
	if err := fs.Parse(args); err != nil {
		fatal("move: %v", err)
	}
	return f
}

func handleMove(a *app, acct *account.Account, f moveFlags) error {
	if f.id == "" {
		return fmt.Errorf("--id is required")
	}
	if f.to == "" {
		return fmt.Errorf("--to-folder is required")
	}

	// Moves are IMAP-only.
	if err := a.manager.ConnectIMAP(acct.ID); err != nil {
		return err
	}
	defer a.manager.DisconnectAll()

	if err := a.manager.MoveMessage(acct.ID, f.folder, f.to, f.id); err != nil {
		return err
	}
	fmt.Printf("Moved %s from %s to %s\n", f.id, f.folder, f.to)
	return nil
}
