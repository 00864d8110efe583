package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/models"
)

type listFlags struct {
	folder     string
	limit      int
	unreadOnly bool
	cached     bool
}

func parseListFlags(args []string) listFlags {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var f listFlags
	fs.StringVar(&f.folder, "folder", "INBOX", "Folder to list")
	fs.IntVar(&f.limit, "limit", 20, "Maximum messages to show")
	fs.BoolVar(&f.unreadOnly, "unread-only", false, "Show only unread messages")
	fs.BoolVar(&f.cached, "cached", false, "Read from the local cache instead of the server")
	if err := fs.Parse(args); err != nil {
		fatal("list: %v", err)
	}
	return f
}

func handleList(a *app, acct *account.Account, f listFlags) error {
	ctx := context.Background()

	var messages []*models.Message
	var err error
	if f.cached {
		cache := a.openCache()
		defer cache.Close()
		messages, err = cache.Messages(ctx, acct.ID, f.folder, f.limit)
	} else {
		a.connect(ctx, acct)
		defer a.manager.DisconnectAll()
		messages, err = a.manager.FetchMessages(ctx, acct.ID, f.folder, f.limit)
	}
	if err != nil {
		return err
	}

	source := "server"
	if f.cached {
		source = "cache"
	}
	fmt.Printf("Folder: %s (%s)\n\n", f.folder, source)

	shown := 0
	for _, msg := range messages {
		if f.unreadOnly && msg.HasFlag(models.FlagSeen) {
			continue
		}
		printMessageLine(shown, msg, a.verbose)
		shown++
	}
	if shown == 0 {
		fmt.Println("No messages.")
	}
	return nil
}
