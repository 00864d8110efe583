package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/models"
)

type searchFlags struct {
	query  string
	folder string
	limit  int
	cached bool
}

func parseSearchFlags(args []string) searchFlags {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var f searchFlags
	fs.StringVar(&f.query, "query", "", "Search text")
	fs.StringVar(&f.folder, "folder", "INBOX", "Folder to search")
	fs.IntVar(&f.limit, "limit", 20, "Maximum matches to show")
	fs.BoolVar(&f.cached, "cached", false, "Full-text search the local cache instead")
	if err := fs.Parse(args); err != nil {
		fatal("search: %v", err)
	}
	return f
}

func handleSearch(a *app, acct *account.Account, f searchFlags) error {
	if f.query == "" {
		return fmt.Errorf("--query is required")
	}

	ctx := context.Background()

	var messages []*models.Message
	var err error
	if f.cached {
		cache := a.openCache()
		defer cache.Close()
		messages, err = cache.Search(ctx, acct.ID, f.query, f.limit)
	} else {
		a.connect(ctx, acct)
		defer a.manager.DisconnectAll()
		messages, err = a.manager.SearchMessages(ctx, acct.ID, f.folder, f.query, f.limit)
	}
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, msg := range messages {
		printMessageLine(i, msg, a.verbose)
	}
	return nil
}
