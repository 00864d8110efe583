package main

import (
	"context"
	"fmt"
	"log"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/store"
)

type syncFlags struct {
	all    bool
	folder string
	limit  int
}

func parseSyncFlags(args []string) syncFlags {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	var f syncFlags
	fs.BoolVar(&f.all, "all", false, "Sync every enabled account")
	fs.StringVar(&f.folder, "folder", "", "Sync a single folder (default: all folders)")
	fs.IntVar(&f.limit, "limit", 50, "Messages per folder")
	if err := fs.Parse(args); err != nil {
		fatal("sync: %v", err)
	}
	return f
}

func handleSync(a *app, f syncFlags) error {
	var targets []*account.Account
	if f.all {
		for _, acct := range a.manager.Accounts() {
			if acct.Enabled {
				targets = append(targets, acct)
			}
		}
		if len(targets) == 0 {
			return fmt.Errorf("no enabled accounts to sync")
		}
	} else {
		targets = []*account.Account{a.resolveAccount()}
	}

	cache := a.openCache()
	defer cache.Close()
	defer a.manager.DisconnectAll()

	g, ctx := errgroup.WithContext(context.Background())
	for _, acct := range targets {
		g.Go(func() error {
			return syncAccount(ctx, a, cache, acct, f)
		})
	}
	return g.Wait()
}

// syncAccount connects one account and writes its messages through to the
// cache. Folder-level fetch failures are logged and skipped so one broken
// folder never aborts the rest of the account.
func syncAccount(ctx context.Context, a *app, cache *store.Store, acct *account.Account, f syncFlags) error {
	if err := a.manager.Connect(ctx, acct.ID); err != nil {
		return fmt.Errorf("%s: %w", acct.Email, err)
	}

	folders := []string{f.folder}
	if f.folder == "" {
		var err error
		folders, err = a.manager.ListFolders(ctx, acct.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", acct.Email, err)
		}
	}

	total := 0
	for _, folder := range folders {
		messages, err := a.manager.FetchMessages(ctx, acct.ID, folder, f.limit)
		if err != nil {
			log.Printf("Warning: %s/%s: %v", acct.Email, folder, err)
			continue
		}
		if err := cache.SaveMessages(ctx, messages); err != nil {
			return fmt.Errorf("%s/%s: %w", acct.Email, folder, err)
		}
		total += len(messages)
	}

	fmt.Printf("%s: cached %d messages across %d folders\n", acct.Email, total, len(folders))
	return nil
}
