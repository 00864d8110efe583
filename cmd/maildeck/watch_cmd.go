package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
)

type watchFlags struct {
	folder string
}

func parseWatchFlags(args []string) watchFlags {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	var f watchFlags
	fs.StringVar(&f.folder, "folder", "INBOX", "Folder to watch")
	if err := fs.Parse(args); err != nil {
		fatal("watch: %v", err)
	}
	return f
}

func handleWatch(a *app, acct *account.Account, f watchFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Watching %s on %s (Ctrl-C to stop)\n", f.folder, acct.Email)

	err := a.manager.Watch(ctx, acct.ID, f.folder, func(folder string, total uint32) {
		fmt.Printf("[%s] %s: %d messages\n", time.Now().Format("15:04:05"), folder, total)
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
