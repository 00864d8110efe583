package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/maildeck/maildeck/internal/account"
)

type authFlags struct {
	refresh bool
}

func parseAuthFlags(args []string) authFlags {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	var f authFlags
	fs.BoolVar(&f.refresh, "refresh", false, "Refresh tokens instead of running the full flow")
	if err := fs.Parse(args); err != nil {
		fatal("auth: %v", err)
	}
	return f
}

func handleAuth(a *app, acct *account.Account, f authFlags) error {
	ctx := context.Background()

	if f.refresh {
		if err := a.manager.RefreshTokens(ctx, acct.ID); err != nil {
			return err
		}
		a.saveAccounts()
		fmt.Printf("Refreshed tokens for %s\n", acct.Email)
		return nil
	}

	authURL, err := a.manager.BeginAuthorization(acct.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Open this URL in a browser and authorize %s:\n\n  %s\n\n", acct.Email, authURL)
	fmt.Println("After the redirect, copy the state and code query parameters.")

	state, err := promptLine("State: ")
	if err != nil {
		return err
	}
	code, err := promptLine("Code: ")
	if err != nil {
		return err
	}

	if err := a.manager.CompleteAuthorization(ctx, acct.ID, state, code); err != nil {
		return err
	}
	a.saveAccounts()
	fmt.Printf("Stored tokens for %s\n", acct.Email)
	return nil
}
