package main

import (
	"context"
	"fmt"
)

func handleAccounts(a *app) error {
	accounts := a.manager.Accounts()
	if len(accounts) == 0 {
		fmt.Printf("No accounts configured. Add entries to %s\n", a.cfg.AccountsFile())
		return nil
	}

	cache := a.openCache()
	defer cache.Close()
	ctx := context.Background()

	for _, acct := range accounts {
		state := "enabled"
		if !acct.Enabled {
			state = "disabled"
		}

		auth := "password"
		if acct.UsesOAuth() {
			auth = "oauth2"
			if acct.Tokens == nil {
				auth = "oauth2, no tokens (run auth)"
			}
		}

		fmt.Printf("%s  %s <%s>  [%s, %s]\n", acct.ID, acct.Name, acct.Email, state, auth)

		stats, err := cache.Stats(ctx, acct.ID)
		if err != nil {
			return err
		}
		for _, st := range stats {
			fmt.Printf("    %-12s %d messages, %d unread\n", st.Folder, st.Total, st.Unread)
		}
	}
	return nil
}
