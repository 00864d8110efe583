package main

import (
	"context"
	"fmt"

	"github.com/maildeck/maildeck/internal/account"
)

func handleFolders(a *app, acct *account.Account) error {
	ctx := context.Background()
	a.connect(ctx, acct)
	defer a.manager.DisconnectAll()

	folders, err := a.manager.ListFolders(ctx, acct.ID)
	if err != nil {
		return err
	}

	for _, folder := range folders {
		fmt.Println(folder)
	}
	return nil
}
