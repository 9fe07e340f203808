package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) setSuspended(id string, suspended bool) error {
	ctx := context.Background()

	var err error
	if suspended {
		_, err = cli.acctSvc.Suspend(ctx, cliActor, id)
	} else {
		_, err = cli.acctSvc.Unsuspend(ctx, cliActor, id)
	}
	if err != nil {
		return err
	}

	verb := "suspended"
	if !suspended {
		verb = "unsuspended"
	}
	fmt.Printf("%s account %s\n", verb, id)
	return nil
}

func (cli *commandLine) deleteAccount(id string) error {
	if err := cli.acctSvc.Delete(context.Background(), cliActor, id); err != nil {
		return err
	}
	fmt.Printf("deleted account %s\n", id)
	return nil
}
