package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) revokeCode(code string) error {
	revoked, err := cli.codeSvc.Revoke(context.Background(), cliActor, code)
	if err != nil {
		return err
	}
	fmt.Printf("revoked code %s\n", revoked.Code)
	return nil
}
