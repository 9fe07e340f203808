package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/trezcool/darasa/core/audit"
)

const exportPageSize = 500

func (cli *commandLine) exportAudit(out string) error {
	ctx := context.Background()

	var all []audit.Entry
	var cursor string
	for {
		entries, next, err := cli.auditSvc.List(ctx, exportPageSize, cursor)
		if err != nil {
			return err
		}
		all = append(all, entries...)
		if next == "" {
			break
		}
		cursor = next
	}

	if out == "" {
		out = audit.Filename(time.Now())
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := audit.WriteCSV(f, all); err != nil {
		return err
	}
	fmt.Printf("exported %d audit entries to %s\n", len(all), out)
	return nil
}
