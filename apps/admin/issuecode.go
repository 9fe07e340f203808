package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/darasa/core/accesscode"
)

func (cli *commandLine) issueCode(courseID string, expiresAt *time.Time) error {
	code, err := cli.codeSvc.Issue(context.Background(), cliActor, accesscode.IssueCode{
		CourseID:  courseID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	fmt.Printf("issued code %s for course %s\n", code.Code, code.CourseID)
	return nil
}
