package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetAccount(studentID, courseID string) error {
	rec, err := cli.enrollSvc.ResetAccount(context.Background(), cliActor, studentID, courseID)
	if err != nil {
		return err
	}
	fmt.Printf("reset enrollment of student %s in course %s (payment back to %s)\n",
		rec.StudentID, rec.CourseID, rec.PaymentStatus)
	return nil
}
