package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/enroll"
	"github.com/trezcool/darasa/storage/database"
)

var errHelp = errors.New("help provided")

// cliActor is the operator identity stamped on audit entries for actions
// performed from this CLI.
var cliActor = account.Actor{ID: "admin-cli", Name: "Admin CLI", Roles: account.AdminRoles}

type commandLine struct {
	db        *database.DB
	codeSvc   accesscode.ServiceInterface
	enrollSvc enroll.ServiceInterface
	acctSvc   account.ServiceInterface
	auditSvc  audit.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  issuecode -course COURSE [-expires DURATION] - issue a single-use access code")
	fmt.Println("  revokecode -code CODE - revoke an active access code")
	fmt.Println("  resetaccount -student STUDENT -course COURSE - reset an enrollment's verification")
	fmt.Println("  suspendaccount -id ID - suspend an account")
	fmt.Println("  unsuspendaccount -id ID - unsuspend an account")
	fmt.Println("  deleteaccount -id ID - delete an account")
	fmt.Println("  exportaudit [-out FILE] - export the audit trail to CSV")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	issueCodeCmd := flag.NewFlagSet("issuecode", flag.ExitOnError)
	issueCodeCourse := issueCodeCmd.String("course", "", "The course the code grants enrollment in.")
	issueCodeExpires := issueCodeCmd.Duration("expires", 0, "Optional validity window, e.g. 72h. Zero means no expiry.")

	revokeCodeCmd := flag.NewFlagSet("revokecode", flag.ExitOnError)
	revokeCodeCode := revokeCodeCmd.String("code", "", "The access code to revoke.")

	resetAccountCmd := flag.NewFlagSet("resetaccount", flag.ExitOnError)
	resetAccountStudent := resetAccountCmd.String("student", "", "The student's account ID.")
	resetAccountCourse := resetAccountCmd.String("course", "", "The course ID.")

	suspendCmd := flag.NewFlagSet("suspendaccount", flag.ExitOnError)
	suspendID := suspendCmd.String("id", "", "The account ID to suspend.")

	unsuspendCmd := flag.NewFlagSet("unsuspendaccount", flag.ExitOnError)
	unsuspendID := unsuspendCmd.String("id", "", "The account ID to unsuspend.")

	deleteAccountCmd := flag.NewFlagSet("deleteaccount", flag.ExitOnError)
	deleteAccountID := deleteAccountCmd.String("id", "", "The account ID to delete.")

	exportAuditCmd := flag.NewFlagSet("exportaudit", flag.ExitOnError)
	exportAuditOut := exportAuditCmd.String("out", "", "Output file; defaults to audit-logs-<date>.csv in the working directory.")

	switch args[1] {
	case "issuecode":
		if err := issueCodeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueCodeCourse == "" {
			issueCodeCmd.Usage()
			return errHelp
		}
		var expiresAt *time.Time
		if *issueCodeExpires > 0 {
			t := time.Now().UTC().Add(*issueCodeExpires)
			expiresAt = &t
		}
		return cli.issueCode(*issueCodeCourse, expiresAt)
	case "revokecode":
		if err := revokeCodeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *revokeCodeCode == "" {
			revokeCodeCmd.Usage()
			return errHelp
		}
		return cli.revokeCode(*revokeCodeCode)
	case "resetaccount":
		if err := resetAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetAccountStudent == "" || *resetAccountCourse == "" {
			resetAccountCmd.Usage()
			return errHelp
		}
		return cli.resetAccount(*resetAccountStudent, *resetAccountCourse)
	case "suspendaccount":
		if err := suspendCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *suspendID == "" {
			suspendCmd.Usage()
			return errHelp
		}
		return cli.setSuspended(*suspendID, true)
	case "unsuspendaccount":
		if err := unsuspendCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *unsuspendID == "" {
			unsuspendCmd.Usage()
			return errHelp
		}
		return cli.setSuspended(*unsuspendID, false)
	case "deleteaccount":
		if err := deleteAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteAccountID == "" {
			deleteAccountCmd.Usage()
			return errHelp
		}
		return cli.deleteAccount(*deleteAccountID)
	case "exportaudit":
		if err := exportAuditCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.exportAudit(*exportAuditOut)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
