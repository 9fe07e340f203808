package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/enroll"
	"github.com/trezcool/darasa/core/notif"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

var logger *log.Logger // todo: logger service

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	broker := notif.NewBroker()
	defer broker.Close()

	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db.DB))
	acctSvc := account.NewService(db, sqlxrepos.NewAccountRepository(db.DB), auditSvc, broker)
	codeSvc := accesscode.NewService(db, sqlxrepos.NewAccessCodeRepository(db.DB), auditSvc, broker)
	enrollSvc := enroll.NewService(
		db, sqlxrepos.NewEnrollmentRepository(db.DB), codeSvc, acctSvc, auditSvc, nil /* mailSvc */, broker)

	// start CLI
	cli := commandLine{
		db:        db,
		codeSvc:   codeSvc,
		enrollSvc: enrollSvc,
		acctSvc:   acctSvc,
		auditSvc:  auditSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
