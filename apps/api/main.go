package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/enroll"
	"github.com/trezcool/darasa/core/notif"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug || core.Conf.TestMode {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(core.Conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrating database", err)
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	broker := notif.NewBroker()
	defer broker.Close()

	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db.DB))
	acctSvc := account.NewService(db, sqlxrepos.NewAccountRepository(db.DB), auditSvc, broker)
	codeSvc := accesscode.NewService(db, sqlxrepos.NewAccessCodeRepository(db.DB), auditSvc, broker)
	enrollSvc := enroll.NewService(
		db, sqlxrepos.NewEnrollmentRepository(db.DB), codeSvc, acctSvc, auditSvc, mailSvc, broker)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:       core.Conf.Server.Address(),
			EnrollSvc:  enrollSvc,
			CodeSvc:    codeSvc,
			AuditSvc:   auditSvc,
			AccountSvc: acctSvc,
			Broker:     broker,
			Logger:     logger,
			Shutdown:   func() { shutdown <- syscall.SIGTERM },
		},
	)
	go app.Start()

	<-shutdown
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		logger.Error("stopping server", err)
	}
}
