package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/enroll"
	"github.com/trezcool/darasa/core/notif"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	broker := notif.NewBroker()
	t.Cleanup(broker.Close)

	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db))
	acctSvc := account.NewService(db, inmemdb.NewAccountRepository(db), auditSvc, broker)
	codeSvc := accesscode.NewService(db, inmemdb.NewAccessCodeRepository(db), auditSvc, broker)
	enrollSvc := enroll.NewService(
		db, inmemdb.NewEnrollmentRepository(db), codeSvc, acctSvc, auditSvc, nil, broker)

	return &commandLine{
		codeSvc:   codeSvc,
		enrollSvc: enrollSvc,
		acctSvc:   acctSvc,
		auditSvc:  auditSvc,
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_help(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "issuecode: no course", args: []string{"issuecode"}, wantErr: errHelp},
		{name: "revokecode: no code", args: []string{"revokecode"}, wantErr: errHelp},
		{name: "resetaccount: no args", args: []string{"resetaccount"}, wantErr: errHelp},
		{name: "resetaccount: no course", args: []string{"resetaccount", "-student", "s1"}, wantErr: errHelp},
		{name: "suspendaccount: no id", args: []string{"suspendaccount"}, wantErr: errHelp},
		{name: "unsuspendaccount: no id", args: []string{"unsuspendaccount"}, wantErr: errHelp},
		{name: "deleteaccount: no id", args: []string{"deleteaccount"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_codes(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	if err := cli.run([]string{"admin", "issuecode", "-course", "C1", "-expires", "72h"}); err != nil {
		t.Fatalf("cli.run(issuecode) error = %v", err)
	}

	codes, err := cli.codeSvc.Query(ctx, cliActor, accesscode.QueryFilter{CourseID: "C1"})
	if err != nil {
		t.Fatalf("Query() failed, %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("expected 1 issued code, got %d", len(codes))
	}
	code := codes[0]
	if code.Status != accesscode.StatusActive {
		t.Errorf("code status = %s, want %s", code.Status, accesscode.StatusActive)
	}
	if code.ExpiresAt == nil {
		t.Error("expected an expiry to be set")
	}

	if err := cli.run([]string{"admin", "revokecode", "-code", code.Code}); err != nil {
		t.Fatalf("cli.run(revokecode) error = %v", err)
	}
	if err := cli.run([]string{"admin", "revokecode", "-code", code.Code}); err != accesscode.ErrAlreadyUsed {
		t.Errorf("revoking a revoked code error = %v, want %v", err, accesscode.ErrAlreadyUsed)
	}
	if err := cli.run([]string{"admin", "revokecode", "-code", "NOPE"}); err != accesscode.ErrNotFound {
		t.Errorf("revoking an unknown code error = %v, want %v", err, accesscode.ErrNotFound)
	}
}

func Test_commandLine_resetAccount(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	if _, err := cli.enrollSvc.EnrollDirect(ctx, "S1", "C1"); err != nil {
		t.Fatalf("EnrollDirect() failed, %v", err)
	}
	if _, err := cli.enrollSvc.Verify(ctx, cliActor, "S1", "C1"); err != nil {
		t.Fatalf("Verify() failed, %v", err)
	}

	if err := cli.run([]string{"admin", "resetaccount", "-student", "S1", "-course", "C1"}); err != nil {
		t.Fatalf("cli.run(resetaccount) error = %v", err)
	}

	rec, err := cli.enrollSvc.Get(ctx, "S1", "C1")
	if err != nil {
		t.Fatalf("Get() failed, %v", err)
	}
	if rec.Verified || rec.VerifiedAt != nil {
		t.Error("expected verification to be cleared")
	}
	if rec.PaymentStatus != enroll.PaymentPending {
		t.Errorf("payment status = %s, want %s", rec.PaymentStatus, enroll.PaymentPending)
	}

	if err := cli.run([]string{"admin", "resetaccount", "-student", "S1", "-course", "NOPE"}); err != enroll.ErrNotFound {
		t.Errorf("resetting an unknown enrollment error = %v, want %v", err, enroll.ErrNotFound)
	}
}

func Test_commandLine_accounts(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	acct, err := cli.acctSvc.Upsert(ctx, account.Account{ID: "A1", Name: "Awe", Email: "awe@test.cd"})
	if err != nil {
		t.Fatalf("Upsert() failed, %v", err)
	}

	if err := cli.run([]string{"admin", "suspendaccount", "-id", acct.ID}); err != nil {
		t.Fatalf("cli.run(suspendaccount) error = %v", err)
	}
	refreshed, err := cli.acctSvc.Get(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Get() failed, %v", err)
	}
	if !refreshed.Suspended {
		t.Error("expected account to be suspended")
	}

	if err := cli.run([]string{"admin", "unsuspendaccount", "-id", acct.ID}); err != nil {
		t.Fatalf("cli.run(unsuspendaccount) error = %v", err)
	}
	refreshed, _ = cli.acctSvc.Get(ctx, acct.ID)
	if refreshed.Suspended {
		t.Error("expected account to be unsuspended")
	}

	if err := cli.run([]string{"admin", "deleteaccount", "-id", acct.ID}); err != nil {
		t.Fatalf("cli.run(deleteaccount) error = %v", err)
	}
	if _, err := cli.acctSvc.Get(ctx, acct.ID); err != account.ErrNotFound {
		t.Errorf("Get() after delete error = %v, want %v", err, account.ErrNotFound)
	}
}

func Test_commandLine_exportAudit(t *testing.T) {
	cli := setup(t)

	if err := cli.run([]string{"admin", "issuecode", "-course", "C1"}); err != nil {
		t.Fatalf("cli.run(issuecode) error = %v", err)
	}

	out := filepath.Join(t.TempDir(), "audit.csv")
	if err := cli.run([]string{"admin", "exportaudit", "-out", out}); err != nil {
		t.Fatalf("cli.run(exportaudit) error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading export failed, %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"Timestamp","Admin","Action","Target Type","Target ID","Details"`) {
		t.Error("export is missing the CSV header")
	}
	if !strings.Contains(content, `"Generate Code"`) {
		t.Error("export is missing the generate_code entry")
	}
	if !strings.Contains(content, cliActor.Name) {
		t.Error("export is missing the acting admin's name")
	}
}
