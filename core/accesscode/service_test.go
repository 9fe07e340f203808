package accesscode_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/notif"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

var (
	admin   = account.Actor{ID: "A1", Name: "Awe", Roles: []string{account.RoleAdmin}}
	coord   = account.Actor{ID: "K1", Name: "King", Roles: []string{account.RoleCoordinator}}
	student = account.Actor{ID: "S1", Name: "Hero", Roles: []string{account.RoleStudent}}
)

func setup(t *testing.T) (*accesscode.Service, audit.ServiceInterface) {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	broker := notif.NewBroker()
	t.Cleanup(broker.Close)

	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db))
	return accesscode.NewService(db, inmemdb.NewAccessCodeRepository(db), auditSvc, broker), auditSvc
}

func trail(t *testing.T, auditSvc audit.ServiceInterface) []audit.Entry {
	t.Helper()
	entries, _, err := auditSvc.List(context.Background(), 100, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return entries
}

func TestService_Issue(t *testing.T) {
	svc, auditSvc := setup(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if code.Code == "" {
		t.Error("code has no token")
	}
	if code.Status != accesscode.StatusActive {
		t.Errorf("status = %s, want %s", code.Status, accesscode.StatusActive)
	}
	if code.IssuedBy != admin.ID {
		t.Errorf("issuedBy = %s, want %s", code.IssuedBy, admin.ID)
	}

	// the code and its audit entry exist together
	entries := trail(t, auditSvc)
	if len(entries) != 1 {
		t.Fatalf("trail has %d entries, want 1", len(entries))
	}
	if entries[0].Action != audit.ActionGenerateCode {
		t.Errorf("action = %s, want %s", entries[0].Action, audit.ActionGenerateCode)
	}
	if entries[0].TargetID != code.Code {
		t.Errorf("targetID = %s, want %s", entries[0].TargetID, code.Code)
	}
}

func TestService_Issue_permissions(t *testing.T) {
	svc, auditSvc := setup(t)
	ctx := context.Background()

	for _, actor := range []account.Actor{coord, student} {
		if _, err := svc.Issue(ctx, actor, accesscode.IssueCode{CourseID: "C1"}); err != core.ErrPermissionDenied {
			t.Errorf("Issue(%s) error = %v, want %v", actor.Name, err, core.ErrPermissionDenied)
		}
	}
	// denied attempts never reach the trail
	if entries := trail(t, auditSvc); len(entries) != 0 {
		t.Errorf("trail has %d entries, want 0", len(entries))
	}
}

func TestService_Issue_requiresCourse(t *testing.T) {
	svc, _ := setup(t)
	if _, err := svc.Issue(context.Background(), admin, accesscode.IssueCode{}); err == nil {
		t.Error("Issue() expected a validation error")
	}
}

func TestService_Redeem(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	red, err := svc.Redeem(ctx, code.Code, "S1")
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if red.CourseID != "C1" {
		t.Errorf("courseID = %s, want C1", red.CourseID)
	}
	if red.Code.Status != accesscode.StatusRedeemed {
		t.Errorf("status = %s, want %s", red.Code.Status, accesscode.StatusRedeemed)
	}
	if red.Code.RedeemedBy != "S1" || red.Code.RedeemedAt == nil {
		t.Error("redemption is not stamped")
	}

	if _, err := svc.Redeem(ctx, code.Code, "S2"); err != accesscode.ErrAlreadyUsed {
		t.Errorf("second Redeem() error = %v, want %v", err, accesscode.ErrAlreadyUsed)
	}
	if _, err := svc.Redeem(ctx, "NOPE-NOPE", "S1"); err != accesscode.ErrNotFound {
		t.Errorf("Redeem(unknown) error = %v, want %v", err, accesscode.ErrNotFound)
	}
}

func TestService_Redeem_expired(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	code, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1", ExpiresAt: &past})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.Redeem(ctx, code.Code, "S1"); err != accesscode.ErrExpired {
		t.Errorf("Redeem() error = %v, want %v", err, accesscode.ErrExpired)
	}
}

// A code is consumed exactly once no matter how many students race for it.
func TestService_Redeem_concurrent(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	const racers = 20
	var wg sync.WaitGroup
	results := make([]error, racers)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Redeem(ctx, code.Code, "S"+string(rune('A'+i)))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch err {
		case nil:
			wins++
		case accesscode.ErrAlreadyUsed:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("got %d winners, want exactly 1", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("got %d conflicts, want %d", conflicts, racers-1)
	}
}

func TestService_Revoke(t *testing.T) {
	svc, auditSvc := setup(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	revoked, err := svc.Revoke(ctx, admin, code.Code)
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked.Status != accesscode.StatusRevoked {
		t.Errorf("status = %s, want %s", revoked.Status, accesscode.StatusRevoked)
	}

	entries := trail(t, auditSvc)
	if len(entries) != 2 {
		t.Fatalf("trail has %d entries, want 2", len(entries))
	}
	if entries[0].Action != audit.ActionRevokeCode {
		t.Errorf("newest action = %s, want %s", entries[0].Action, audit.ActionRevokeCode)
	}

	// a revoked code can no longer be redeemed or re-revoked
	if _, err := svc.Redeem(ctx, code.Code, "S1"); err != accesscode.ErrAlreadyUsed {
		t.Errorf("Redeem() error = %v, want %v", err, accesscode.ErrAlreadyUsed)
	}
	if _, err := svc.Revoke(ctx, admin, code.Code); err != accesscode.ErrAlreadyUsed {
		t.Errorf("Revoke() error = %v, want %v", err, accesscode.ErrAlreadyUsed)
	}
}

func TestService_Revoke_permissions(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	for _, actor := range []account.Actor{coord, student} {
		if _, err := svc.Revoke(ctx, actor, code.Code); err != core.ErrPermissionDenied {
			t.Errorf("Revoke(%s) error = %v, want %v", actor.Name, err, core.ErrPermissionDenied)
		}
	}
}

func TestService_Query(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C1"}); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := svc.Issue(ctx, admin, accesscode.IssueCode{CourseID: "C2", ExpiresAt: &past}); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// coordinators may read, students may not
	if _, err := svc.Query(ctx, student, accesscode.QueryFilter{}); err != core.ErrPermissionDenied {
		t.Errorf("Query(student) error = %v, want %v", err, core.ErrPermissionDenied)
	}

	all, err := svc.Query(ctx, coord, accesscode.QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d codes, want 2", len(all))
	}

	active, err := svc.Query(ctx, coord, accesscode.QueryFilter{Status: accesscode.StatusActive})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(active) != 1 || active[0].CourseID != "C1" {
		t.Errorf("active = %+v, want only the C1 code", active)
	}

	// a lapsed expiry reads as expired even though the row still says active
	expired, err := svc.Query(ctx, coord, accesscode.QueryFilter{Status: accesscode.StatusExpired})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(expired) != 1 || expired[0].CourseID != "C2" {
		t.Errorf("expired = %+v, want only the C2 code", expired)
	}
}
