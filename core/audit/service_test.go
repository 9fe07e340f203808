package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/audit"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func setup(t *testing.T) *audit.Service {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	return audit.NewService(inmemdb.NewAuditRepository(db))
}

func entryInput(action string) audit.EntryInput {
	return audit.EntryInput{
		AdminID:    "A1",
		AdminName:  "Awe",
		Action:     action,
		TargetType: "access_code",
		TargetID:   "CODE-1",
		Details:    "issued access code for course C1",
	}
}

func TestService_Append(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	entry, err := svc.Append(ctx, entryInput(audit.ActionGenerateCode))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("entry has no ID")
	}
	if entry.Seq == 0 {
		t.Error("entry has no Seq")
	}
	if entry.Timestamp.IsZero() {
		t.Error("entry has no Timestamp")
	}
	if entry.Action != audit.ActionGenerateCode {
		t.Errorf("action = %s, want %s", entry.Action, audit.ActionGenerateCode)
	}
}

func TestService_Append_rejectsBadInput(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   audit.EntryInput
	}{
		{name: "unknown action", in: entryInput("promote_to_wizard")},
		{name: "empty action", in: entryInput("")},
		{name: "no admin", in: audit.EntryInput{Action: audit.ActionRevokeCode, TargetType: "access_code", TargetID: "X"}},
		{name: "no target", in: audit.EntryInput{AdminID: "A1", Action: audit.ActionRevokeCode}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Append(ctx, tt.in); err == nil {
				t.Error("Append() expected an error")
			}
		})
	}

	// nothing was recorded
	entries, _, err := svc.List(ctx, 10, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("trail has %d entries, want 0", len(entries))
	}
}

func TestService_List_pagination(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	actions := []string{
		audit.ActionGenerateCode,
		audit.ActionRevokeCode,
		audit.ActionSuspendAccount,
		audit.ActionUnsuspendAccount,
		audit.ActionDeleteAccount,
	}
	for _, action := range actions {
		if _, err := svc.Append(ctx, entryInput(action)); err != nil {
			t.Fatalf("Append(%s) error = %v", action, err)
		}
	}

	var got []audit.Entry
	var cursor string
	var pages int
	for {
		entries, next, err := svc.List(ctx, 2, cursor)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		got = append(got, entries...)
		pages++
		if next == "" {
			break
		}
		cursor = next
	}

	if pages < 3 {
		t.Errorf("paged %d times, want at least 3", pages)
	}
	if len(got) != len(actions) {
		t.Fatalf("collected %d entries, want %d", len(got), len(actions))
	}
	// newest first, no duplicates across pages
	seen := make(map[string]bool, len(got))
	for i, e := range got {
		if seen[e.ID] {
			t.Errorf("entry %s appeared on two pages", e.ID)
		}
		seen[e.ID] = true
		if i > 0 {
			prev := got[i-1]
			if e.Timestamp.After(prev.Timestamp) ||
				(e.Timestamp.Equal(prev.Timestamp) && e.Seq > prev.Seq) {
				t.Errorf("entries out of order at index %d", i)
			}
		}
	}
	if got[0].Action != audit.ActionDeleteAccount {
		t.Errorf("newest entry action = %s, want %s", got[0].Action, audit.ActionDeleteAccount)
	}
}

func TestService_List_badCursor(t *testing.T) {
	svc := setup(t)

	if _, _, err := svc.List(context.Background(), 10, "not-a-cursor"); err == nil {
		t.Error("List() expected an error for a malformed cursor")
	}
}

func TestCursor_roundTrip(t *testing.T) {
	in := audit.Cursor{Timestamp: time.Now().UTC().Truncate(time.Nanosecond), Seq: 42}
	out, err := audit.DecodeCursor(in.String())
	if err != nil {
		t.Fatalf("DecodeCursor() error = %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp) || out.Seq != in.Seq {
		t.Errorf("DecodeCursor() = %+v, want %+v", out, in)
	}

	zero, err := audit.DecodeCursor("")
	if err != nil {
		t.Fatalf("DecodeCursor(\"\") error = %v", err)
	}
	if !zero.IsZero() {
		t.Errorf("DecodeCursor(\"\") = %+v, want zero", zero)
	}
}

// flakyRepo fails CreateEntry with core.ErrStorageUnavailable a set number of
// times before delegating to the real repository.
type flakyRepo struct {
	audit.Repository
	failures int
}

func (r *flakyRepo) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	if r.failures > 0 {
		r.failures--
		return audit.Entry{}, core.ErrStorageUnavailable
	}
	return r.Repository.CreateEntry(ctx, entry, exec...)
}

func TestService_Append_retriesTransientFailures(t *testing.T) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	ctx := context.Background()

	svc := audit.NewService(&flakyRepo{Repository: inmemdb.NewAuditRepository(db), failures: 2})
	if _, err := svc.Append(ctx, entryInput(audit.ActionGenerateCode)); err != nil {
		t.Fatalf("Append() error = %v, want transparent retry", err)
	}

	svc = audit.NewService(&flakyRepo{Repository: inmemdb.NewAuditRepository(db), failures: 10})
	if _, err := svc.Append(ctx, entryInput(audit.ActionGenerateCode)); err == nil {
		t.Error("Append() expected an error once retries are exhausted")
	}
}
