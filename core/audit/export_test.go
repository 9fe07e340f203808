package audit_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/audit"
)

func TestFilename(t *testing.T) {
	at := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	if got, want := audit.Filename(at), "audit-logs-2021-03-14.csv"; got != want {
		t.Errorf("Filename() = %s, want %s", got, want)
	}
}

func TestHumanizeAction(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{action: audit.ActionGenerateCode, want: "Generate Code"},
		{action: audit.ActionRevokeCode, want: "Revoke Code"},
		{action: audit.ActionDeleteAccount, want: "Delete Account"},
		{action: audit.ActionResetAccount, want: "Reset Account"},
		{action: audit.ActionSuspendAccount, want: "Suspend Account"},
		{action: audit.ActionUnsuspendAccount, want: "Unsuspend Account"},
	}
	for _, tt := range tests {
		if got := audit.HumanizeAction(tt.action); got != tt.want {
			t.Errorf("HumanizeAction(%s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	at := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	entries := []audit.Entry{
		{
			Timestamp:  at,
			AdminName:  `Awe "The Boss" Kat`,
			Action:     audit.ActionGenerateCode,
			TargetType: "access_code",
			TargetID:   "ABCD-EFGH",
			Details:    "issued access code for course C1, cohort \"B\"",
		},
		{
			Timestamp:  at.Add(time.Minute),
			AdminName:  "Awe",
			Action:     audit.ActionSuspendAccount,
			TargetType: "account",
			TargetID:   "A2",
			Details:    "suspended account King",
		},
	}

	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, entries); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	out := buf.String()

	// every field is quoted, rows end in CRLF
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != `"Timestamp","Admin","Action","Target Type","Target ID","Details"` {
		t.Errorf("header = %s", lines[0])
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, `"`) || !strings.HasSuffix(line, `"`) {
			t.Errorf("line %d is not fully quoted: %s", i, line)
		}
	}

	// a standard reader round-trips every field, embedded quotes included
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("csv.ReadAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	row := records[1]
	if row[1] != `Awe "The Boss" Kat` {
		t.Errorf("admin = %s", row[1])
	}
	if row[2] != "Generate Code" {
		t.Errorf("action = %s, want Generate Code", row[2])
	}
	if row[5] != "issued access code for course C1, cohort \"B\"" {
		t.Errorf("details = %s", row[5])
	}
	if _, err := time.Parse(time.RFC3339, row[0]); err != nil {
		t.Errorf("timestamp %s is not RFC3339: %v", row[0], err)
	}
}

func TestWriteCSV_emptyTrail(t *testing.T) {
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got, want := buf.String(), "\"Timestamp\",\"Admin\",\"Action\",\"Target Type\",\"Target ID\",\"Details\"\r\n"; got != want {
		t.Errorf("WriteCSV() = %q, want header only", got)
	}
}
