package audit

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// The export encoding is a correctness contract: every field double-quoted,
// embedded quotes doubled, actions title-cased with underscores replaced.
// encoding/csv cannot be told to quote unconditionally, hence the hand-rolled
// writer.

var csvHeader = []string{"Timestamp", "Admin", "Action", "Target Type", "Target ID", "Details"}

// Filename returns the export file name for the given date, e.g.
// "audit-logs-2021-03-14.csv".
func Filename(t time.Time) string {
	return "audit-logs-" + t.UTC().Format("2006-01-02") + ".csv"
}

// WriteCSV writes entries as a deterministic CSV table.
func WriteCSV(w io.Writer, entries []Entry) error {
	if err := writeRow(w, csvHeader); err != nil {
		return errors.Wrap(err, "writing CSV header")
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.AdminName,
			HumanizeAction(e.Action),
			e.TargetType,
			e.TargetID,
			e.Details,
		}
		if err := writeRow(w, row); err != nil {
			return errors.Wrap(err, "writing CSV row")
		}
	}
	return nil
}

// HumanizeAction renders an action constant for display:
// "generate_code" -> "Generate Code".
func HumanizeAction(action string) string {
	return strings.Title(strings.ReplaceAll(action, "_", " "))
}

func writeRow(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}
